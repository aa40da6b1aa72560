package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Clark-Hu/cinepuma/internal/detail"
	"github.com/Clark-Hu/cinepuma/internal/domain"
	"github.com/Clark-Hu/cinepuma/internal/metrics"
	"github.com/Clark-Hu/cinepuma/internal/rating"
	"github.com/Clark-Hu/cinepuma/internal/view"
)

const (
	liveWriteWait    = 10 * time.Second
	liveMaxEventSize = 8 << 10
)

// Live message types sent to the browser.
const (
	liveStars   = "stars"
	liveReviews = "reviews"
	liveNotice  = "notice"
	liveReset   = "reset"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 << 10,
	WriteBufferSize: 4 << 10,
}

// liveMessage is one server-to-browser update. HTML holds a rendered fragment.
type liveMessage struct {
	Type  string  `json:"type"`
	HTML  string  `json:"html,omitempty"`
	Value float64 `json:"value,omitempty"`
	Count int     `json:"count,omitempty"`
	Mean  string  `json:"mean,omitempty"`
}

// livePort renders page updates as fragments over a websocket. Only the page
// goroutine writes to conn.
type livePort struct {
	conn     *websocket.Conn
	renderer *view.Renderer
}

func (p *livePort) send(msg liveMessage) error {
	if err := p.conn.SetWriteDeadline(time.Now().Add(liveWriteWait)); err != nil {
		return err
	}
	return p.conn.WriteJSON(msg)
}

func (p *livePort) fragment(msgType, name string, data any) (liveMessage, error) {
	html, err := p.renderer.Fragment(name, data)
	if err != nil {
		return liveMessage{}, err
	}
	return liveMessage{Type: msgType, HTML: html}, nil
}

func (p *livePort) ShowStars(_ context.Context, value float64, stars [rating.StarCount]rating.Star) error {
	msg, err := p.fragment(liveStars, view.FragmentStars, view.Stars{Value: value, Stars: view.StarViews(stars)})
	if err != nil {
		return err
	}
	msg.Value = value
	return p.send(msg)
}

func (p *livePort) ShowReviews(_ context.Context, v detail.ReviewsView) error {
	section := view.NewReviewsSection(v)
	msg, err := p.fragment(liveReviews, view.FragmentReviews, section)
	if err != nil {
		return err
	}
	msg.Count = section.Count
	msg.Mean = section.Mean
	return p.send(msg)
}

func (p *livePort) Notify(_ context.Context, notice domain.Notice) error {
	msg, err := p.fragment(liveNotice, view.FragmentNotice, notice)
	if err != nil {
		return err
	}
	return p.send(msg)
}

func (p *livePort) ClearForm(_ context.Context, value float64) error {
	return p.send(liveMessage{Type: liveReset, Value: value})
}

// readEvents decodes browser events until the socket fails, then closes
// events. Malformed messages are dropped.
func (s *Server) readEvents(ctx context.Context, conn *websocket.Conn, events chan<- detail.Event) {
	defer close(events)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) && ctx.Err() == nil {
				s.logger.Debug("live: read ended", zap.Error(err))
			}
			return
		}
		var ev detail.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Debug("live: dropping malformed event", zap.Error(err))
			continue
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// handleLive serves one open details page over a websocket until the browser
// leaves or the server shuts down.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	m, err := s.resolveMovie(r)
	if err != nil {
		s.renderMovieError(w, r, err)
		return
	}
	userID := anonymousUser
	if s.deps.Submitter != nil {
		userID = s.reviewerID(w, r)
	}
	// a guest session issued above travels with the handshake response
	var handshake http.Header
	if cookies := w.Header().Values("Set-Cookie"); len(cookies) > 0 {
		handshake = http.Header{"Set-Cookie": cookies}
	}

	conn, err := upgrader.Upgrade(w, r, handshake)
	if err != nil {
		// Upgrade already wrote the error response.
		s.logger.Debug("live: upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(liveMaxEventSize)

	metrics.LiveConnections.Inc()
	defer metrics.LiveConnections.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.live, cancel)
	defer stop()

	events := make(chan detail.Event)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		s.readEvents(ctx, conn, events)
	}()

	port := &livePort{conn: conn, renderer: s.deps.Renderer}
	page := detail.NewPage(view.MovieID(m), userID, s.deps.Submitter, port, s.logger)

	var (
		snapshots  <-chan []domain.Review
		feedFailed <-chan struct{}
	)
	switch {
	case s.deps.Submitter == nil || s.deps.Feed == nil:
	default:
		sub := s.deps.Feed.Subscribe()
		defer sub.Close()
		snapshots = sub.C()
		feedFailed = sub.Failed()
	}

	err = page.Run(ctx, events, snapshots, feedFailed)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("live: page ended", zap.Error(err))
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	cancel()
	_ = conn.Close()
	<-readerDone
}
