// Package detail drives the movie details page: the rating widget, the review
// form and the live review list. All page state lives in a Page, which talks
// to the browser only through a Port.
package detail

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Clark-Hu/cinepuma/internal/domain"
	"github.com/Clark-Hu/cinepuma/internal/rating"
	"github.com/Clark-Hu/cinepuma/internal/reviews"
)

// Messages shown in the review section.
const (
	EmptyReviewsMessage = "Aún no hay opiniones. ¡Sé el primero en dejar una!"
	StoreMissingMessage = "Base de datos no disponible."
	FeedFailedMessage   = "Error al cargar las reseñas."
)

// Notices raised by submissions.
var (
	NoticeSent = domain.Notice{
		Level:   domain.NoticeSuccess,
		Title:   "¡Opinión enviada!",
		Message: "Tu valoración ha sido guardada con éxito. Actualizando la lista...",
	}
	NoticeIncomplete = domain.Notice{
		Level:   domain.NoticeWarning,
		Title:   "Opinión incompleta",
		Message: "Por favor, selecciona una valoración (1-5) y escribe una opinión con al menos 5 caracteres.",
	}
	NoticeNoStore = domain.Notice{
		Level:   domain.NoticeError,
		Title:   "Error de conexión",
		Message: "La base de datos no está inicializada. No se puede guardar la opinión.",
	}
	NoticeSaveFailed = domain.Notice{
		Level:   domain.NoticeError,
		Title:   "Error al guardar",
		Message: "Hubo un problema al enviar tu opinión. Inténtalo de nuevo.",
	}
)

// ReviewsView is what the review section displays.
type ReviewsView struct {
	Summary reviews.Summary
	// Unavailable replaces the list with a message when set.
	Unavailable string
}

// Port is the page's view of the browser.
type Port interface {
	ShowStars(ctx context.Context, value float64, stars [rating.StarCount]rating.Star) error
	ShowReviews(ctx context.Context, view ReviewsView) error
	Notify(ctx context.Context, notice domain.Notice) error
	// ClearForm empties the review text and moves the slider to value.
	ClearForm(ctx context.Context, value float64) error
}

// Submitter stores reviews. *reviews.Submitter implements it.
type Submitter interface {
	Submit(ctx context.Context, s reviews.Submission) (reviews.Ack, error)
}

// EventKind tells rating input from submissions.
type EventKind string

const (
	EventRating EventKind = "rating"
	EventSubmit EventKind = "submit"
)

// Event is one user interaction.
type Event struct {
	Kind  EventKind `json:"type"`
	Value float64   `json:"value,omitempty"`
	Text  string    `json:"text,omitempty"`
}

// Page is the explicit context of one open details page.
type Page struct {
	MovieID string
	UserID  string

	widget    *rating.Widget
	submitter Submitter
	port      Port
	logger    *zap.Logger
}

// NewPage returns a page with the widget at its default value. A nil
// submitter means no store is configured.
func NewPage(movieID, userID string, submitter Submitter, port Port, logger *zap.Logger) *Page {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Page{
		MovieID:   movieID,
		UserID:    userID,
		widget:    rating.New(),
		submitter: submitter,
		port:      port,
		logger:    logger,
	}
}

// Rating returns the widget's current value.
func (p *Page) Rating() float64 {
	return p.widget.Current()
}

// Init renders the initial widget. Without a store the review list shows
// StoreMissingMessage straight away.
func (p *Page) Init(ctx context.Context) error {
	if err := p.showStars(ctx); err != nil {
		return err
	}
	if p.submitter == nil {
		return p.port.ShowReviews(ctx, ReviewsView{
			Summary:     reviews.Aggregate(nil, p.MovieID),
			Unavailable: StoreMissingMessage,
		})
	}
	return nil
}

func (p *Page) showStars(ctx context.Context) error {
	return p.port.ShowStars(ctx, p.widget.Current(), p.widget.Stars())
}

// HandleEvent applies one interaction. Only port failures are returned;
// rejected input and failed submissions are reported through the port.
func (p *Page) HandleEvent(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventRating:
		if err := p.widget.Input(ev.Value); err != nil {
			p.logger.Debug("detail: rating ignored", zap.Float64("value", ev.Value), zap.Error(err))
		}
		return p.showStars(ctx)
	case EventSubmit:
		return p.submit(ctx, ev.Text)
	default:
		p.logger.Debug("detail: unknown event", zap.String("type", string(ev.Kind)))
		return nil
	}
}

func (p *Page) submit(ctx context.Context, text string) error {
	if p.submitter == nil {
		return p.port.Notify(ctx, NoticeNoStore)
	}
	_, err := p.submitter.Submit(ctx, reviews.Submission{
		MovieID: p.MovieID,
		UserID:  p.UserID,
		Rating:  p.widget.Current(),
		Text:    text,
	})
	if err != nil {
		// the form keeps its contents
		return p.port.Notify(ctx, NoticeFor(err))
	}

	p.widget.Reset()
	if err := p.port.Notify(ctx, NoticeSent); err != nil {
		return err
	}
	if err := p.port.ClearForm(ctx, p.widget.Current()); err != nil {
		return err
	}
	return p.showStars(ctx)
}

// NoticeFor maps a submission error to the notice shown to the user.
func NoticeFor(err error) domain.Notice {
	switch {
	case err == nil:
		return NoticeSent
	case errors.Is(err, domain.ErrValidation):
		return NoticeIncomplete
	case errors.Is(err, domain.ErrConfigMissing):
		return NoticeNoStore
	default:
		return NoticeSaveFailed
	}
}

// HandleSnapshot recomputes the review section from a full snapshot.
func (p *Page) HandleSnapshot(ctx context.Context, all []domain.Review) error {
	return p.port.ShowReviews(ctx, ReviewsView{Summary: reviews.Aggregate(all, p.MovieID)})
}

// HandleFeedError replaces the review list after the live stream failed.
func (p *Page) HandleFeedError(ctx context.Context) error {
	return p.port.ShowReviews(ctx, ReviewsView{
		Summary:     reviews.Aggregate(nil, p.MovieID),
		Unavailable: FeedFailedMessage,
	})
}

// Run serves the page until ctx is done, events is closed or the port fails.
// Snapshots arrive on snapshots; a nil channel means there is no feed. When
// feedFailed is closed the list is replaced by FeedFailedMessage and later
// snapshots are ignored.
func (p *Page) Run(ctx context.Context, events <-chan Event, snapshots <-chan []domain.Review, feedFailed <-chan struct{}) error {
	if err := p.Init(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := p.HandleEvent(ctx, ev); err != nil {
				return err
			}
		case list := <-snapshots:
			if err := p.HandleSnapshot(ctx, list); err != nil {
				return err
			}
		case <-feedFailed:
			snapshots, feedFailed = nil, nil
			if err := p.HandleFeedError(ctx); err != nil {
				return err
			}
		}
	}
}
