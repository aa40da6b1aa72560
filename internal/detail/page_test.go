package detail

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Clark-Hu/cinepuma/internal/domain"
	"github.com/Clark-Hu/cinepuma/internal/rating"
	"github.com/Clark-Hu/cinepuma/internal/reviews"
)

type recordingPort struct {
	calls   []string
	notices []domain.Notice
	views   []ReviewsView
	stars   [][rating.StarCount]rating.Star
}

func (r *recordingPort) ShowStars(_ context.Context, v float64, stars [rating.StarCount]rating.Star) error {
	r.calls = append(r.calls, fmt.Sprintf("stars %.1f", v))
	r.stars = append(r.stars, stars)
	return nil
}

func (r *recordingPort) ShowReviews(_ context.Context, view ReviewsView) error {
	r.calls = append(r.calls, fmt.Sprintf("reviews %d", view.Summary.Count))
	r.views = append(r.views, view)
	return nil
}

func (r *recordingPort) Notify(_ context.Context, n domain.Notice) error {
	r.calls = append(r.calls, "notice "+string(n.Level))
	r.notices = append(r.notices, n)
	return nil
}

func (r *recordingPort) ClearForm(_ context.Context, v float64) error {
	r.calls = append(r.calls, fmt.Sprintf("clear %.1f", v))
	return nil
}

type fakeSubmitter struct {
	got []reviews.Submission
	err error
}

func (f *fakeSubmitter) Submit(_ context.Context, s reviews.Submission) (reviews.Ack, error) {
	f.got = append(f.got, s)
	return reviews.Ack{ID: "r1"}, f.err
}

func TestPageRatingInput(t *testing.T) {
	port := &recordingPort{}
	page := NewPage("Shrek", "u1", &fakeSubmitter{}, port, nil)
	ctx := context.Background()

	if err := page.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for _, v := range []float64{3.5, 7, 4.2} {
		if err := page.HandleEvent(ctx, Event{Kind: EventRating, Value: v}); err != nil {
			t.Fatalf("HandleEvent: %v", err)
		}
	}
	want := []string{"stars 1.0", "stars 3.5", "stars 3.5", "stars 3.5"}
	if diff := cmp.Diff(want, port.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if got := port.stars[1]; got != rating.Stars(3.5) {
		t.Fatalf("stars for 3.5 = %v", got)
	}
}

func TestPageSubmitSuccessResetsWidget(t *testing.T) {
	port := &recordingPort{}
	sub := &fakeSubmitter{}
	page := NewPage("Shrek", "u1", sub, port, nil)
	ctx := context.Background()

	_ = page.HandleEvent(ctx, Event{Kind: EventRating, Value: 4.5})
	port.calls = nil
	if err := page.HandleEvent(ctx, Event{Kind: EventSubmit, Text: "Muy divertida"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	want := reviews.Submission{MovieID: "Shrek", UserID: "u1", Rating: 4.5, Text: "Muy divertida"}
	if len(sub.got) != 1 || sub.got[0] != want {
		t.Fatalf("submitted %+v", sub.got)
	}
	if diff := cmp.Diff([]string{"notice success", "clear 1.0", "stars 1.0"}, port.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if page.Rating() != rating.Default {
		t.Fatalf("Rating() = %v after success", page.Rating())
	}
	// no local insert: the list only changes on snapshots
	if len(port.views) != 0 {
		t.Fatalf("review list rendered without a snapshot")
	}
}

func TestPageSubmitFailureKeepsForm(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.Notice
	}{
		{"incomplete", reviews.ErrIncomplete, NoticeIncomplete},
		{"invalid rating", reviews.ErrInvalidRating, NoticeIncomplete},
		{"unconfigured", reviews.ErrConfigMissing, NoticeNoStore},
		{"store down", fmt.Errorf("%w: %w", reviews.ErrStoreUnavailable, errors.New("boom")), NoticeSaveFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := &recordingPort{}
			page := NewPage("Shrek", "u1", &fakeSubmitter{err: tt.err}, port, nil)
			ctx := context.Background()
			_ = page.HandleEvent(ctx, Event{Kind: EventRating, Value: 2})
			port.calls = nil

			if err := page.HandleEvent(ctx, Event{Kind: EventSubmit, Text: "algo de texto"}); err != nil {
				t.Fatalf("submit: %v", err)
			}
			if len(port.notices) != 1 || port.notices[0] != tt.want {
				t.Fatalf("notices = %+v, want %+v", port.notices, tt.want)
			}
			if len(port.calls) != 1 {
				t.Fatalf("form touched on failure: %v", port.calls)
			}
			if page.Rating() != 2 {
				t.Fatalf("Rating() = %v, want 2 kept", page.Rating())
			}
		})
	}
}

func TestPageWithoutStore(t *testing.T) {
	port := &recordingPort{}
	page := NewPage("Shrek", "u1", nil, port, nil)
	ctx := context.Background()

	if err := page.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if len(port.views) != 1 || port.views[0].Unavailable != StoreMissingMessage {
		t.Fatalf("views = %+v", port.views)
	}
	if err := page.HandleEvent(ctx, Event{Kind: EventSubmit, Text: "Gran película"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if port.notices[0] != NoticeNoStore {
		t.Fatalf("notice = %+v", port.notices[0])
	}
}

func TestPageRunAppliesSnapshots(t *testing.T) {
	port := &recordingPort{}
	page := NewPage("Shrek", "u1", &fakeSubmitter{}, port, nil)

	events := make(chan Event)
	snapshots := make(chan []domain.Review)
	done := make(chan error, 1)
	go func() { done <- page.Run(context.Background(), events, snapshots, nil) }()

	now := time.Now()
	snapshots <- []domain.Review{
		{ID: "a", MovieID: "Shrek", Rating: 4, CreatedAt: now},
		{ID: "b", MovieID: "Other", Rating: 1, CreatedAt: now},
		{ID: "c", MovieID: "Shrek", Rating: 5, CreatedAt: now.Add(time.Second)},
	}
	events <- Event{Kind: EventRating, Value: 2}
	close(events)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return")
	}

	if len(port.views) != 1 {
		t.Fatalf("views = %d, want 1", len(port.views))
	}
	got := port.views[0].Summary
	if got.Count != 2 || got.MeanText() != "4.5" || got.Ordered[0].ID != "c" {
		t.Fatalf("summary = %+v", got)
	}
}

// signalPort reports every review view on shown.
type signalPort struct {
	recordingPort
	shown chan ReviewsView
}

func (s *signalPort) ShowReviews(ctx context.Context, view ReviewsView) error {
	_ = s.recordingPort.ShowReviews(ctx, view)
	s.shown <- view
	return nil
}

func TestPageRunFeedFailure(t *testing.T) {
	port := &signalPort{shown: make(chan ReviewsView, 4)}
	page := NewPage("Shrek", "u1", &fakeSubmitter{}, port, nil)

	snapshots := make(chan []domain.Review, 1)
	snapshots <- []domain.Review{{ID: "a", MovieID: "Shrek", Rating: 4, CreatedAt: time.Now()}}
	failed := make(chan struct{})
	close(failed)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- page.Run(ctx, make(chan Event), snapshots, failed) }()

	deadline := time.After(2 * time.Second)
	for waiting := true; waiting; {
		select {
		case v := <-port.shown:
			waiting = v.Unavailable != FeedFailedMessage
		case <-deadline:
			t.Fatalf("feed failure never shown")
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}

	last := port.views[len(port.views)-1]
	if last.Unavailable != FeedFailedMessage || last.Summary.Count != 0 {
		t.Fatalf("last view = %+v, want the failure message", last)
	}
}
