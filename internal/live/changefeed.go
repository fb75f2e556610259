package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/mockprep/internal/api"
	"github.com/snarg/mockprep/internal/database"
)

// EventInterview is the event type of every interview change.
const EventInterview = "interview"

// Source is the database side of the change feed.
type Source interface {
	Listen(ctx context.Context, channel string, fn func(payload string)) error
	GetInterview(ctx context.Context, id string) (*database.Interview, error)
}

// notification is the trigger payload on the interview_changes channel.
type notification struct {
	Op     string `json:"op"` // insert, update, delete
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

// InterviewChange is the payload of an "interview" event.
type InterviewChange struct {
	Op        string              `json:"op"`
	ID        string              `json:"id"`
	Interview *database.Interview `json:"interview,omitempty"` // nil on delete
}

// ChangeFeed turns database notifications into events on the bus.
// It implements api.LiveFeed.
type ChangeFeed struct {
	src Source
	bus *EventBus
	log zerolog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	status atomic.Value // string: "starting", "listening", "reconnecting", "stopped"
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewChangeFeed creates a feed reading from src and publishing to bus.
func NewChangeFeed(src Source, bus *EventBus, log zerolog.Logger) *ChangeFeed {
	f := &ChangeFeed{
		src:        src,
		bus:        bus,
		log:        log.With().Str("component", "live").Logger(),
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
	f.status.Store("stopped")
	return f
}

// Start runs the listen loop in the background until Stop or ctx cancellation.
func (f *ChangeFeed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.status.Store("starting")
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.run(ctx)
	}()
}

// Stop cancels the listen loop and waits for it to exit.
func (f *ChangeFeed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
	f.status.Store("stopped")
}

func (f *ChangeFeed) run(ctx context.Context) {
	backoff := f.minBackoff
	for {
		f.status.Store("listening")
		started := time.Now()
		err := f.src.Listen(ctx, database.InterviewChannel, func(payload string) {
			f.handle(ctx, payload)
		})
		if ctx.Err() != nil {
			f.log.Info().Msg("change feed stopped")
			return
		}

		// a connection that stayed up for a while starts over at the minimum
		if time.Since(started) > f.maxBackoff {
			backoff = f.minBackoff
		}
		f.status.Store("reconnecting")
		f.log.Warn().Err(err).Dur("backoff", backoff).Msg("change feed lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, f.maxBackoff)
	}
}

func (f *ChangeFeed) handle(ctx context.Context, payload string) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		f.log.Warn().Err(err).Str("payload", payload).Msg("malformed change notification")
		return
	}

	change := InterviewChange{Op: n.Op, ID: n.ID}
	if n.Op != "delete" {
		iv, err := f.src.GetInterview(ctx, n.ID)
		switch {
		case errors.Is(err, database.ErrNotFound):
			// deleted before we could load it; the delete notification follows
			return
		case err != nil:
			f.log.Warn().Err(err).Str("interview_id", n.ID).Msg("failed to load changed interview")
			return
		}
		change.Interview = iv
	}

	f.bus.Publish(EventData{
		Type:    EventInterview,
		SubType: n.Op,
		UserID:  n.UserID,
		Payload: change,
	})
}

// Subscribe implements api.LiveFeed.
func (f *ChangeFeed) Subscribe(filter api.EventFilter) (<-chan api.SSEEvent, func()) {
	return f.bus.Subscribe(filter)
}

// ReplaySince implements api.LiveFeed.
func (f *ChangeFeed) ReplaySince(lastEventID string, filter api.EventFilter) []api.SSEEvent {
	return f.bus.ReplaySince(lastEventID, filter)
}

// Status implements api.LiveFeed.
func (f *ChangeFeed) Status() string {
	s, _ := f.status.Load().(string)
	return s
}

// SubscriberCount reports connected subscribers for metrics.
func (f *ChangeFeed) SubscriberCount() int {
	return f.bus.SubscriberCount()
}
