package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snarg/mockprep/internal/api"
	"github.com/snarg/mockprep/internal/database"
)

type fakeSource struct {
	payloads   chan string
	interviews map[string]*database.Interview
	failFirst  atomic.Bool
	listens    atomic.Int32
}

func (f *fakeSource) Listen(ctx context.Context, channel string, fn func(string)) error {
	f.listens.Add(1)
	if f.failFirst.CompareAndSwap(true, false) {
		return errors.New("connection reset")
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p := <-f.payloads:
			fn(p)
		}
	}
}

func (f *fakeSource) GetInterview(_ context.Context, id string) (*database.Interview, error) {
	iv, ok := f.interviews[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return iv, nil
}

func newTestFeed(src *fakeSource) *ChangeFeed {
	f := NewChangeFeed(src, NewEventBus(16), zerolog.Nop())
	f.minBackoff = 10 * time.Millisecond
	f.maxBackoff = 20 * time.Millisecond
	return f
}

func receive(t *testing.T, ch <-chan api.SSEEvent) api.SSEEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return api.SSEEvent{}
}

func TestChangeFeedPublishesInterviewChanges(t *testing.T) {
	src := &fakeSource{
		payloads: make(chan string, 4),
		interviews: map[string]*database.Interview{
			"iv-1": {ID: "iv-1", UserID: "u1", Position: "SRE"},
		},
	}
	feed := newTestFeed(src)
	ch, cancel := feed.Subscribe(api.EventFilter{UserID: "u1"})
	defer cancel()

	feed.Start(context.Background())
	defer feed.Stop()

	src.payloads <- `{"op":"insert","id":"iv-1","user_id":"u1"}`
	e := receive(t, ch)
	assert.Equal(t, EventInterview, e.Type)
	assert.Equal(t, "insert", e.SubType)

	var change InterviewChange
	require.NoError(t, json.Unmarshal(e.Data, &change))
	require.NotNil(t, change.Interview)
	assert.Equal(t, "SRE", change.Interview.Position)

	src.payloads <- `{"op":"delete","id":"iv-9","user_id":"u1"}`
	e = receive(t, ch)
	assert.Equal(t, "delete", e.SubType)
	change = InterviewChange{}
	require.NoError(t, json.Unmarshal(e.Data, &change))
	assert.Equal(t, "iv-9", change.ID)
	assert.Nil(t, change.Interview)

	assert.Equal(t, "listening", feed.Status())
}

func TestChangeFeedSkipsBadNotifications(t *testing.T) {
	src := &fakeSource{payloads: make(chan string, 4), interviews: map[string]*database.Interview{
		"iv-2": {ID: "iv-2", UserID: "u1"},
	}}
	feed := newTestFeed(src)
	ch, cancel := feed.Subscribe(api.EventFilter{})
	defer cancel()

	feed.Start(context.Background())
	defer feed.Stop()

	src.payloads <- `not json`
	src.payloads <- `{"op":"update","id":"gone","user_id":"u1"}`
	src.payloads <- `{"op":"update","id":"iv-2","user_id":"u1"}`

	e := receive(t, ch)
	assert.Equal(t, "update", e.SubType)
	var change InterviewChange
	require.NoError(t, json.Unmarshal(e.Data, &change))
	assert.Equal(t, "iv-2", change.ID)
}

func TestChangeFeedReconnects(t *testing.T) {
	src := &fakeSource{payloads: make(chan string, 1), interviews: map[string]*database.Interview{}}
	src.failFirst.Store(true)

	feed := newTestFeed(src)
	feed.Start(context.Background())

	assert.Eventually(t, func() bool { return src.listens.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return feed.Status() == "listening" }, 2*time.Second, 5*time.Millisecond)

	feed.Stop()
	assert.Equal(t, "stopped", feed.Status())
}
