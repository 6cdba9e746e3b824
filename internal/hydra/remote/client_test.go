package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/smallbiznis/hydrapay/internal/clock"
	"github.com/smallbiznis/hydrapay/internal/hydra"
	"github.com/smallbiznis/hydrapay/internal/hydra/events"
	"github.com/smallbiznis/hydrapay/internal/hydra/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recorder struct {
	mu     sync.Mutex
	events []hydra.HeadEvent
}

func (r *recorder) Publish(ev hydra.HeadEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) tags(headID string) []hydra.EventTag {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []hydra.EventTag
	for _, ev := range r.events {
		if ev.HeadID == headID {
			out = append(out, ev.Tag)
		}
	}
	return out
}

type fixture struct {
	client *Client
	clock  *clock.FakeClock
	rec    *recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	fc := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	bus := events.NewBus()
	node := mock.NewNode(mock.DefaultOptions(), fc, bus, nil)
	srv := httptest.NewServer(mock.NewServer(node, bus, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		node.Stop()
	})

	rec := &recorder{}
	client, err := NewClient(Options{
		APIURL:  srv.URL,
		WSURL:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		Timeout: time.Second,
	}, rec, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return fixture{client: client, clock: fc, rec: rec}
}

func TestClientHeadLifecycleAgainstMockServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.True(t, f.client.HealthCheck(ctx))

	head, failure := f.client.InitHead(ctx, []string{"alice"}, 20_000_000)
	require.Nil(t, failure)
	assert.Equal(t, hydra.HeadInitializing, head.Status)

	require.NoError(t, f.client.Subscribe(ctx, head.HeadID))

	_, failure = f.client.SubmitTransaction(ctx, head.HeadID, hydra.Tx{From: "alice", To: "bob", AmountLovelace: 100_000})
	require.NotNil(t, failure)
	assert.True(t, failure.NotOpen)
	assert.False(t, failure.Unavailable)

	f.clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool {
		status, failure := f.client.GetStatus(ctx, head.HeadID)
		return failure == nil && status.Status == hydra.HeadOpen
	}, 2*time.Second, 10*time.Millisecond)

	submitted, failure := f.client.SubmitTransaction(ctx, head.HeadID, hydra.Tx{From: "alice", To: "bob", AmountLovelace: 100_000})
	require.Nil(t, failure)
	assert.NotEmpty(t, submitted.TxHash)

	closed, failure := f.client.CloseHead(ctx, head.HeadID)
	require.Nil(t, failure)
	assert.Equal(t, int64(19_900_000), closed.FinalBalanceLovelace)
	assert.Equal(t, 1, closed.TransactionCount)

	require.Eventually(t, func() bool {
		tags := f.rec.tags(head.HeadID)
		return len(tags) == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []hydra.EventTag{hydra.TagHeadIsOpen, hydra.TagTxValid, hydra.TagHeadIsClosed}, f.rec.tags(head.HeadID))
}

func TestClientIgnoresEventsForUnwatchedHeads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	watched, failure := f.client.InitHead(ctx, []string{"alice"}, 5_000_000)
	require.Nil(t, failure)
	other, failure := f.client.InitHead(ctx, []string{"bob"}, 5_000_000)
	require.Nil(t, failure)
	require.NoError(t, f.client.Subscribe(ctx, watched.HeadID))

	f.clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool {
		return len(f.rec.tags(watched.HeadID)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, f.rec.tags(other.HeadID))
}

func TestClientRedialsAfterConnectionDrop(t *testing.T) {
	var dials atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if dials.Add(1) == 1 {
			// drop the first connection without a close frame
			return
		}
		_ = conn.WriteJSON(hydra.HeadEvent{Tag: hydra.TagHeadIsOpen, HeadID: "head_1"})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	rec := &recorder{}
	client, err := NewClient(Options{
		APIURL:  srv.URL,
		WSURL:   "ws" + strings.TrimPrefix(srv.URL, "http"),
		Timeout: time.Second,
	}, rec, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Subscribe(context.Background(), "head_1"))

	require.Eventually(t, func() bool {
		return len(rec.tags("head_1")) == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []hydra.EventTag{hydra.TagHeadIsOpen}, rec.tags("head_1"))
	assert.Equal(t, int32(2), dials.Load())
}

func TestClientSubscribeAfterCloseFails(t *testing.T) {
	client, err := NewClient(Options{APIURL: "http://127.0.0.1:1", WSURL: "ws://127.0.0.1:1"}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	assert.Error(t, client.Subscribe(context.Background(), "head_1"))
}

func TestClientReportsNotFound(t *testing.T) {
	f := newFixture(t)

	status, failure := f.client.GetStatus(context.Background(), "head_missing")
	require.NotNil(t, failure)
	assert.True(t, failure.NotFound)
	assert.Equal(t, hydra.HeadUnknown, status.Status)
	assert.Equal(t, "Head not found", failure.Reason)
}

func TestClientUnreachableNodeIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(Options{APIURL: url, WSURL: "ws" + strings.TrimPrefix(url, "http") + "/ws", Timeout: 200 * time.Millisecond}, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	assert.False(t, client.HealthCheck(ctx))
	_, failure := client.InitHead(ctx, []string{"alice"}, 5_000_000)
	require.NotNil(t, failure)
	assert.True(t, failure.Unavailable)
	assert.Error(t, client.Subscribe(ctx, "head_x"))
}

func TestClientServerErrorsAreUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"boom"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIURL: srv.URL, Timeout: time.Second}, nil, nil)
	require.NoError(t, err)

	_, failure := client.CloseHead(context.Background(), "head_x")
	require.NotNil(t, failure)
	assert.True(t, failure.Unavailable)
	assert.Equal(t, "boom", failure.Reason)
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(Options{}, nil, nil)
	assert.Error(t, err)
}
