package mock

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/smallbiznis/hydrapay/internal/hydra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestServerHeadLifecycle(t *testing.T) {
	node, fc, bus := newTestNode(t)
	h := NewServer(node, bus, nil).Handler()

	commitReq := hydra.CommitRequest{Parties: []string{"alice"}}
	commitReq.UTxO.Amount = 5_000_000
	var commit hydra.CommitResponse
	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, "/commit", commitReq, &commit))
	assert.True(t, commit.Success)
	assert.Equal(t, hydra.HeadInitializing, commit.Status)

	var rejected hydra.ErrorResponse
	submit := hydra.SubmitRequest{Transaction: hydra.Tx{From: "alice", To: "bob", AmountLovelace: 1_000_000}}
	require.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodPost, "/heads/"+commit.HeadID+"/transactions", submit, &rejected))
	assert.True(t, rejected.NotOpen)
	assert.Equal(t, "Head is Initializing, not Open", rejected.Error)

	fc.Advance(2 * time.Second)
	require.Eventually(t, func() bool {
		var head hydra.HeadResponse
		doJSON(t, h, http.MethodGet, "/heads/"+commit.HeadID, nil, &head)
		return head.Status == hydra.HeadOpen
	}, 2*time.Second, 10*time.Millisecond)

	var submitted hydra.SubmitResponse
	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, "/heads/"+commit.HeadID+"/transactions", submit, &submitted))
	assert.NotEmpty(t, submitted.TransactionID)

	var tx hydra.TransactionResponse
	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, "/transactions/"+submitted.TransactionID, nil, &tx))
	assert.Equal(t, int64(1_000_000), tx.Transaction.Amount)

	var closed hydra.CloseResponse
	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodDelete, "/heads/"+commit.HeadID, nil, &closed))
	assert.Equal(t, int64(4_000_000), closed.FinalBalance)
	assert.Equal(t, 1, closed.TransactionCount)

	var health hydra.HealthResponse
	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, "/health", nil, &health))
	assert.Equal(t, hydra.HealthyStatus, health.Status)
	assert.Equal(t, 1, health.ActiveHeads)
	assert.Equal(t, 1, health.TotalTransactions)
}

func TestServerUnknownHeadIsNotFound(t *testing.T) {
	node, _, bus := newTestNode(t)
	h := NewServer(node, bus, nil).Handler()

	var resp hydra.ErrorResponse
	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodGet, "/heads/head_missing", nil, &resp))
	assert.Equal(t, "Head not found", resp.Error)
	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodDelete, "/heads/head_missing", nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodGet, "/transactions/tx_missing", nil, nil))
}

func TestServerStreamsEventsOverWebsocket(t *testing.T) {
	node, _, bus := newTestNode(t)
	srv := httptest.NewServer(NewServer(node, bus, nil).Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	received := make(chan hydra.HeadEvent, 1)
	go func() {
		var ev hydra.HeadEvent
		if err := conn.ReadJSON(&ev); err == nil {
			received <- ev
		}
	}()

	// the handler subscribes after the upgrade completes, so publish until it lands
	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case ev := <-received:
			assert.Equal(t, hydra.TagTxValid, ev.Tag)
			assert.Equal(t, "head_ws", ev.HeadID)
			return
		case <-tick.C:
			bus.Publish(hydra.HeadEvent{Tag: hydra.TagTxValid, HeadID: "head_ws"})
		case <-deadline:
			t.Fatalf("no event received over websocket")
		}
	}
}
