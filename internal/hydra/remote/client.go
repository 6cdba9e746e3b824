package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/smallbiznis/hydrapay/internal/hydra"
	"go.uber.org/zap"
)

const (
	readRetryCount = 2
	readRetryWait  = 100 * time.Millisecond

	redialMinWait = 250 * time.Millisecond
	redialMaxWait = 5 * time.Second
)

// Publisher receives events read off the node websocket.
type Publisher interface {
	Publish(event hydra.HeadEvent)
}

type Options struct {
	APIURL  string
	WSURL   string
	Timeout time.Duration
}

// Client talks to a node over REST and shares one websocket across every
// subscribed head.
type Client struct {
	reads  *resty.Client
	writes *resty.Client
	wsURL  string
	dialer *websocket.Dialer
	pub    Publisher
	log    *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	watched map[string]struct{}
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

var _ hydra.Transport = (*Client)(nil)

func retryOnErrOr5xx(r *resty.Response, err error) bool {
	return err != nil || (r != nil && r.StatusCode() >= http.StatusInternalServerError)
}

func NewClient(opts Options, pub Publisher, log *zap.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.APIURL), "/")
	if base == "" {
		return nil, errors.New("hydra api url is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	writes := resty.New().
		SetBaseURL(base).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")
	reads := resty.New().
		SetBaseURL(base).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(readRetryCount).
		SetRetryWaitTime(readRetryWait).
		AddRetryCondition(retryOnErrOr5xx)

	return &Client{
		reads:   reads,
		writes:  writes,
		wsURL:   strings.TrimSpace(opts.WSURL),
		dialer:  &websocket.Dialer{HandshakeTimeout: opts.Timeout},
		pub:     pub,
		log:     log.Named("hydra.remote"),
		watched: make(map[string]struct{}),
		done:    make(chan struct{}),
	}, nil
}

// failureOf turns a transport error or non-2xx response into a Failure.
func failureOf(op string, res *resty.Response, err error) *hydra.Failure {
	if err != nil {
		return hydra.Unavailable(fmt.Sprintf("%s: %v", op, err))
	}
	if res.IsSuccess() {
		return nil
	}
	reason := fmt.Sprintf("%s: unexpected HTTP %d", op, res.StatusCode())
	body, _ := res.Error().(*hydra.ErrorResponse)
	if body != nil && body.Error != "" {
		reason = body.Error
	}
	switch {
	case res.StatusCode() >= http.StatusInternalServerError:
		return hydra.Unavailable(reason)
	case res.StatusCode() == http.StatusNotFound:
		return &hydra.Failure{Reason: reason, NotFound: true}
	default:
		return &hydra.Failure{Reason: reason, NotOpen: body != nil && body.NotOpen}
	}
}

func (c *Client) InitHead(ctx context.Context, parties []string, depositLovelace int64) (hydra.InitResult, *hydra.Failure) {
	req := hydra.CommitRequest{Parties: parties}
	req.UTxO.Amount = depositLovelace

	var out hydra.CommitResponse
	res, err := c.writes.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&hydra.ErrorResponse{}).
		Post("/commit")
	if f := failureOf("commit", res, err); f != nil {
		return hydra.InitResult{}, f
	}
	if out.HeadID == "" {
		return hydra.InitResult{}, &hydra.Failure{Reason: "commit: node returned no head id"}
	}
	return hydra.InitResult{HeadID: out.HeadID, Status: out.Status}, nil
}

func (c *Client) GetStatus(ctx context.Context, headID string) (hydra.StatusResult, *hydra.Failure) {
	var out hydra.HeadResponse
	res, err := c.reads.R().
		SetContext(ctx).
		SetPathParam("headId", headID).
		SetResult(&out).
		SetError(&hydra.ErrorResponse{}).
		Get("/heads/{headId}")
	if f := failureOf("get head", res, err); f != nil {
		return hydra.StatusResult{Status: hydra.HeadUnknown}, f
	}
	return hydra.StatusResult{
		HeadID:           out.HeadID,
		Status:           out.Status,
		Parties:          out.Parties,
		BalanceLovelace:  out.Balance,
		TransactionCount: out.TransactionCount,
		CreatedAt:        out.CreatedAt,
		OpenedAt:         out.OpenedAt,
	}, nil
}

func (c *Client) SubmitTransaction(ctx context.Context, headID string, tx hydra.Tx) (hydra.SubmitResult, *hydra.Failure) {
	var out hydra.SubmitResponse
	res, err := c.writes.R().
		SetContext(ctx).
		SetPathParam("headId", headID).
		SetBody(hydra.SubmitRequest{Transaction: tx}).
		SetResult(&out).
		SetError(&hydra.ErrorResponse{}).
		Post("/heads/{headId}/transactions")
	if f := failureOf("submit transaction", res, err); f != nil {
		return hydra.SubmitResult{}, f
	}
	return hydra.SubmitResult{
		TxHash:           out.TransactionID,
		ConfirmedAt:      out.ConfirmedAt,
		ProcessingTimeMs: out.ProcessingTimeMs,
	}, nil
}

func (c *Client) CloseHead(ctx context.Context, headID string) (hydra.CloseResult, *hydra.Failure) {
	var out hydra.CloseResponse
	res, err := c.writes.R().
		SetContext(ctx).
		SetPathParam("headId", headID).
		SetResult(&out).
		SetError(&hydra.ErrorResponse{}).
		Delete("/heads/{headId}")
	if f := failureOf("close head", res, err); f != nil {
		return hydra.CloseResult{}, f
	}
	return hydra.CloseResult{
		CloseTxHash:          out.TransactionID,
		FinalBalanceLovelace: out.FinalBalance,
		TransactionCount:     out.TransactionCount,
	}, nil
}

func (c *Client) HealthCheck(ctx context.Context) bool {
	var out hydra.HealthResponse
	res, err := c.reads.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/health")
	if err != nil || !res.IsSuccess() {
		return false
	}
	return out.Status == hydra.HealthyStatus
}

// Subscribe connects the shared websocket on first use and starts
// forwarding events for headID.
func (c *Client) Subscribe(ctx context.Context, headID string) error {
	if c.wsURL == "" {
		return errors.New("hydra websocket url is not configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("hydra client is closed")
	}

	c.watched[headID] = struct{}{}
	if c.conn != nil {
		return nil
	}

	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		delete(c.watched, headID)
		return fmt.Errorf("dial hydra websocket: %w", err)
	}
	c.conn = conn
	c.wg.Add(1)
	go c.readLoop(conn)

	c.log.Info("connected to hydra websocket", zap.String("url", c.wsURL))
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		var ev hydra.HeadEvent
		if err := conn.ReadJSON(&ev); err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			redial := !c.closed && len(c.watched) > 0
			c.mu.Unlock()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, net.ErrClosed) {
				c.log.Warn("hydra websocket closed", zap.Error(err))
			}
			if redial {
				c.redial()
			}
			return
		}
		if !ev.Tag.Known() {
			continue
		}

		c.mu.Lock()
		_, watched := c.watched[ev.HeadID]
		if watched && ev.Tag == hydra.TagHeadIsClosed {
			delete(c.watched, ev.HeadID)
		}
		c.mu.Unlock()

		if watched && c.pub != nil {
			c.pub.Publish(ev)
		}
	}
}

// redial reconnects with capped exponential backoff while any head is still
// watched. It runs on the exiting reader, so Close waits for it.
func (c *Client) redial() {
	wait := redialMinWait
	for {
		select {
		case <-c.done:
			return
		case <-time.After(wait):
		}

		c.mu.Lock()
		stale := c.closed || c.conn != nil || len(c.watched) == 0
		c.mu.Unlock()
		if stale {
			return
		}

		conn, _, err := c.dialer.Dial(c.wsURL, nil)
		if err != nil {
			wait = min(wait*2, redialMaxWait)
			c.log.Warn("hydra websocket redial failed", zap.Duration("retry_in", wait), zap.Error(err))
			continue
		}

		c.mu.Lock()
		if c.closed || c.conn != nil {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.wg.Add(1)
		go c.readLoop(conn)
		watching := len(c.watched)
		c.mu.Unlock()

		c.log.Info("reconnected to hydra websocket", zap.String("url", c.wsURL), zap.Int("watched_heads", watching))
		return
	}
}

// Close drops the websocket and waits for the reader to exit.
func (c *Client) Close() error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	var err error
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = conn.Close()
	}
	c.wg.Wait()
	return err
}
