package mock

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/hydrapay/internal/clock"
	"github.com/smallbiznis/hydrapay/internal/config"
	"github.com/smallbiznis/hydrapay/internal/hydra"
	"go.uber.org/zap"
)

// Publisher receives every event the node emits.
type Publisher interface {
	Publish(event hydra.HeadEvent)
}

type Options struct {
	OpenDelay     time.Duration
	MinProcessing time.Duration
	MaxProcessing time.Duration
	// Rand drives the processing time jitter. Nil means a time seeded source.
	Rand *rand.Rand
}

// OptionsFrom maps MOCK_* settings onto node options, keeping defaults for
// anything left at zero.
func OptionsFrom(cfg config.MockNodeConfig) Options {
	opts := DefaultOptions()
	if cfg.OpenDelay > 0 {
		opts.OpenDelay = cfg.OpenDelay
	}
	if cfg.MinProcessing > 0 {
		opts.MinProcessing = cfg.MinProcessing
	}
	if cfg.MaxProcessing > 0 {
		opts.MaxProcessing = cfg.MaxProcessing
	}
	return opts
}

func DefaultOptions() Options {
	return Options{
		OpenDelay:     2 * time.Second,
		MinProcessing: 150 * time.Millisecond,
		MaxProcessing: 250 * time.Millisecond,
	}
}

type head struct {
	id               string
	parties          []string
	status           hydra.HeadStatus
	balance          int64
	initialBalance   int64
	transactionCount int
	createdAt        time.Time
	openedAt         *time.Time
	closedAt         *time.Time
}

// Node simulates a head node in process. It implements hydra.Transport.
type Node struct {
	mu    sync.Mutex
	heads map[string]*head
	txs   map[string]hydra.Transaction
	rnd   *rand.Rand

	opts    Options
	clock   clock.Clock
	pub     Publisher
	log     *zap.Logger
	started time.Time

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ hydra.Transport = (*Node)(nil)

func NewNode(opts Options, c clock.Clock, pub Publisher, log *zap.Logger) *Node {
	if opts.MaxProcessing < opts.MinProcessing {
		opts.MaxProcessing = opts.MinProcessing
	}
	rnd := opts.Rand
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Node{
		heads:   make(map[string]*head),
		txs:     make(map[string]hydra.Transaction),
		rnd:     rnd,
		opts:    opts,
		clock:   c,
		pub:     pub,
		log:     log.Named("hydra.mock"),
		started: c.Now(),
		stop:    make(chan struct{}),
	}
}

func shortID(prefix string, n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + id[:n]
}

func (n *Node) publish(event hydra.HeadEvent) {
	if n.pub == nil {
		return
	}
	event.Timestamp = n.clock.Now()
	n.pub.Publish(event)
}

func (n *Node) InitHead(ctx context.Context, parties []string, depositLovelace int64) (hydra.InitResult, *hydra.Failure) {
	if len(parties) == 0 {
		return hydra.InitResult{}, &hydra.Failure{Reason: "at least one party is required"}
	}
	if depositLovelace <= 0 {
		return hydra.InitResult{}, &hydra.Failure{Reason: "deposit must be positive"}
	}
	select {
	case <-n.stop:
		return hydra.InitResult{}, hydra.Unavailable("node stopped")
	default:
	}

	h := &head{
		id:             shortID("head_", 8),
		parties:        append([]string(nil), parties...),
		status:         hydra.HeadInitializing,
		balance:        depositLovelace,
		initialBalance: depositLovelace,
		createdAt:      n.clock.Now(),
	}

	n.mu.Lock()
	n.heads[h.id] = h
	n.mu.Unlock()

	// register the timer before returning so a fake clock sees it
	timer := n.clock.After(n.opts.OpenDelay)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		select {
		case <-timer:
			n.open(h.id)
		case <-n.stop:
		}
	}()

	n.log.Info("head initialized", zap.String("head_id", h.id), zap.Int64("deposit", depositLovelace))
	return hydra.InitResult{HeadID: h.id, Status: hydra.HeadInitializing}, nil
}

func (n *Node) open(headID string) {
	n.mu.Lock()
	h := n.heads[headID]
	if h == nil || h.status != hydra.HeadInitializing {
		n.mu.Unlock()
		return
	}
	now := n.clock.Now()
	h.status = hydra.HeadOpen
	h.openedAt = &now
	balance := h.balance
	n.mu.Unlock()

	n.log.Info("head opened", zap.String("head_id", headID))
	n.publish(hydra.HeadEvent{Tag: hydra.TagHeadIsOpen, HeadID: headID, AmountLovelace: balance})
}

func (n *Node) GetStatus(ctx context.Context, headID string) (hydra.StatusResult, *hydra.Failure) {
	n.mu.Lock()
	defer n.mu.Unlock()

	h := n.heads[headID]
	if h == nil {
		return hydra.StatusResult{Status: hydra.HeadUnknown}, &hydra.Failure{Reason: "Head not found", NotFound: true}
	}
	out := hydra.StatusResult{
		HeadID:           h.id,
		Status:           h.status,
		Parties:          append([]string(nil), h.parties...),
		BalanceLovelace:  h.balance,
		TransactionCount: h.transactionCount,
		CreatedAt:        h.createdAt,
	}
	if h.openedAt != nil {
		openedAt := *h.openedAt
		out.OpenedAt = &openedAt
	}
	return out, nil
}

func (n *Node) SubmitTransaction(ctx context.Context, headID string, tx hydra.Tx) (hydra.SubmitResult, *hydra.Failure) {
	if tx.AmountLovelace <= 0 {
		return hydra.SubmitResult{}, &hydra.Failure{Reason: "amount must be positive"}
	}

	n.mu.Lock()
	h := n.heads[headID]
	if h == nil {
		n.mu.Unlock()
		return hydra.SubmitResult{}, &hydra.Failure{Reason: "Head not found", NotFound: true}
	}
	if h.status != hydra.HeadOpen {
		status := h.status
		n.mu.Unlock()
		return hydra.SubmitResult{}, &hydra.Failure{Reason: fmt.Sprintf("Head is %s, not Open", status), NotOpen: true}
	}
	if tx.AmountLovelace > h.balance {
		n.mu.Unlock()
		return hydra.SubmitResult{}, &hydra.Failure{Reason: "insufficient head balance"}
	}

	record := hydra.Transaction{
		TransactionID:    shortID("tx_", 12),
		HeadID:           headID,
		From:             tx.From,
		To:               tx.To,
		Amount:           tx.AmountLovelace,
		Metadata:         tx.Metadata,
		ConfirmedAt:      n.clock.Now(),
		ProcessingTimeMs: n.processingTime().Milliseconds(),
	}
	h.balance -= tx.AmountLovelace
	h.transactionCount++
	n.txs[record.TransactionID] = record
	n.mu.Unlock()

	n.publish(hydra.HeadEvent{
		Tag:            hydra.TagTxValid,
		HeadID:         headID,
		TxHash:         record.TransactionID,
		AmountLovelace: record.Amount,
	})

	return hydra.SubmitResult{
		TxHash:           record.TransactionID,
		ConfirmedAt:      record.ConfirmedAt,
		ProcessingTimeMs: record.ProcessingTimeMs,
	}, nil
}

// processingTime is uniform over [MinProcessing, MaxProcessing]. Caller holds n.mu.
func (n *Node) processingTime() time.Duration {
	span := n.opts.MaxProcessing - n.opts.MinProcessing
	if span <= 0 {
		return n.opts.MinProcessing
	}
	return n.opts.MinProcessing + time.Duration(n.rnd.Int64N(int64(span)+1))
}

func (n *Node) CloseHead(ctx context.Context, headID string) (hydra.CloseResult, *hydra.Failure) {
	n.mu.Lock()
	h := n.heads[headID]
	if h == nil {
		n.mu.Unlock()
		return hydra.CloseResult{}, &hydra.Failure{Reason: "Head not found", NotFound: true}
	}
	if h.status == hydra.HeadClosed {
		n.mu.Unlock()
		return hydra.CloseResult{}, &hydra.Failure{Reason: "Head is Closed", NotOpen: true}
	}
	now := n.clock.Now()
	h.status = hydra.HeadClosed
	h.closedAt = &now
	out := hydra.CloseResult{
		CloseTxHash:          shortID("settlement_", 12),
		FinalBalanceLovelace: h.balance,
		TransactionCount:     h.transactionCount,
	}
	n.mu.Unlock()

	n.log.Info("head closed", zap.String("head_id", headID), zap.Int64("final_balance", out.FinalBalanceLovelace))
	n.publish(hydra.HeadEvent{Tag: hydra.TagHeadIsClosed, HeadID: headID, FinalBalanceLovelace: out.FinalBalanceLovelace})
	return out, nil
}

// Subscribe is a no-op: every event already goes to the publisher.
func (n *Node) Subscribe(ctx context.Context, headID string) error {
	return nil
}

func (n *Node) HealthCheck(ctx context.Context) bool {
	select {
	case <-n.stop:
		return false
	default:
		return true
	}
}

func (n *Node) Transaction(txID string) (hydra.Transaction, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	tx, ok := n.txs[txID]
	return tx, ok
}

func (n *Node) Health() hydra.HealthResponse {
	n.mu.Lock()
	defer n.mu.Unlock()
	return hydra.HealthResponse{
		Status:            hydra.HealthyStatus,
		UptimeSeconds:     n.clock.Now().Sub(n.started).Seconds(),
		ActiveHeads:       len(n.heads),
		TotalTransactions: len(n.txs),
	}
}

// Stop cancels pending open timers and waits for them to exit.
func (n *Node) Stop() {
	n.stopOnce.Do(func() { close(n.stop) })
	n.wg.Wait()
}
