// Package bot wires log ingestion to the reconciliation engine and
// owns the process lifecycle.
package bot

import (
	"context"
	"log"
	"sync"
	"time"

	"swiftpay-bot/internal/domain"
	"swiftpay-bot/internal/events"
	"swiftpay-bot/internal/observability"
	"swiftpay-bot/internal/reconcile"
	"swiftpay-bot/internal/solana"
	"swiftpay-bot/internal/storage"
)

const (
	// DefaultDrainTimeout bounds how long shutdown waits for in-flight
	// payout flows.
	DefaultDrainTimeout = 30 * time.Second

	drainPollInterval = 1 * time.Second

	archiveFlushSize     = 100
	archiveFlushInterval = 5 * time.Second
)

// EventHandler consumes one parsed event.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *domain.ParsedEvent)
	Pending() *reconcile.PendingSet
}

// Runner subscribes to program logs, archives raw notifications, and
// dispatches parsed events to the reconciliation engine.
type Runner struct {
	ws           solana.WSClient
	rpc          solana.RPCClient
	parser       *events.Parser
	engine       EventHandler
	archive      storage.LogArchiveStore
	programID    string
	drainTimeout time.Duration
	logger       *log.Logger

	wg            sync.WaitGroup
	archiveBuffer []*domain.LogNotificationRecord
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	WS           solana.WSClient
	RPC          solana.RPCClient // optional, used to resolve block times
	Parser       *events.Parser
	Engine       EventHandler
	Archive      storage.LogArchiveStore // optional
	ProgramID    string
	DrainTimeout time.Duration
	Logger       *log.Logger
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOptions) *Runner {
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Runner{
		ws:           opts.WS,
		rpc:          opts.RPC,
		parser:       opts.Parser,
		engine:       opts.Engine,
		archive:      opts.Archive,
		programID:    opts.ProgramID,
		drainTimeout: opts.DrainTimeout,
		logger:       opts.Logger,
	}
}

// Run subscribes and processes notifications until the context is
// cancelled, then drains in-flight flows.
func (r *Runner) Run(ctx context.Context) error {
	notifCh, err := r.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{r.programID}})
	if err != nil {
		return err
	}
	r.logger.Printf("[bot] subscribed to logs mentioning %s", r.programID)

	flushTicker := time.NewTicker(archiveFlushInterval)
	defer flushTicker.Stop()

	// Detached context for event flows: a payout must finish its audit
	// and confirmation even while the process is shutting down.
	flowCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			r.flushArchive(flowCtx)
			return r.drain(flowCtx)

		case <-flushTicker.C:
			r.flushArchive(ctx)
			observability.DefaultMetrics.PendingFlows.Set(float64(r.engine.Pending().Len()))

		case notif, ok := <-notifCh:
			if !ok {
				r.flushArchive(flowCtx)
				return r.drain(flowCtx)
			}
			r.handleNotification(ctx, flowCtx, notif)
		}
	}
}

func (r *Runner) handleNotification(ctx, flowCtx context.Context, notif solana.LogNotification) {
	observability.RecordNotificationReceived()
	receivedAt := time.Now().UnixMilli()

	r.bufferArchive(ctx, &domain.LogNotificationRecord{
		Signature:  notif.Signature,
		Slot:       notif.Slot,
		Logs:       notif.Logs,
		ReceivedAt: receivedAt,
	})

	// Logs from failed transactions can carry event lines for state
	// changes that never landed. Archive them, act on nothing.
	if notif.Err != nil {
		r.logger.Printf("[bot] skipping failed transaction %s, err=%v", notif.Signature, notif.Err)
		return
	}

	parsed := r.parser.ParseLogs(notif.Logs, notif.Signature, r.eventTime(ctx, notif.Signature, receivedAt))
	for _, event := range parsed {
		observability.RecordEventParsed(string(event.Kind))
		r.wg.Add(1)
		go func(ev *domain.ParsedEvent) {
			defer r.wg.Done()
			r.engine.HandleEvent(flowCtx, ev)
		}(event)
	}
}

// eventTime resolves the transaction's block time in milliseconds,
// falling back to the local receive time when the transaction is not
// yet queryable.
func (r *Runner) eventTime(ctx context.Context, signature string, receivedAt int64) int64 {
	if r.rpc == nil {
		return receivedAt
	}
	tx, err := r.rpc.GetTransaction(ctx, signature)
	if err != nil || tx == nil || tx.BlockTime == 0 {
		return receivedAt
	}
	return tx.BlockTime * 1000
}

// bufferArchive queues a raw notification and flushes when the batch
// is full.
func (r *Runner) bufferArchive(ctx context.Context, rec *domain.LogNotificationRecord) {
	if r.archive == nil {
		return
	}
	r.archiveBuffer = append(r.archiveBuffer, rec)
	if len(r.archiveBuffer) >= archiveFlushSize {
		r.flushArchive(ctx)
	}
}

func (r *Runner) flushArchive(ctx context.Context) {
	if r.archive == nil || len(r.archiveBuffer) == 0 {
		return
	}
	if err := r.archive.InsertBulk(ctx, r.archiveBuffer); err != nil {
		r.logger.Printf("[bot] archive flush failed, dropping %d records: %v", len(r.archiveBuffer), err)
	}
	r.archiveBuffer = r.archiveBuffer[:0]
}

// drain waits for in-flight payout flows to finish, polling the
// pending set until it empties or the timeout elapses.
func (r *Runner) drain(ctx context.Context) error {
	pending := r.engine.Pending()
	if pending.Len() == 0 {
		r.waitForHandlers()
		r.logger.Println("[bot] shutdown with no in-flight flows")
		return nil
	}

	r.logger.Printf("[bot] draining %d in-flight flows, timeout %s", pending.Len(), r.drainTimeout)
	deadline := time.Now().Add(r.drainTimeout)

	for pending.Len() > 0 {
		if time.Now().After(deadline) {
			r.logger.Printf("[bot] WARN drain timed out with %d flows still in flight: %v",
				pending.Len(), pending.Snapshot())
			return nil
		}
		time.Sleep(drainPollInterval)
	}

	r.waitForHandlers()
	r.logger.Println("[bot] drain complete")
	return nil
}

// waitForHandlers waits briefly for handler goroutines past their
// pending-set window (notification, final audit write).
func (r *Runner) waitForHandlers() {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		r.logger.Println("[bot] WARN handler goroutines still running at shutdown")
	}
}
