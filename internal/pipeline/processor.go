package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/freight-doc-engine/internal/core"
	"go.uber.org/zap"
)

// Processor drains the pending message queue in batches, running the
// engine over each message with a bounded worker pool. Messages within
// one email thread are serialized so a reply never races the message it
// answers; cross-thread races are handled by the store's uniqueness and
// state-rank guards.
type Processor struct {
	service  *core.DocEngineService
	messages core.MessageStore
	logger   *zap.Logger

	batchSize           int
	pollInterval        time.Duration
	workers             int
	orphanRetryInterval time.Duration

	threadLocks *keyedLocks
}

// NewProcessor creates a new batch processor.
func NewProcessor(
	service *core.DocEngineService,
	messages core.MessageStore,
	batchSize int,
	pollInterval time.Duration,
	workers int,
	orphanRetryInterval time.Duration,
	logger *zap.Logger,
) *Processor {
	if batchSize <= 0 {
		batchSize = 50
	}
	if workers <= 0 {
		workers = 1
	}
	return &Processor{
		service:             service,
		messages:            messages,
		logger:              logger,
		batchSize:           batchSize,
		pollInterval:        pollInterval,
		workers:             workers,
		orphanRetryInterval: orphanRetryInterval,
		threadLocks:         newKeyedLocks(),
	}
}

// Run polls for pending messages until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("Pipeline processor starting",
		zap.Int("batch_size", p.batchSize),
		zap.Int("workers", p.workers),
		zap.Duration("poll_interval", p.pollInterval))

	poll := time.NewTicker(p.pollInterval)
	defer poll.Stop()

	orphans := time.NewTicker(p.orphanRetryInterval)
	defer orphans.Stop()

	// Messages claimed by a previous run that died mid-batch are still
	// marked processing; sweep them back so they get picked up below.
	if n, err := p.messages.RequeueInFlight(ctx); err != nil {
		p.logger.Error("Failed to requeue in-flight messages", zap.Error(err))
	} else if n > 0 {
		p.logger.Info("Requeued in-flight messages from previous run", zap.Int("count", n))
	}

	// Drain whatever queued up before the daemon started.
	p.ProcessBatch(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Pipeline processor stopping")
			return ctx.Err()
		case <-poll.C:
			p.ProcessBatch(ctx)
		case <-orphans.C:
			p.RetryOrphans(ctx)
		}
	}
}

// ProcessBatch claims one page of pending messages and processes them
// concurrently. Returns the number of messages attempted.
func (p *Processor) ProcessBatch(ctx context.Context) int {
	page, err := p.messages.PendingMessages(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("Failed to fetch pending messages", zap.Error(err))
		return 0
	}
	if len(page) == 0 {
		return 0
	}

	// Claim the page before handing it to workers so a second processor
	// polling the same store skips these messages.
	claimed := page[:0]
	for i := range page {
		if err := p.messages.SetMessageStatus(ctx, page[i].ID, core.StatusProcessing, ""); err != nil {
			p.logger.Warn("Failed to claim message",
				zap.String("message_id", page[i].ID), zap.Error(err))
			continue
		}
		claimed = append(claimed, page[i])
	}

	jobs := make(chan *core.Message)
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range jobs {
				p.processOne(ctx, msg)
			}
		}()
	}

	for i := range claimed {
		select {
		case jobs <- &claimed[i]:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	return len(claimed)
}

// processOne runs the full engine over one message and records the
// terminal status. A message is processed only when classification,
// extraction and link resolution all completed; any failure along the
// way leaves it failed with the error recorded for triage.
func (p *Processor) processOne(ctx context.Context, msg *core.Message) {
	unlock := p.threadLocks.lock(msg.ThreadID)
	defer unlock()

	result, err := p.service.ProcessMessage(ctx, msg)
	if err != nil {
		p.logger.Error("Message processing failed",
			zap.String("message_id", msg.ID), zap.Error(err))
		if serr := p.messages.SetMessageStatus(ctx, msg.ID, core.StatusFailed, err.Error()); serr != nil {
			p.logger.Error("Failed to record failure status",
				zap.String("message_id", msg.ID), zap.Error(serr))
		}
		return
	}

	if err := p.messages.SetMessageStatus(ctx, msg.ID, core.StatusProcessed, ""); err != nil {
		p.logger.Error("Failed to record processed status",
			zap.String("message_id", msg.ID), zap.Error(err))
		return
	}

	fields := []zap.Field{
		zap.String("message_id", msg.ID),
		zap.String("doc_type", string(result.Classification.DocType)),
		zap.String("direction", string(result.Classification.Direction)),
		zap.Int("confidence", result.Classification.Confidence),
		zap.Int("entities", len(result.Entities)),
	}
	if result.Resolution != nil && result.Resolution.Linked {
		fields = append(fields,
			zap.String("shipment_id", result.Resolution.ShipmentID),
			zap.String("link_method", string(result.Resolution.Method)),
			zap.String("state", result.State.String()))
	}
	p.logger.Info("Message processed", fields...)
}

// RetryOrphans re-runs link resolution over processed-but-unlinked
// messages. Returns how many got linked.
func (p *Processor) RetryOrphans(ctx context.Context) int {
	page, err := p.messages.OrphanMessages(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("Failed to fetch orphan messages", zap.Error(err))
		return 0
	}
	if len(page) == 0 {
		return 0
	}

	linked, err := p.service.ReResolveOrphans(ctx, page)
	if err != nil {
		p.logger.Error("Orphan re-resolution failed", zap.Error(err))
	}
	if linked > 0 {
		p.logger.Info("Orphan messages linked",
			zap.Int("linked", linked), zap.Int("candidates", len(page)))
	}
	return linked
}

// keyedLocks hands out one mutex per key, created on demand.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
