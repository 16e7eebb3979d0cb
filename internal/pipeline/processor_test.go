package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/freight-doc-engine/internal/adapters/store"
	"github.com/mikey/freight-doc-engine/internal/core"
	"github.com/mikey/freight-doc-engine/internal/pipeline"
)

func newTestEngine(mem *store.MemoryStore) *core.DocEngineService {
	logger := zap.NewNop()
	detector := core.NewDirectionDetector([]string{"forwarder.com"}, nil, logger)
	classifier := core.NewDocumentClassifier(detector, nil, logger)
	extractor := core.NewEntityExtractor(logger)
	resolver := core.NewLinkResolver(mem, mem, detector, logger)
	stateMachine := core.NewStateMachine(mem, mem, logger)
	actions := core.NewActionEngine(mem, time.Minute, logger)
	return core.NewDocEngineService(classifier, extractor, resolver, stateMachine, actions, detector, mem, logger)
}

func TestProcessBatchProcessesPendingMessages(t *testing.T) {
	mem := store.NewMemoryStore(zap.NewNop())
	p := pipeline.NewProcessor(newTestEngine(mem), mem, 10, time.Second, 4, time.Minute, zap.NewNop())
	ctx := context.Background()

	booking := &core.Message{
		ID:         "m1",
		Sender:     "noreply@maersk.com",
		Subject:    "Booking Confirmation",
		Body:       "Your booking is confirmed.\nBooking No: 254300123",
		ReceivedAt: time.Now(),
		ThreadID:   "t1",
	}
	chatter := &core.Message{
		ID:         "m2",
		Sender:     "buyer@customer.example",
		Subject:    "RE: rates",
		Body:       "Thanks, noted.",
		IsReply:    true,
		ReceivedAt: time.Now(),
		ThreadID:   "t2",
	}
	require.NoError(t, mem.InsertMessage(ctx, booking))
	require.NoError(t, mem.InsertMessage(ctx, chatter))

	processed := p.ProcessBatch(ctx)
	assert.Equal(t, 2, processed)

	status, _ := mem.MessageStatus("m1")
	assert.Equal(t, core.StatusProcessed, status)
	status, _ = mem.MessageStatus("m2")
	assert.Equal(t, core.StatusProcessed, status)

	s, err := mem.GetShipmentByBooking(ctx, "254300123")
	require.NoError(t, err)
	assert.Equal(t, core.StateBookingConfirmed, s.State)

	// The batch is drained; a second pass finds nothing.
	assert.Equal(t, 0, p.ProcessBatch(ctx))
}

func TestProcessBatchSameThreadMessages(t *testing.T) {
	mem := store.NewMemoryStore(zap.NewNop())
	p := pipeline.NewProcessor(newTestEngine(mem), mem, 10, time.Second, 4, time.Minute, zap.NewNop())
	ctx := context.Background()

	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	booking := &core.Message{
		ID:         "m1",
		Sender:     "noreply@maersk.com",
		Body:       "Your booking is confirmed.\nBooking No: 254300123",
		ReceivedAt: base,
		ThreadID:   "t1",
	}
	amendment := &core.Message{
		ID:         "m2",
		Sender:     "noreply@maersk.com",
		Body:       "Your booking has been amended.\nBooking No: 254300123",
		ReceivedAt: base.Add(time.Hour),
		ThreadID:   "t1",
		IsReply:    true,
	}
	require.NoError(t, mem.InsertMessage(ctx, booking))
	require.NoError(t, mem.InsertMessage(ctx, amendment))

	assert.Equal(t, 2, p.ProcessBatch(ctx))

	// Both messages in the thread land on the same shipment.
	s, err := mem.GetShipmentByBooking(ctx, "254300123")
	require.NoError(t, err)
	links, err := mem.GetLinksByShipment(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, links, 2)
	assert.Equal(t, core.StateBookingAmended, s.State)
}

func TestRetryOrphansLinksAfterShipmentAppears(t *testing.T) {
	mem := store.NewMemoryStore(zap.NewNop())
	p := pipeline.NewProcessor(newTestEngine(mem), mem, 10, time.Second, 1, time.Minute, zap.NewNop())
	ctx := context.Background()

	// The arrival notice lands first and orphans.
	notice := &core.Message{
		ID:         "m1",
		Sender:     "notify@oocl.com",
		Subject:    "Arrival Notice",
		Body:       "Cargo arrival expected.\nContainer: OOLU7654321",
		ReceivedAt: time.Now(),
		ThreadID:   "t1",
	}
	require.NoError(t, mem.InsertMessage(ctx, notice))
	require.Equal(t, 1, p.ProcessBatch(ctx))
	assert.Equal(t, 0, p.RetryOrphans(ctx))

	booking := &core.Message{
		ID:         "m2",
		Sender:     "notify@oocl.com",
		Subject:    "Booking Confirmation",
		Body:       "Your booking is confirmed.\nBooking No: 254300777\nContainer: OOLU7654321",
		ReceivedAt: time.Now(),
		ThreadID:   "t2",
	}
	require.NoError(t, mem.InsertMessage(ctx, booking))
	require.Equal(t, 1, p.ProcessBatch(ctx))

	assert.Equal(t, 1, p.RetryOrphans(ctx))

	s, err := mem.GetShipmentByBooking(ctx, "254300777")
	require.NoError(t, err)
	assert.Equal(t, core.StateArrivalNoticeReceived, s.State)

	// The former orphan no longer shows up as one.
	orphans, err := mem.OrphanMessages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	mem := store.NewMemoryStore(zap.NewNop())
	p := pipeline.NewProcessor(newTestEngine(mem), mem, 10, 10*time.Millisecond, 1, time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("processor did not stop after cancellation")
	}
}

func TestRunRequeuesStrandedProcessingMessages(t *testing.T) {
	mem := store.NewMemoryStore(zap.NewNop())
	p := pipeline.NewProcessor(newTestEngine(mem), mem, 10, time.Hour, 1, time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	// A previous daemon claimed this message and died before finishing.
	msg := &core.Message{
		ID:         "m1",
		Sender:     "noreply@maersk.com",
		Subject:    "Booking Confirmation",
		Body:       "Your booking is confirmed.\nBooking No: 254300123",
		ReceivedAt: time.Now(),
		ThreadID:   "t1",
	}
	require.NoError(t, mem.InsertMessage(ctx, msg))
	require.NoError(t, mem.SetMessageStatus(ctx, "m1", core.StatusProcessing, ""))

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// Long tickers keep the loop idle after the startup sweep, so the
	// message can only have been handled by that sweep.
	require.Eventually(t, func() bool {
		status, _ := mem.MessageStatus("m1")
		return status == core.StatusProcessed
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("processor did not stop after cancellation")
	}
}
