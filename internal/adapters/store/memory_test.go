package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/freight-doc-engine/internal/adapters/store"
	"github.com/mikey/freight-doc-engine/internal/core"
)

func TestInsertMessageIdempotent(t *testing.T) {
	m := store.NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	msg := &core.Message{ID: "m1", Subject: "first", ReceivedAt: time.Now()}
	require.NoError(t, m.InsertMessage(ctx, msg))

	// Redelivery of the same message id is a no-op, not an overwrite.
	dup := &core.Message{ID: "m1", Subject: "second", ReceivedAt: time.Now()}
	require.NoError(t, m.InsertMessage(ctx, dup))

	got, err := m.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Subject)
}

func TestGetMessageNotFound(t *testing.T) {
	m := store.NewMemoryStore(zap.NewNop())
	_, err := m.GetMessage(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestPendingMessagesOrderAndStatus(t *testing.T) {
	m := store.NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	require.NoError(t, m.InsertMessage(ctx, &core.Message{ID: "m2", ReceivedAt: base.Add(time.Hour)}))
	require.NoError(t, m.InsertMessage(ctx, &core.Message{ID: "m1", ReceivedAt: base}))
	require.NoError(t, m.InsertMessage(ctx, &core.Message{ID: "m3", ReceivedAt: base.Add(2 * time.Hour)}))

	pending, err := m.PendingMessages(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "m1", pending[0].ID)
	assert.Equal(t, "m2", pending[1].ID)

	require.NoError(t, m.SetMessageStatus(ctx, "m1", core.StatusProcessed, ""))
	status, _ := m.MessageStatus("m1")
	assert.Equal(t, core.StatusProcessed, status)

	pending, err = m.PendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "m2", pending[0].ID)
}

func TestSetMessageStatusStoresFailureReason(t *testing.T) {
	m := store.NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, m.InsertMessage(ctx, &core.Message{ID: "m1", ReceivedAt: time.Now()}))
	require.NoError(t, m.SetMessageStatus(ctx, "m1", core.StatusFailed, "fallback classification: timeout"))

	status, reason := m.MessageStatus("m1")
	assert.Equal(t, core.StatusFailed, status)
	assert.Equal(t, "fallback classification: timeout", reason)

	assert.ErrorIs(t, m.SetMessageStatus(ctx, "missing", core.StatusFailed, "x"), core.ErrNotFound)
}

func TestSaveClassificationManualReviewGuard(t *testing.T) {
	m := store.NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	pinned := &core.Classification{MessageID: "m1", DocType: core.DocInvoice, ManualReview: true}
	require.NoError(t, m.SaveClassification(ctx, pinned))

	// Automated writes must not overwrite a human decision.
	auto := &core.Classification{MessageID: "m1", DocType: core.DocBookingConfirmation}
	assert.ErrorIs(t, m.SaveClassification(ctx, auto), core.ErrManualReview)

	got, err := m.GetClassification(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, core.DocInvoice, got.DocType)

	// A manual write may replace a manual record.
	repin := &core.Classification{MessageID: "m1", DocType: core.DocDraftBL, ManualReview: true}
	require.NoError(t, m.SaveClassification(ctx, repin))
	got, err = m.GetClassification(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, core.DocDraftBL, got.DocType)
}

func TestSaveClassificationUpsert(t *testing.T) {
	m := store.NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	first := &core.Classification{MessageID: "m1", DocType: core.DocUnknown, Confidence: 0}
	require.NoError(t, m.SaveClassification(ctx, first))

	second := &core.Classification{MessageID: "m1", DocType: core.DocArrivalNotice, Confidence: 92}
	require.NoError(t, m.SaveClassification(ctx, second))

	got, err := m.GetClassification(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, core.DocArrivalNotice, got.DocType)
}

func TestCreateShipmentDuplicateBooking(t *testing.T) {
	m := store.NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, m.CreateShipment(ctx, &core.Shipment{ID: "s1", BookingNumber: "254300123"}))
	err := m.CreateShipment(ctx, &core.Shipment{ID: "s2", BookingNumber: "254300123"})
	assert.ErrorIs(t, err, core.ErrDuplicateBooking)
}

func TestShipmentLookups(t *testing.T) {
	m := store.NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	s := &core.Shipment{
		ID:                  "s1",
		BookingNumber:       "254300123",
		BLNumber:            "FWDMUM26001",
		MBLNumber:           "MAEU123456789",
		ContainerNumber:     "MSKU1234567",
		SecondaryContainers: []string{"MSKU7654321"},
	}
	require.NoError(t, m.CreateShipment(ctx, s))

	got, err := m.GetShipmentByBooking(ctx, "254300123")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	got, err = m.GetShipmentByBL(ctx, "FWDMUM26001")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	// MBL matches through the BL lookup as well.
	got, err = m.GetShipmentByBL(ctx, "MAEU123456789")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	got, err = m.GetShipmentByContainer(ctx, "MSKU1234567")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	got, err = m.GetShipmentByContainer(ctx, "MSKU7654321")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	_, err = m.GetShipmentByBooking(ctx, "999999999")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdateShipmentPreservesState(t *testing.T) {
	m := store.NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, m.CreateShipment(ctx, &core.Shipment{ID: "s1", BookingNumber: "254300123"}))
	at := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, m.UpdateShipmentState(ctx, "s1", core.StateShippedOnBoard, at))

	// An identifier backfill carrying a stale state must not clobber the
	// recorded workflow state.
	stale, err := m.GetShipment(ctx, "s1")
	require.NoError(t, err)
	stale.BLNumber = "MAEU123456789"
	stale.State = core.StateNone
	require.NoError(t, m.UpdateShipment(ctx, stale))

	got, err := m.GetShipment(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "MAEU123456789", got.BLNumber)
	assert.Equal(t, core.StateShippedOnBoard, got.State)
	assert.Equal(t, at, got.StateUpdatedAt)
}

func TestUpdateShipmentStateGuard(t *testing.T) {
	m := store.NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, m.CreateShipment(ctx, &core.Shipment{ID: "s1", BookingNumber: "254300123"}))
	require.NoError(t, m.UpdateShipmentState(ctx, "s1", core.StateShippedOnBoard, time.Now()))

	// Lower or equal ranks are ignored.
	require.NoError(t, m.UpdateShipmentState(ctx, "s1", core.StateBookingConfirmed, time.Now()))
	got, err := m.GetShipment(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, core.StateShippedOnBoard, got.State)

	// Cancelled is terminal.
	require.NoError(t, m.UpdateShipmentState(ctx, "s1", core.StateCancelled, time.Now()))
	require.NoError(t, m.UpdateShipmentState(ctx, "s1", core.StatePODReceived, time.Now()))
	got, err = m.GetShipment(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, core.StateCancelled, got.State)
}

func TestAddLinkIdempotent(t *testing.T) {
	m := store.NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	link := &core.ShipmentDocument{ShipmentID: "s1", MessageID: "m1", DocType: core.DocBillOfLading}
	require.NoError(t, m.AddLink(ctx, link))
	require.NoError(t, m.AddLink(ctx, link))

	links, err := m.GetLinksByShipment(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, links, 1)

	got, err := m.GetLinkByMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ShipmentID)

	_, err = m.GetLinkByMessage(ctx, "m2")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestOrphanMessages(t *testing.T) {
	m := store.NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	require.NoError(t, m.InsertMessage(ctx, &core.Message{ID: "m1", ReceivedAt: base}))
	require.NoError(t, m.InsertMessage(ctx, &core.Message{ID: "m2", ReceivedAt: base.Add(time.Hour)}))
	require.NoError(t, m.InsertMessage(ctx, &core.Message{ID: "m3", ReceivedAt: base.Add(2 * time.Hour)}))

	// m1: processed and linked. m2: processed, unlinked. m3: still pending.
	require.NoError(t, m.SetMessageStatus(ctx, "m1", core.StatusProcessed, ""))
	require.NoError(t, m.AddLink(ctx, &core.ShipmentDocument{ShipmentID: "s1", MessageID: "m1"}))
	require.NoError(t, m.SetMessageStatus(ctx, "m2", core.StatusProcessed, ""))

	orphans, err := m.OrphanMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "m2", orphans[0].ID)
}

func TestEntitiesRoundTrip(t *testing.T) {
	m := store.NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	entities := []core.Entity{
		{MessageID: "m1", Type: core.EntityBookingNumber, Value: "254300123", Confidence: 90, Source: core.EntityFromBody},
		{MessageID: "m1", Type: core.EntityContainerNumber, Value: "MSKU1234567", Confidence: 95, Source: core.EntityFromAttachment},
	}
	require.NoError(t, m.SaveEntities(ctx, "m1", entities))

	got, err := m.GetEntities(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, entities, got)

	got, err = m.GetEntities(ctx, "m2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRequeueInFlight(t *testing.T) {
	m := store.NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	base := time.Now()
	for _, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, m.InsertMessage(ctx, &core.Message{ID: id, ReceivedAt: base}))
	}
	require.NoError(t, m.SetMessageStatus(ctx, "m1", core.StatusProcessing, ""))
	require.NoError(t, m.SetMessageStatus(ctx, "m2", core.StatusProcessed, ""))
	require.NoError(t, m.SetMessageStatus(ctx, "m3", core.StatusFailed, "classify: boom"))

	// Only the message stranded in processing moves back to pending.
	moved, err := m.RequeueInFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	status, reason := m.MessageStatus("m1")
	assert.Equal(t, core.StatusPending, status)
	assert.Empty(t, reason)

	status, _ = m.MessageStatus("m2")
	assert.Equal(t, core.StatusProcessed, status)
	status, reason = m.MessageStatus("m3")
	assert.Equal(t, core.StatusFailed, status)
	assert.Equal(t, "classify: boom", reason)

	page, err := m.PendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "m1", page[0].ID)

	// Nothing left in flight on a second sweep.
	moved, err = m.RequeueInFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, moved)
}
