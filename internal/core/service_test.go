package core_test

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

func newService(mem *store.MemoryStore) *core.DocEngineService {
	logger := zap.NewNop()
	detector := newDetector()
	classifier := core.NewDocumentClassifier(detector, nil, logger)
	extractor := core.NewEntityExtractor(logger)
	resolver := core.NewLinkResolver(mem, mem, detector, logger)
	stateMachine := core.NewStateMachine(mem, mem, logger)
	actions := core.NewActionEngine(mem, time.Minute, logger)
	return core.NewDocEngineService(classifier, extractor, resolver, stateMachine, actions, detector, mem, logger)
}

func bookingConfirmationMessage(id string) *core.Message {
	return &core.Message{
		ID:      id,
		Sender:  "noreply@maersk.com",
		Subject: "Booking Confirmation 254300123",
		Body: "Your booking is confirmed.\n" +
			"Booking No: 254300123\n" +
			"Vessel: Maersk Emden\nVoyage: 105W\n" +
			"Port of Loading: Nhava Sheva\nPort of Discharge: Rotterdam\n" +
			"ETD: 2026-01-15\nETA: 2026-02-10\n" +
			"SI Cut-off: 2026-01-12",
		ReceivedAt: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC),
		ThreadID:   id,
	}
}

func TestProcessMessageCreatesShipment(t *testing.T) {
	mem := store.NewMemoryStore(zap.NewNop())
	svc := newService(mem)
	ctx := context.Background()

	msg := bookingConfirmationMessage("m1")
	result, err := svc.ProcessMessage(ctx, msg)
	require.NoError(t, err)

	assert.Equal(t, core.DocBookingConfirmation, result.Classification.DocType)
	assert.Equal(t, core.DirectionInbound, result.Classification.Direction)
	require.True(t, result.Resolution.Created)
	assert.Equal(t, core.StateBookingConfirmed, result.State)
	assert.True(t, result.StateChanged)

	s, err := mem.GetShipmentByBooking(ctx, "254300123")
	require.NoError(t, err)
	assert.Equal(t, "Maersk", s.Carrier)
	assert.Equal(t, "Maersk Emden", s.Vessel)
	assert.Equal(t, "Nhava Sheva", s.PortOfLoading)
	assert.Equal(t, "Rotterdam", s.PortOfDischarge)
	require.NotNil(t, s.ETD)
	require.NotNil(t, s.SICutoff)

	// Classification and entities are persisted for later re-resolution.
	cl, err := mem.GetClassification(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, core.DocBookingConfirmation, cl.DocType)
	entities, err := mem.GetEntities(ctx, "m1")
	require.NoError(t, err)
	assert.NotEmpty(t, entities)
}

func TestProcessMessageWorkflowProgression(t *testing.T) {
	mem := store.NewMemoryStore(zap.NewNop())
	svc := newService(mem)
	ctx := context.Background()

	_, err := svc.ProcessMessage(ctx, bookingConfirmationMessage("m1"))
	require.NoError(t, err)

	si := &core.Message{
		ID:         "m2",
		Sender:     "docs@forwarder.com",
		Subject:    "Shipping Instruction - 254300123",
		Body:       "Please find our shipping instruction.\nBooking No: 254300123",
		ReceivedAt: time.Date(2026, 1, 8, 9, 0, 0, 0, time.UTC),
	}
	result, err := svc.ProcessMessage(ctx, si)
	require.NoError(t, err)
	assert.Equal(t, core.DocShippingInstruction, result.Classification.DocType)
	assert.Equal(t, core.DirectionOutbound, result.Classification.Direction)
	require.True(t, result.Resolution.Linked)
	assert.Equal(t, core.StateSISubmitted, result.State)

	bl := &core.Message{
		ID:         "m3",
		Sender:     "noreply@maersk.com",
		Subject:    "Original Bill of Lading",
		Body:       "Original bill of lading issued.\nBooking No: 254300123\nMBL No: MAEU123456789",
		ReceivedAt: time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC),
	}
	result, err = svc.ProcessMessage(ctx, bl)
	require.NoError(t, err)
	assert.Equal(t, core.DocBillOfLading, result.Classification.DocType)
	assert.Equal(t, core.StateBLReceived, result.State)

	// The MBL number back-filled from m3 now links messages on its own.
	s, err := mem.GetShipmentByBL(ctx, "MAEU123456789")
	require.NoError(t, err)
	assert.Equal(t, core.StateBLReceived, s.State)
}

func TestProcessMessageOrphanIsNotAnError(t *testing.T) {
	mem := store.NewMemoryStore(zap.NewNop())
	svc := newService(mem)
	ctx := context.Background()

	msg := &core.Message{
		ID:         "m1",
		Sender:     "buyer@customer.example",
		Subject:    "Arrival Notice",
		Body:       "Arrival notice for container MSKU1234567.",
		ReceivedAt: time.Now(),
	}
	result, err := svc.ProcessMessage(ctx, msg)
	require.NoError(t, err)
	assert.False(t, result.Resolution.Linked)
	assert.Equal(t, core.StateNone, result.State)
	assert.False(t, result.StateChanged)
}

func TestProcessMessageKeepsManualReviewClassification(t *testing.T) {
	mem := store.NewMemoryStore(zap.NewNop())
	svc := newService(mem)
	ctx := context.Background()

	pinned := &core.Classification{
		MessageID:    "m1",
		DocType:      core.DocGeneralCorrespondence,
		Direction:    core.DirectionInbound,
		Confidence:   100,
		Source:       core.SourceSubject,
		ManualReview: true,
		ClassifiedAt: time.Now(),
	}
	require.NoError(t, mem.SaveClassification(ctx, pinned))

	// The message would classify as a booking confirmation, but the human
	// decision wins.
	result, err := svc.ProcessMessage(ctx, bookingConfirmationMessage("m1"))
	require.NoError(t, err)
	assert.Equal(t, core.DocGeneralCorrespondence, result.Classification.DocType)
	assert.True(t, result.Classification.ManualReview)
	assert.False(t, result.Resolution.Created)
}

func TestReResolveOrphans(t *testing.T) {
	mem := store.NewMemoryStore(zap.NewNop())
	svc := newService(mem)
	ctx := context.Background()

	// An arrival notice referencing a container arrives before any shipment
	// exists, so it orphans.
	orphan := &core.Message{
		ID:         "m1",
		Sender:     "notify@oocl.com",
		Subject:    "Arrival Notice",
		Body:       "Cargo arrival expected.\nContainer: OOLU7654321",
		ReceivedAt: time.Now(),
	}
	require.NoError(t, mem.InsertMessage(ctx, orphan))
	result, err := svc.ProcessMessage(ctx, orphan)
	require.NoError(t, err)
	require.False(t, result.Resolution.Linked)

	// The booking confirmation then creates the shipment carrying that
	// container.
	booking := &core.Message{
		ID:         "m2",
		Sender:     "notify@oocl.com",
		Subject:    "Booking Confirmation",
		Body:       "Your booking is confirmed.\nBooking No: 254300777\nContainer: OOLU7654321",
		ReceivedAt: time.Now(),
	}
	result, err = svc.ProcessMessage(ctx, booking)
	require.NoError(t, err)
	require.True(t, result.Resolution.Created)

	linked, err := svc.ReResolveOrphans(ctx, []core.Message{*orphan})
	require.NoError(t, err)
	assert.Equal(t, 1, linked)

	s, err := mem.GetShipmentByBooking(ctx, "254300777")
	require.NoError(t, err)
	assert.Equal(t, core.StateArrivalNoticeReceived, s.State)
}

func TestPartyFor(t *testing.T) {
	mem := store.NewMemoryStore(zap.NewNop())
	svc := newService(mem)

	assert.Equal(t, core.PartyCarrier, svc.PartyFor(&core.Message{Sender: "noreply@maersk.com"}))
	assert.Equal(t, core.PartyInternal, svc.PartyFor(&core.Message{Sender: "ops@forwarder.com"}))
	assert.Equal(t, core.PartyCustomer, svc.PartyFor(&core.Message{Sender: "buyer@customer.example"}))
	// The resolved author outranks the envelope.
	assert.Equal(t, core.PartyCarrier, svc.PartyFor(&core.Message{
		Sender: "relay@forwarder.com", TrueSender: "noreply@msc.com",
	}))
}

func TestRecommendUsesClassification(t *testing.T) {
	mem := store.NewMemoryStore(zap.NewNop())
	svc := newService(mem)
	ctx := context.Background()

	msg := bookingConfirmationMessage("m1")
	cl := carrierBookingClassification("m1")

	rec := svc.Recommend(ctx, msg, cl)
	require.True(t, rec.HasAction)
	assert.Equal(t, "review_booking", rec.ActionVerb)
	require.NotNil(t, rec.Deadline)
	assert.Equal(t, msg.ReceivedAt.Add(24*time.Hour), *rec.Deadline)
}

func TestProcessMessageBookingNumberOnlyInSubject(t *testing.T) {
	mem := store.NewMemoryStore(zap.NewNop())
	svc := newService(mem)
	ctx := context.Background()

	// Carrier notification with an empty body: the booking number lives
	// in the subject line and the attachment filename carries the type.
	msg := &core.Message{
		ID:              "m1",
		Sender:          "noreply@maersk.com",
		Subject:         "Booking Confirmation: 263522431",
		AttachmentNames: []string{"BC_263522431.pdf"},
		ReceivedAt:      time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC),
		ThreadID:        "m1",
	}

	result, err := svc.ProcessMessage(ctx, msg)
	require.NoError(t, err)

	assert.Equal(t, core.DocBookingConfirmation, result.Classification.DocType)
	require.True(t, result.Resolution.Created)
	assert.Equal(t, core.StateBookingConfirmed, result.State)

	s, err := mem.GetShipmentByBooking(ctx, "263522431")
	require.NoError(t, err)
	assert.Equal(t, "Maersk", s.Carrier)
}
