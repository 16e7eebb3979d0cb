package core

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateBooking is returned when shipment creation hits the
	// booking number uniqueness constraint.
	ErrDuplicateBooking = errors.New("shipment already exists for booking number")
	// ErrManualReview is returned when an automated write would touch a
	// classification pinned by a human.
	ErrManualReview = errors.New("classification is flagged for manual review")
)

// FallbackResult is the external model's answer. DocType is raw model
// output and must be normalized through the synonym table before use.
type FallbackResult struct {
	DocType    string
	Confidence int // 0-100
	Reasoning  string
}

// FallbackClassifier is the external model invoked only when the pattern
// cascade is inconclusive.
type FallbackClassifier interface {
	ClassifyDocument(ctx context.Context, msg *Message) (*FallbackResult, error)
}

// MessageStore persists ingested messages and their pipeline status.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)

	// PendingMessages returns a bounded page of messages awaiting
	// processing, oldest first.
	PendingMessages(ctx context.Context, limit int) ([]Message, error)

	// OrphanMessages returns processed messages that never linked to a
	// shipment, oldest first, for periodic re-resolution.
	OrphanMessages(ctx context.Context, limit int) ([]Message, error)

	// SetMessageStatus records a status transition. Reason is stored for
	// operator triage on failures and ignored otherwise.
	SetMessageStatus(ctx context.Context, id string, status MessageStatus, reason string) error

	// RequeueInFlight returns messages stuck in processing to pending
	// and reports how many moved. A daemon that died mid-batch leaves
	// claimed messages behind; the next run sweeps them up at startup.
	RequeueInFlight(ctx context.Context) (int, error)
}

// ClassificationStore persists classifications and extracted entities.
type ClassificationStore interface {
	GetClassification(ctx context.Context, messageID string) (*Classification, error)

	// SaveClassification upserts the canonical classification for a
	// message. If the existing record is flagged manual_review the write
	// must be refused with ErrManualReview.
	SaveClassification(ctx context.Context, cl *Classification) error

	SaveEntities(ctx context.Context, messageID string, entities []Entity) error
	GetEntities(ctx context.Context, messageID string) ([]Entity, error)
}

// ShipmentStore persists shipments. Lookups always hit the live identifier
// index so identifiers back-filled earlier in the same run are visible.
type ShipmentStore interface {
	GetShipment(ctx context.Context, id string) (*Shipment, error)
	GetShipmentByBooking(ctx context.Context, bookingNumber string) (*Shipment, error)

	// GetShipmentByBL matches either the BL or MBL number.
	GetShipmentByBL(ctx context.Context, blNumber string) (*Shipment, error)

	// GetShipmentByContainer matches the primary or any secondary container.
	GetShipmentByContainer(ctx context.Context, containerNumber string) (*Shipment, error)

	// CreateShipment inserts a new shipment. The store enforces the
	// booking number uniqueness constraint and returns ErrDuplicateBooking
	// when it trips, so callers can recover by fetching and linking.
	CreateShipment(ctx context.Context, s *Shipment) error

	UpdateShipment(ctx context.Context, s *Shipment) error

	// UpdateShipmentState persists a state advancement with its timestamp.
	UpdateShipmentState(ctx context.Context, id string, state WorkflowState, at time.Time) error
}

// LinkStore persists message-to-shipment links with a uniqueness
// constraint on (shipment, message).
type LinkStore interface {
	GetLinkByMessage(ctx context.Context, messageID string) (*ShipmentDocument, error)
	GetLinksByShipment(ctx context.Context, shipmentID string) ([]ShipmentDocument, error)

	// AddLink upserts a link; re-adding an existing (shipment, message)
	// pair is a no-op.
	AddLink(ctx context.Context, link *ShipmentDocument) error
}

// ActionRuleStore loads the action rule set. Implementations may be
// database-backed; the engine caches the result with a TTL.
type ActionRuleStore interface {
	LoadActionRules(ctx context.Context) ([]ActionRule, error)
}
