package core

import (
	"time"
)

// Message represents an ingested email, immutable once stored.
// Attachment text is pre-extracted by an upstream collaborator; this
// engine treats it as opaque strings.
type Message struct {
	ID              string
	Subject         string
	Sender          string
	TrueSender      string // resolved original author for forwarded/relayed mail
	Body            string
	AttachmentNames []string
	AttachmentTexts []string
	ReceivedAt      time.Time
	ThreadID        string
	IsReply         bool
}

// EffectiveSender returns the address direction and party detection should
// use: the resolved true sender when present, the envelope sender otherwise.
func (m *Message) EffectiveSender() string {
	if m.TrueSender != "" {
		return m.TrueSender
	}
	return m.Sender
}

// MessageStatus tracks per-message pipeline progress.
type MessageStatus string

const (
	StatusPending    MessageStatus = "pending"
	StatusProcessing MessageStatus = "processing"
	StatusProcessed  MessageStatus = "processed"
	StatusFailed     MessageStatus = "failed"
)

// ClassificationSource identifies which cascade stage produced a classification.
type ClassificationSource string

const (
	SourceAttachment ClassificationSource = "attachment"
	SourceBody       ClassificationSource = "body"
	SourceSubject    ClassificationSource = "subject"
	SourceAIFallback ClassificationSource = "ai-fallback"
)

// Classification is the canonical document type decision for a message.
// When ManualReview is set the record was pinned by a human and no
// automated path may overwrite it.
type Classification struct {
	MessageID    string
	DocType      DocumentType
	Direction    Direction
	Confidence   int // 0-100
	Source       ClassificationSource
	Reasoning    string
	ManualReview bool
	ClassifiedAt time.Time
}

// LowConfidence reports whether the classification was accepted below the
// automated-acceptance threshold and should be flagged for review queues.
func (c *Classification) LowConfidence() bool {
	return c.Confidence < AcceptConfidence
}

// EntityType enumerates the identifiers and dates the extractor recognises.
type EntityType string

const (
	EntityBookingNumber   EntityType = "booking_number"
	EntityBLNumber        EntityType = "bl_number"
	EntityMBLNumber       EntityType = "mbl_number"
	EntityHBLNumber       EntityType = "hbl_number"
	EntityContainerNumber EntityType = "container_number"
	EntityCarrier         EntityType = "carrier"
	EntityVessel          EntityType = "vessel"
	EntityVoyage          EntityType = "voyage"
	EntityPortOfLoading   EntityType = "port_of_loading"
	EntityPortOfDischarge EntityType = "port_of_discharge"
	EntityETD             EntityType = "etd"
	EntityETA             EntityType = "eta"
	EntitySICutoff        EntityType = "si_cutoff"
	EntityVGMCutoff       EntityType = "vgm_cutoff"
	EntityCargoCutoff     EntityType = "cargo_cutoff"
	EntityGateCutoff      EntityType = "gate_cutoff"
)

// EntitySource identifies where an entity value was found.
type EntitySource string

const (
	EntityFromSubject    EntitySource = "subject"
	EntityFromBody       EntitySource = "body"
	EntityFromAttachment EntitySource = "attachment"
)

// Entity is a single extracted identifier or date. Extraction keeps
// duplicates in document order; consumers dedupe by (type, value).
type Entity struct {
	MessageID  string
	Type       EntityType
	Value      string
	Confidence int
	Source     EntitySource
}

// DedupeEntities collapses duplicate (type, value) pairs, keeping first
// occurrence order. Extraction over several attachments routinely yields
// the same booking number more than once.
func DedupeEntities(entities []Entity) []Entity {
	seen := make(map[string]bool, len(entities))
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		key := string(e.Type) + "\x00" + e.Value
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

// FirstEntity returns the first extracted value of the given type, or "".
func FirstEntity(entities []Entity, t EntityType) string {
	for _, e := range entities {
		if e.Type == t {
			return e.Value
		}
	}
	return ""
}

// LastEntity returns the last extracted value of the given type, or "".
// Multi-leg shipments want "first ETD, last ETA" semantics.
func LastEntity(entities []Entity, t EntityType) string {
	v := ""
	for _, e := range entities {
		if e.Type == t {
			v = e.Value
		}
	}
	return v
}

// Shipment is the aggregate root keyed by booking number. Secondary
// identifiers are back-filled as evidence arrives and become lookup keys.
type Shipment struct {
	ID                  string
	BookingNumber       string
	BLNumber            string
	MBLNumber           string
	ContainerNumber     string
	SecondaryContainers []string
	Carrier             string
	Vessel              string
	Voyage              string
	PortOfLoading       string
	PortOfDischarge     string
	ETD                 *time.Time
	ETA                 *time.Time
	SICutoff            *time.Time
	VGMCutoff           *time.Time
	CargoCutoff         *time.Time
	GateCutoff          *time.Time
	State               WorkflowState
	StateUpdatedAt      time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// AllContainers returns the primary container plus any secondaries.
func (s *Shipment) AllContainers() []string {
	if s.ContainerNumber == "" {
		return s.SecondaryContainers
	}
	return append([]string{s.ContainerNumber}, s.SecondaryContainers...)
}

// Coverage reports the fraction of the shipment's schedule fields
// (ETD, ETA and the four cutoffs) that are populated. Reports use this
// to spot shipments with thin evidence.
func (s *Shipment) Coverage() float64 {
	fields := []*time.Time{s.ETD, s.ETA, s.SICutoff, s.VGMCutoff, s.CargoCutoff, s.GateCutoff}
	populated := 0
	for _, f := range fields {
		if f != nil {
			populated++
		}
	}
	return float64(populated) / float64(len(fields))
}

// LinkMethod records which identifier matched during link resolution.
type LinkMethod string

const (
	LinkByBooking   LinkMethod = "booking"
	LinkByBL        LinkMethod = "bl"
	LinkByContainer LinkMethod = "container"
)

// ShipmentDocument links a message to a shipment. A message links to at
// most one shipment; (shipment, message) pairs are unique.
type ShipmentDocument struct {
	ShipmentID string
	MessageID  string
	DocType    DocumentType
	Direction  Direction
	Method     LinkMethod
	Confidence int
	LinkedAt   time.Time
}
