package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mikey/freight-doc-engine/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of every store interface.
// Used by the one-shot CLI and tests; it enforces the same uniqueness
// semantics as the SQL-backed stores so race recovery paths are testable.
type MemoryStore struct {
	mu sync.RWMutex

	messages        map[string]*core.Message
	statuses        map[string]core.MessageStatus
	statusReasons   map[string]string
	classifications map[string]*core.Classification
	entities        map[string][]core.Entity
	shipments       map[string]*core.Shipment
	byBooking       map[string]string // booking number -> shipment id
	links           map[string]*core.ShipmentDocument   // message id -> link
	linksByShipment map[string][]core.ShipmentDocument

	logger *zap.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		messages:        make(map[string]*core.Message),
		statuses:        make(map[string]core.MessageStatus),
		statusReasons:   make(map[string]string),
		classifications: make(map[string]*core.Classification),
		entities:        make(map[string][]core.Entity),
		shipments:       make(map[string]*core.Shipment),
		byBooking:       make(map[string]string),
		links:           make(map[string]*core.ShipmentDocument),
		linksByShipment: make(map[string][]core.ShipmentDocument),
		logger:          logger,
	}
}

// InsertMessage stores a message as pending. Re-inserting an existing ID
// is a no-op so overlapping ingest windows stay idempotent.
func (m *MemoryStore) InsertMessage(ctx context.Context, msg *core.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[msg.ID]; ok {
		return nil
	}
	copied := *msg
	m.messages[msg.ID] = &copied
	m.statuses[msg.ID] = core.StatusPending
	return nil
}

// GetMessage retrieves a message by ID.
func (m *MemoryStore) GetMessage(ctx context.Context, id string) (*core.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *msg
	return &copied, nil
}

// PendingMessages returns a page of pending messages, oldest first.
func (m *MemoryStore) PendingMessages(ctx context.Context, limit int) ([]core.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var page []core.Message
	for id, status := range m.statuses {
		if status == core.StatusPending {
			page = append(page, *m.messages[id])
		}
	}
	sort.Slice(page, func(i, j int) bool { return page[i].ReceivedAt.Before(page[j].ReceivedAt) })
	if limit > 0 && len(page) > limit {
		page = page[:limit]
	}
	return page, nil
}

// OrphanMessages returns processed messages with no shipment link.
func (m *MemoryStore) OrphanMessages(ctx context.Context, limit int) ([]core.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var page []core.Message
	for id, status := range m.statuses {
		if status != core.StatusProcessed {
			continue
		}
		if _, linked := m.links[id]; linked {
			continue
		}
		page = append(page, *m.messages[id])
	}
	sort.Slice(page, func(i, j int) bool { return page[i].ReceivedAt.Before(page[j].ReceivedAt) })
	if limit > 0 && len(page) > limit {
		page = page[:limit]
	}
	return page, nil
}

// SetMessageStatus records a status transition.
func (m *MemoryStore) SetMessageStatus(ctx context.Context, id string, status core.MessageStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[id]; !ok {
		return core.ErrNotFound
	}
	m.statuses[id] = status
	m.statusReasons[id] = reason
	return nil
}

// RequeueInFlight returns messages stuck in processing to pending.
func (m *MemoryStore) RequeueInFlight(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	moved := 0
	for id, status := range m.statuses {
		if status == core.StatusProcessing {
			m.statuses[id] = core.StatusPending
			m.statusReasons[id] = ""
			moved++
		}
	}
	return moved, nil
}

// MessageStatus returns the current status for a message, for tests and
// the CLI report.
func (m *MemoryStore) MessageStatus(id string) (core.MessageStatus, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statuses[id], m.statusReasons[id]
}

// GetClassification retrieves the canonical classification for a message.
func (m *MemoryStore) GetClassification(ctx context.Context, messageID string) (*core.Classification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cl, ok := m.classifications[messageID]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *cl
	return &copied, nil
}

// SaveClassification upserts a classification, refusing to overwrite a
// manual-review record.
func (m *MemoryStore) SaveClassification(ctx context.Context, cl *core.Classification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.classifications[cl.MessageID]; ok && existing.ManualReview && !cl.ManualReview {
		return core.ErrManualReview
	}
	copied := *cl
	m.classifications[cl.MessageID] = &copied
	return nil
}

// SaveEntities replaces the extracted entities for a message.
func (m *MemoryStore) SaveEntities(ctx context.Context, messageID string, entities []core.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[messageID] = append([]core.Entity(nil), entities...)
	return nil
}

// GetEntities returns the extracted entities for a message.
func (m *MemoryStore) GetEntities(ctx context.Context, messageID string) ([]core.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.Entity(nil), m.entities[messageID]...), nil
}

// GetShipment retrieves a shipment by ID.
func (m *MemoryStore) GetShipment(ctx context.Context, id string) (*core.Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shipments[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

// GetShipmentByBooking looks up a shipment by booking number.
func (m *MemoryStore) GetShipmentByBooking(ctx context.Context, bookingNumber string) (*core.Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byBooking[bookingNumber]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *m.shipments[id]
	return &copied, nil
}

// GetShipmentByBL matches either the BL or MBL number.
func (m *MemoryStore) GetShipmentByBL(ctx context.Context, blNumber string) (*core.Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.shipments {
		if blNumber != "" && (s.BLNumber == blNumber || s.MBLNumber == blNumber) {
			copied := *s
			return &copied, nil
		}
	}
	return nil, core.ErrNotFound
}

// GetShipmentByContainer matches the primary or any secondary container.
func (m *MemoryStore) GetShipmentByContainer(ctx context.Context, containerNumber string) (*core.Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.shipments {
		for _, cn := range s.AllContainers() {
			if cn == containerNumber {
				copied := *s
				return &copied, nil
			}
		}
	}
	return nil, core.ErrNotFound
}

// CreateShipment inserts a shipment, enforcing booking number uniqueness.
func (m *MemoryStore) CreateShipment(ctx context.Context, s *core.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byBooking[s.BookingNumber]; ok {
		return core.ErrDuplicateBooking
	}
	copied := *s
	m.shipments[s.ID] = &copied
	m.byBooking[s.BookingNumber] = s.ID
	return nil
}

// UpdateShipment replaces a shipment's mutable fields.
func (m *MemoryStore) UpdateShipment(ctx context.Context, s *core.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.shipments[s.ID]
	if !ok {
		return core.ErrNotFound
	}
	copied := *s
	// State changes go through UpdateShipmentState only.
	copied.State = existing.State
	copied.StateUpdatedAt = existing.StateUpdatedAt
	m.shipments[s.ID] = &copied
	return nil
}

// UpdateShipmentState persists a state advancement.
func (m *MemoryStore) UpdateShipmentState(ctx context.Context, id string, state core.WorkflowState, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shipments[id]
	if !ok {
		return core.ErrNotFound
	}
	// Same guard the SQL stores apply: never regress, never leave cancelled.
	if s.State == core.StateCancelled || state <= s.State {
		return nil
	}
	s.State = state
	s.StateUpdatedAt = at
	return nil
}

// GetLinkByMessage retrieves the link for a message, if any.
func (m *MemoryStore) GetLinkByMessage(ctx context.Context, messageID string) (*core.ShipmentDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.links[messageID]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *l
	return &copied, nil
}

// GetLinksByShipment returns all links for a shipment.
func (m *MemoryStore) GetLinksByShipment(ctx context.Context, shipmentID string) ([]core.ShipmentDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.ShipmentDocument(nil), m.linksByShipment[shipmentID]...), nil
}

// AddLink upserts a link; re-adding an existing (shipment, message) pair
// is a no-op.
func (m *MemoryStore) AddLink(ctx context.Context, link *core.ShipmentDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.links[link.MessageID]; ok {
		if existing.ShipmentID == link.ShipmentID {
			return nil
		}
		// A message links to at most one shipment.
		return nil
	}
	copied := *link
	m.links[link.MessageID] = &copied
	m.linksByShipment[link.ShipmentID] = append(m.linksByShipment[link.ShipmentID], copied)
	return nil
}

// LoadActionRules returns nil so the engine falls back to its built-in
// rule set; the memory store carries no rule table.
func (m *MemoryStore) LoadActionRules(ctx context.Context) ([]core.ActionRule, error) {
	return nil, nil
}
