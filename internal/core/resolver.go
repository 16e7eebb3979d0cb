package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resolution is the outcome of link resolution for one message. Orphan
// (no shipment found or created) is a valid terminal outcome, retriable
// once more identifiers or shipments exist.
type Resolution struct {
	ShipmentID string
	Created    bool
	Linked     bool
	Method     LinkMethod
}

// LinkResolver maps a classified message to a shipment via a cascading
// identifier match, creating a shipment only for carrier-sent booking
// confirmations. All lookups go through the store so identifiers
// back-filled earlier in the same run are visible immediately.
type LinkResolver struct {
	shipments ShipmentStore
	links     LinkStore
	direction *DirectionDetector
	logger    *zap.Logger

	// Per-shipment mutexes serialize link-plus-backfill so concurrent
	// workers on different threads cannot lose each other's writes.
	mu            sync.Mutex
	shipmentLocks map[string]*sync.Mutex
}

// NewLinkResolver creates a resolver.
func NewLinkResolver(shipments ShipmentStore, links LinkStore, direction *DirectionDetector, logger *zap.Logger) *LinkResolver {
	return &LinkResolver{
		shipments:     shipments,
		links:         links,
		direction:     direction,
		logger:        logger,
		shipmentLocks: make(map[string]*sync.Mutex),
	}
}

func (r *LinkResolver) lockShipment(id string) func() {
	r.mu.Lock()
	l, ok := r.shipmentLocks[id]
	if !ok {
		l = &sync.Mutex{}
		r.shipmentLocks[id] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Resolve runs the identifier cascade for a message. Re-running on an
// already-linked message is a no-op returning the existing link.
func (r *LinkResolver) Resolve(ctx context.Context, msg *Message, cl *Classification, entities []Entity) (*Resolution, error) {
	if existing, err := r.links.GetLinkByMessage(ctx, msg.ID); err == nil {
		return &Resolution{ShipmentID: existing.ShipmentID, Linked: true, Method: existing.Method}, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check existing link: %w", err)
	}

	deduped := DedupeEntities(entities)

	// 1. Booking number.
	for _, e := range deduped {
		if e.Type != EntityBookingNumber {
			continue
		}
		s, err := r.shipments.GetShipmentByBooking(ctx, e.Value)
		if err == nil {
			return r.link(ctx, msg, cl, s, LinkByBooking, deduped)
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("booking lookup: %w", err)
		}
	}

	// 2. BL / MBL number.
	for _, e := range deduped {
		if e.Type != EntityBLNumber && e.Type != EntityMBLNumber && e.Type != EntityHBLNumber {
			continue
		}
		s, err := r.shipments.GetShipmentByBL(ctx, e.Value)
		if err == nil {
			return r.link(ctx, msg, cl, s, LinkByBL, deduped)
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("bl lookup: %w", err)
		}
	}

	// 3. Container number.
	for _, e := range deduped {
		if e.Type != EntityContainerNumber {
			continue
		}
		s, err := r.shipments.GetShipmentByContainer(ctx, e.Value)
		if err == nil {
			return r.link(ctx, msg, cl, s, LinkByContainer, deduped)
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("container lookup: %w", err)
		}
	}

	// 4. Creation, only for booking confirmations/amendments that carry
	// both a recognised carrier and a booking number. A booking number
	// alone from a non-carrier sender must not create a shipment.
	if cl.DocType == DocBookingConfirmation || cl.DocType == DocBookingAmendment {
		if res, err := r.maybeCreate(ctx, msg, cl, deduped); res != nil || err != nil {
			return res, err
		}
	}

	// 5. Orphan.
	r.logger.Debug("Message unlinked",
		zap.String("message_id", msg.ID),
		zap.String("doc_type", string(cl.DocType)))
	return &Resolution{}, nil
}

func (r *LinkResolver) maybeCreate(ctx context.Context, msg *Message, cl *Classification, entities []Entity) (*Resolution, error) {
	booking := FirstEntity(entities, EntityBookingNumber)
	if booking == "" {
		return nil, nil
	}

	carrier := FirstEntity(entities, EntityCarrier)
	if carrier == "" {
		// Carrier-domain senders count even when branding text is absent
		// from the extracted body.
		if name, ok := r.direction.IsCarrierDomain(msg.EffectiveSender()); ok {
			carrier = name
		}
	}
	if carrier == "" {
		r.logger.Debug("Creation guard: booking number without recognised carrier",
			zap.String("message_id", msg.ID),
			zap.String("booking", booking))
		return nil, nil
	}

	s := r.seedShipment(booking, carrier, entities)
	err := r.shipments.CreateShipment(ctx, s)
	if errors.Is(err, ErrDuplicateBooking) {
		// Another worker won the race. Fetch theirs and link to it.
		existing, gerr := r.shipments.GetShipmentByBooking(ctx, booking)
		if gerr != nil {
			return nil, fmt.Errorf("fetch shipment after duplicate booking: %w", gerr)
		}
		return r.link(ctx, msg, cl, existing, LinkByBooking, entities)
	}
	if err != nil {
		return nil, fmt.Errorf("create shipment: %w", err)
	}

	r.logger.Info("Created shipment",
		zap.String("shipment_id", s.ID),
		zap.String("booking", booking),
		zap.String("carrier", carrier))

	res, err := r.link(ctx, msg, cl, s, LinkByBooking, entities)
	if err != nil {
		return nil, err
	}
	res.Created = true
	return res, nil
}

func (r *LinkResolver) seedShipment(booking, carrier string, entities []Entity) *Shipment {
	now := time.Now()
	s := &Shipment{
		ID:            uuid.New().String(),
		BookingNumber: booking,
		Carrier:       carrier,
		Vessel:        FirstEntity(entities, EntityVessel),
		Voyage:        FirstEntity(entities, EntityVoyage),
		PortOfLoading: FirstEntity(entities, EntityPortOfLoading),
		PortOfDischarge: LastEntity(entities, EntityPortOfDischarge),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	setShipmentDates(s, entities)
	return s
}

// link records the message-to-shipment link and back-fills identifiers the
// message carries onto the shipment so they become lookup keys for future
// messages.
func (r *LinkResolver) link(ctx context.Context, msg *Message, cl *Classification, s *Shipment, method LinkMethod, entities []Entity) (*Resolution, error) {
	unlock := r.lockShipment(s.ID)
	defer unlock()

	if err := r.links.AddLink(ctx, &ShipmentDocument{
		ShipmentID: s.ID,
		MessageID:  msg.ID,
		DocType:    cl.DocType,
		Direction:  cl.Direction,
		Method:     method,
		Confidence: cl.Confidence,
		LinkedAt:   time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("add link: %w", err)
	}

	// The shipment handed in is a snapshot taken before the lock; reload
	// so the backfill applies on top of any writes that slipped in between.
	fresh, err := r.shipments.GetShipment(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("reload shipment for backfill: %w", err)
	}
	if r.backfillIdentifiers(fresh, entities) {
		if err := r.shipments.UpdateShipment(ctx, fresh); err != nil {
			return nil, fmt.Errorf("backfill shipment identifiers: %w", err)
		}
	}

	r.logger.Debug("Linked message to shipment",
		zap.String("message_id", msg.ID),
		zap.String("shipment_id", s.ID),
		zap.String("method", string(method)),
		zap.Float64("schedule_coverage", fresh.Coverage()))

	return &Resolution{ShipmentID: s.ID, Linked: true, Method: method}, nil
}

// backfillIdentifiers copies identifiers from the message onto the
// shipment when the shipment does not have them yet. Returns true when
// anything changed.
func (r *LinkResolver) backfillIdentifiers(s *Shipment, entities []Entity) bool {
	changed := false

	if s.BLNumber == "" {
		if v := FirstEntity(entities, EntityBLNumber); v != "" {
			s.BLNumber = v
			changed = true
		} else if v := FirstEntity(entities, EntityHBLNumber); v != "" {
			s.BLNumber = v
			changed = true
		}
	}
	if s.MBLNumber == "" {
		if v := FirstEntity(entities, EntityMBLNumber); v != "" {
			s.MBLNumber = v
			changed = true
		}
	}

	for _, e := range entities {
		if e.Type != EntityContainerNumber {
			continue
		}
		if s.ContainerNumber == "" {
			s.ContainerNumber = e.Value
			changed = true
			continue
		}
		if s.ContainerNumber == e.Value || containsString(s.SecondaryContainers, e.Value) {
			continue
		}
		s.SecondaryContainers = append(s.SecondaryContainers, e.Value)
		changed = true
	}

	if setShipmentDates(s, entities) {
		changed = true
	}

	if changed {
		s.UpdatedAt = time.Now()
	}
	return changed
}

// setShipmentDates fills empty schedule fields from extracted entities:
// first ETD, last ETA, first of each cutoff. Returns true when anything
// was set.
func setShipmentDates(s *Shipment, entities []Entity) bool {
	changed := false
	set := func(field **time.Time, raw string) {
		if *field != nil || raw == "" {
			return
		}
		if t, ok := ParseShippingDate(raw); ok {
			*field = &t
			changed = true
		}
	}
	set(&s.ETD, FirstEntity(entities, EntityETD))
	set(&s.ETA, LastEntity(entities, EntityETA))
	set(&s.SICutoff, FirstEntity(entities, EntitySICutoff))
	set(&s.VGMCutoff, FirstEntity(entities, EntityVGMCutoff))
	set(&s.CargoCutoff, FirstEntity(entities, EntityCargoCutoff))
	set(&s.GateCutoff, FirstEntity(entities, EntityGateCutoff))
	return changed
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
