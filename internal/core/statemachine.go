package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// StateMachine recomputes a shipment's workflow state from its full link
// set and persists it only when the rank increases. It holds no state
// between invocations, which makes it safe to re-run after any backfill.
type StateMachine struct {
	shipments ShipmentStore
	links     LinkStore
	logger    *zap.Logger
}

// NewStateMachine creates a workflow state machine.
func NewStateMachine(shipments ShipmentStore, links LinkStore, logger *zap.Logger) *StateMachine {
	return &StateMachine{
		shipments: shipments,
		links:     links,
		logger:    logger,
	}
}

// Advance recomputes and, if the rank increased, persists the shipment's
// workflow state. Returns the resulting state and whether it changed.
func (m *StateMachine) Advance(ctx context.Context, shipmentID string) (WorkflowState, bool, error) {
	s, err := m.shipments.GetShipment(ctx, shipmentID)
	if err != nil {
		return StateNone, false, fmt.Errorf("get shipment: %w", err)
	}

	links, err := m.links.GetLinksByShipment(ctx, shipmentID)
	if err != nil {
		return StateNone, false, fmt.Errorf("get links: %w", err)
	}

	computed := ComputeState(links)
	next, changed := AdvanceState(s.State, computed)
	if !changed {
		return s.State, false, nil
	}

	now := time.Now()
	if err := m.shipments.UpdateShipmentState(ctx, shipmentID, next, now); err != nil {
		return s.State, false, fmt.Errorf("persist state: %w", err)
	}

	m.logger.Info("Advanced workflow state",
		zap.String("shipment_id", shipmentID),
		zap.String("from", s.State.String()),
		zap.String("to", next.String()))

	return next, true, nil
}
