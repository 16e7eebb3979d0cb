package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mikey/freight-doc-engine/internal/core"
)

func TestStateForDirectionSensitiveBL(t *testing.T) {
	// A bill of lading from the carrier means the MBL is in hand; one we
	// send out means the HBL went to the customer.
	assert.Equal(t, core.StateBLReceived, core.StateFor(core.DocBillOfLading, core.DirectionInbound))
	assert.Equal(t, core.StateHBLShared, core.StateFor(core.DocBillOfLading, core.DirectionOutbound))
	assert.Equal(t, core.StateHBLShared, core.StateFor(core.DocHouseBL, core.DirectionOutbound))
}

func TestStateForUnmappedPairs(t *testing.T) {
	assert.Equal(t, core.StateNone, core.StateFor(core.DocInvoice, core.DirectionInbound))
	assert.Equal(t, core.StateNone, core.StateFor(core.DocBookingConfirmation, core.DirectionOutbound))
	assert.Equal(t, core.StateNone, core.StateFor(core.DocUnknown, core.DirectionInbound))
	assert.Equal(t, core.StateNone, core.StateFor(core.DocGeneralCorrespondence, core.DirectionInbound))
}

func TestStateForCancellationEitherDirection(t *testing.T) {
	assert.Equal(t, core.StateCancelled, core.StateFor(core.DocBookingCancellation, core.DirectionInbound))
	assert.Equal(t, core.StateCancelled, core.StateFor(core.DocBookingCancellation, core.DirectionOutbound))
}

func TestComputeStateTakesHighestRank(t *testing.T) {
	links := []core.ShipmentDocument{
		{DocType: core.DocBookingConfirmation, Direction: core.DirectionInbound},
		{DocType: core.DocSOBConfirmation, Direction: core.DirectionInbound},
		{DocType: core.DocShippingInstruction, Direction: core.DirectionOutbound},
	}
	assert.Equal(t, core.StateShippedOnBoard, core.ComputeState(links))

	assert.Equal(t, core.StateNone, core.ComputeState(nil))
}

func TestAdvanceStateMonotonic(t *testing.T) {
	next, changed := core.AdvanceState(core.StateBookingConfirmed, core.StateShippedOnBoard)
	assert.True(t, changed)
	assert.Equal(t, core.StateShippedOnBoard, next)

	// Lower-ranked evidence never regresses the recorded state.
	next, changed = core.AdvanceState(core.StateShippedOnBoard, core.StateBookingConfirmed)
	assert.False(t, changed)
	assert.Equal(t, core.StateShippedOnBoard, next)

	next, changed = core.AdvanceState(core.StateShippedOnBoard, core.StateShippedOnBoard)
	assert.False(t, changed)
	assert.Equal(t, core.StateShippedOnBoard, next)
}

func TestAdvanceStateCancelledIsSticky(t *testing.T) {
	next, changed := core.AdvanceState(core.StateCancelled, core.StatePODReceived)
	assert.False(t, changed)
	assert.Equal(t, core.StateCancelled, next)

	next, changed = core.AdvanceState(core.StateBookingConfirmed, core.StateCancelled)
	assert.True(t, changed)
	assert.Equal(t, core.StateCancelled, next)
}

func TestWorkflowStateStringRoundTrip(t *testing.T) {
	states := []core.WorkflowState{
		core.StateBookingConfirmed, core.StateBookingAmended,
		core.StateSISubmitted, core.StateVGMSubmitted, core.StateISFFiled,
		core.StateCargoGateIn, core.StateShippedOnBoard, core.StateBLReceived,
		core.StateHBLShared, core.StateFMCFiled, core.StateCustomsEntryFiled,
		core.StateArrivalNoticeReceived, core.StateDeliveryOrderIssued,
		core.StateDelivered, core.StatePODReceived, core.StateCancelled,
	}
	for _, s := range states {
		assert.Equal(t, s, core.ParseWorkflowState(s.String()), "state=%s", s)
	}

	assert.Equal(t, core.StateNone, core.ParseWorkflowState("none"))
	assert.Equal(t, core.StateNone, core.ParseWorkflowState("not_a_state"))
	assert.Equal(t, core.StateNone, core.ParseWorkflowState(""))
}
