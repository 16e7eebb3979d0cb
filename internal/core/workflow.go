package core

// WorkflowState is the ranked milestone a shipment has reached based on
// accumulated document evidence. Ranks form a total order; a shipment's
// recorded rank never decreases. StateCancelled is a sticky terminal state
// that outranks everything.
type WorkflowState int

const (
	StateNone                  WorkflowState = 0
	StateBookingConfirmed      WorkflowState = 100
	StateBookingAmended        WorkflowState = 105
	StateSISubmitted           WorkflowState = 110
	StateVGMSubmitted          WorkflowState = 115
	StateISFFiled              WorkflowState = 118
	StateCargoGateIn           WorkflowState = 120
	StateShippedOnBoard        WorkflowState = 125
	StateBLReceived            WorkflowState = 130
	StateHBLShared             WorkflowState = 132
	StateFMCFiled              WorkflowState = 135
	StateCustomsEntryFiled     WorkflowState = 150
	StateArrivalNoticeReceived WorkflowState = 180
	StateDeliveryOrderIssued   WorkflowState = 185
	StateDelivered             WorkflowState = 190
	StatePODReceived           WorkflowState = 195
	StateCancelled             WorkflowState = 999
)

// String returns the snake_case name persisted in the store.
func (s WorkflowState) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateBookingConfirmed:
		return "booking_confirmed"
	case StateBookingAmended:
		return "booking_amended"
	case StateSISubmitted:
		return "si_submitted"
	case StateVGMSubmitted:
		return "vgm_submitted"
	case StateISFFiled:
		return "isf_filed"
	case StateCargoGateIn:
		return "cargo_gate_in"
	case StateShippedOnBoard:
		return "shipped_on_board"
	case StateBLReceived:
		return "bl_received"
	case StateHBLShared:
		return "hbl_shared"
	case StateFMCFiled:
		return "fmc_filed"
	case StateCustomsEntryFiled:
		return "customs_entry_filed"
	case StateArrivalNoticeReceived:
		return "arrival_notice_received"
	case StateDeliveryOrderIssued:
		return "delivery_order_issued"
	case StateDelivered:
		return "delivered"
	case StatePODReceived:
		return "pod_received"
	case StateCancelled:
		return "cancelled"
	}
	return "none"
}

// ParseWorkflowState maps a persisted name back to its state. Unrecognised
// names map to StateNone so stale rows never block recomputation.
func ParseWorkflowState(name string) WorkflowState {
	for _, s := range []WorkflowState{
		StateBookingConfirmed, StateBookingAmended, StateSISubmitted,
		StateVGMSubmitted, StateISFFiled, StateCargoGateIn,
		StateShippedOnBoard, StateBLReceived, StateHBLShared, StateFMCFiled,
		StateCustomsEntryFiled, StateArrivalNoticeReceived,
		StateDeliveryOrderIssued, StateDelivered, StatePODReceived,
		StateCancelled,
	} {
		if s.String() == name {
			return s
		}
	}
	return StateNone
}

// stateKey pairs a document type with the direction it was observed in.
// The same document type implies different milestones depending on who
// sent it: a bill of lading received from a carrier means the MBL is in
// hand, while one we send outbound means the HBL went to the customer.
type stateKey struct {
	docType   DocumentType
	direction Direction
}

// stateMapping is the fixed (type, direction) -> state table. Pairs with
// no entry carry no workflow meaning and are ignored.
var stateMapping = map[stateKey]WorkflowState{
	{DocBookingConfirmation, DirectionInbound}:  StateBookingConfirmed,
	{DocBookingAmendment, DirectionInbound}:     StateBookingAmended,
	{DocBookingCancellation, DirectionInbound}:  StateCancelled,
	{DocBookingCancellation, DirectionOutbound}: StateCancelled,
	{DocShippingInstruction, DirectionOutbound}: StateSISubmitted,
	{DocSIConfirmation, DirectionInbound}:       StateSISubmitted,
	{DocVGMConfirmation, DirectionInbound}:      StateVGMSubmitted,
	{DocISFFiling, DirectionOutbound}:           StateISFFiled,
	{DocISFFiling, DirectionInbound}:            StateISFFiled,
	{DocGateInConfirmation, DirectionInbound}:   StateCargoGateIn,
	{DocSOBConfirmation, DirectionInbound}:      StateShippedOnBoard,
	{DocBillOfLading, DirectionInbound}:         StateBLReceived,
	{DocBillOfLading, DirectionOutbound}:        StateHBLShared,
	{DocHouseBL, DirectionOutbound}:             StateHBLShared,
	{DocShipmentNotice, DirectionOutbound}:      StateFMCFiled,
	{DocCustomsEntry, DirectionInbound}:         StateCustomsEntryFiled,
	{DocArrivalNotice, DirectionInbound}:        StateArrivalNoticeReceived,
	{DocDeliveryOrder, DirectionInbound}:        StateDeliveryOrderIssued,
	{DocProofOfDelivery, DirectionInbound}:      StatePODReceived,
	{DocProofOfDelivery, DirectionOutbound}:     StatePODReceived,
}

// StateFor returns the workflow state implied by a (type, direction) pair,
// or StateNone when the pair carries no workflow meaning.
func StateFor(dt DocumentType, dir Direction) WorkflowState {
	return stateMapping[stateKey{dt, dir}]
}

// ComputeState derives the highest-ranked state implied by a shipment's
// full set of linked documents. It is always recomputed from scratch, never
// incrementally patched, so it is safe to re-run after any backfill.
func ComputeState(links []ShipmentDocument) WorkflowState {
	highest := StateNone
	for _, l := range links {
		if s := StateFor(l.DocType, l.Direction); s > highest {
			highest = s
		}
	}
	return highest
}

// AdvanceState applies monotonic state advancement: the computed state is
// adopted only if it outranks the current one. Cancelled is sticky; once
// recorded, nothing moves the shipment off it.
func AdvanceState(current, computed WorkflowState) (WorkflowState, bool) {
	if current == StateCancelled {
		return current, false
	}
	if computed > current {
		return computed, true
	}
	return current, false
}
