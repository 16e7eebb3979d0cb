package core

import (
	"strings"
)

// DocumentType is the closed enumeration of shipping document types this
// engine recognises. Adding a type means updating the state mapping and
// action tables alongside, so the set lives here rather than as free text.
type DocumentType string

const (
	DocBookingConfirmation  DocumentType = "booking_confirmation"
	DocBookingAmendment     DocumentType = "booking_amendment"
	DocBookingCancellation  DocumentType = "booking_cancellation"
	DocShippingInstruction  DocumentType = "shipping_instruction"
	DocSIConfirmation       DocumentType = "si_confirmation"
	DocVGMConfirmation      DocumentType = "vgm_confirmation"
	DocCutoffAdvisory       DocumentType = "cutoff_advisory"
	DocGateInConfirmation   DocumentType = "gate_in_confirmation"
	DocSOBConfirmation      DocumentType = "sob_confirmation"
	DocDraftBL              DocumentType = "draft_bl"
	DocBillOfLading         DocumentType = "bill_of_lading"
	DocHouseBL              DocumentType = "house_bl"
	DocISFFiling            DocumentType = "isf_filing"
	DocCustomsEntry         DocumentType = "customs_entry"
	DocShipmentNotice       DocumentType = "shipment_notice"
	DocArrivalNotice        DocumentType = "arrival_notice"
	DocDeliveryOrder        DocumentType = "delivery_order"
	DocProofOfDelivery      DocumentType = "proof_of_delivery"
	DocInvoice              DocumentType = "invoice"
	DocGeneralCorrespondence DocumentType = "general_correspondence"
	DocUnknown              DocumentType = "unknown"
)

// AllDocumentTypes lists every valid document type, used for validation
// and for constraining fallback model output.
var AllDocumentTypes = []DocumentType{
	DocBookingConfirmation,
	DocBookingAmendment,
	DocBookingCancellation,
	DocShippingInstruction,
	DocSIConfirmation,
	DocVGMConfirmation,
	DocCutoffAdvisory,
	DocGateInConfirmation,
	DocSOBConfirmation,
	DocDraftBL,
	DocBillOfLading,
	DocHouseBL,
	DocISFFiling,
	DocCustomsEntry,
	DocShipmentNotice,
	DocArrivalNotice,
	DocDeliveryOrder,
	DocProofOfDelivery,
	DocInvoice,
	DocGeneralCorrespondence,
	DocUnknown,
}

// docTypeSynonyms maps values the fallback model has been observed to emit
// onto the closed enumeration. Lookup is case-insensitive with spaces,
// hyphens and underscores collapsed.
var docTypeSynonyms = map[string]DocumentType{
	"booking":              DocBookingConfirmation,
	"bookingconfirm":       DocBookingConfirmation,
	"bookingconfirmed":     DocBookingConfirmation,
	"bookingamend":         DocBookingAmendment,
	"amendment":            DocBookingAmendment,
	"bookingcancel":        DocBookingCancellation,
	"cancellation":         DocBookingCancellation,
	"si":                   DocShippingInstruction,
	"shippinginstructions": DocShippingInstruction,
	"siconfirm":            DocSIConfirmation,
	"vgm":                  DocVGMConfirmation,
	"verifiedgrossmass":    DocVGMConfirmation,
	"cutoff":               DocCutoffAdvisory,
	"cutoffnotice":         DocCutoffAdvisory,
	"gatein":               DocGateInConfirmation,
	"sob":                  DocSOBConfirmation,
	"shippedonboard":       DocSOBConfirmation,
	"draftbl":              DocDraftBL,
	"blproof":              DocDraftBL,
	"checkbl":              DocDraftBL,
	"bl":                   DocBillOfLading,
	"obl":                  DocBillOfLading,
	"mbl":                  DocBillOfLading,
	"masterbill":           DocBillOfLading,
	"masterbilloflading":   DocBillOfLading,
	"billoflading":         DocBillOfLading,
	"hbl":                  DocHouseBL,
	"housebill":            DocHouseBL,
	"housebilloflading":    DocHouseBL,
	"isf":                  DocISFFiling,
	"isf10+2":              DocISFFiling,
	"importersecurityfiling": DocISFFiling,
	"7501":                 DocCustomsEntry,
	"entrysummary":         DocCustomsEntry,
	"customsentrysummary":  DocCustomsEntry,
	"fmcfiling":            DocShipmentNotice,
	"departurenotice":      DocShipmentNotice,
	"arrivalnotice":        DocArrivalNotice,
	"noticeofarrival":      DocArrivalNotice,
	"do":                   DocDeliveryOrder,
	"deliveryorder":        DocDeliveryOrder,
	"pod":                  DocProofOfDelivery,
	"proofofdelivery":      DocProofOfDelivery,
	"freightinvoice":       DocInvoice,
	"correspondence":       DocGeneralCorrespondence,
	"general":              DocGeneralCorrespondence,
	"other":                DocGeneralCorrespondence,
}

// NormalizeDocType maps an arbitrary string onto the closed document type
// enumeration. Exact enum values pass through; known synonyms are mapped;
// anything else becomes DocUnknown.
func NormalizeDocType(raw string) DocumentType {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	for _, dt := range AllDocumentTypes {
		if cleaned == string(dt) {
			return dt
		}
	}

	collapse := strings.NewReplacer(" ", "", "-", "", "_", "")
	collapsed := collapse.Replace(cleaned)
	for _, dt := range AllDocumentTypes {
		if collapsed == collapse.Replace(string(dt)) {
			return dt
		}
	}
	if dt, ok := docTypeSynonyms[collapsed]; ok {
		return dt
	}
	return DocUnknown
}

// noActionTypes are document types that never require a response on their
// own: confirmations and acknowledgements of something we already did.
var noActionTypes = map[DocumentType]bool{
	DocSIConfirmation:        true,
	DocVGMConfirmation:       true,
	DocSOBConfirmation:       true,
	DocGateInConfirmation:    true,
	DocProofOfDelivery:       true,
	DocGeneralCorrespondence: true,
}

// RequiresActionByDefault reports whether a type falls outside the fixed
// no-action set.
func RequiresActionByDefault(dt DocumentType) bool {
	return !noActionTypes[dt]
}
