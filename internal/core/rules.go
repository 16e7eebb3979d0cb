package core

import (
	"regexp"
)

// ClassifierRule is one row of the consolidated, data-driven rule table
// that backs classification. Direction-qualified rows only fire when the
// detected direction matches (empty Direction matches both).
type ClassifierRule struct {
	Pattern    *regexp.Regexp
	DocType    DocumentType
	Direction  Direction
	Confidence int
}

// filenameRules match attachment filenames. Filename evidence is the
// strongest signal in the cascade: carriers name their PDFs consistently.
var filenameRules = []ClassifierRule{
	{regexp.MustCompile(`(?i)booking[ _-]?confirm`), DocBookingConfirmation, "", 95},
	{regexp.MustCompile(`(?i)\bBC[ _-]?\d{6,}`), DocBookingConfirmation, "", 95},
	{regexp.MustCompile(`(?i)booking[ _-]?amend`), DocBookingAmendment, "", 95},
	{regexp.MustCompile(`(?i)booking[ _-]?cancel`), DocBookingCancellation, "", 95},
	{regexp.MustCompile(`(?i)shipping[ _-]?instruction`), DocShippingInstruction, "", 95},
	{regexp.MustCompile(`(?i)\bSI[ _-]?(?:draft|submission)`), DocShippingInstruction, "", 95},
	{regexp.MustCompile(`(?i)vgm`), DocVGMConfirmation, "", 95},
	{regexp.MustCompile(`(?i)draft[ _-]?(?:bl|b/l|obl)`), DocDraftBL, "", 95},
	{regexp.MustCompile(`(?i)bl[ _-]?(?:proof|check|verify)`), DocDraftBL, "", 95},
	{regexp.MustCompile(`(?i)bill[ _-]?of[ _-]?lading`), DocBillOfLading, "", 95},
	{regexp.MustCompile(`(?i)\bMBL[ _-]?\w*\.pdf`), DocBillOfLading, "", 95},
	{regexp.MustCompile(`(?i)\bHBL[ _-]?\w*`), DocHouseBL, "", 95},
	{regexp.MustCompile(`(?i)house[ _-]?bl`), DocHouseBL, "", 95},
	{regexp.MustCompile(`(?i)\bisf\b|10\+2`), DocISFFiling, "", 95},
	{regexp.MustCompile(`(?i)7501`), DocCustomsEntry, "", 95},
	{regexp.MustCompile(`(?i)entry[ _-]?summary`), DocCustomsEntry, "", 95},
	{regexp.MustCompile(`(?i)arrival[ _-]?notice`), DocArrivalNotice, "", 95},
	{regexp.MustCompile(`(?i)delivery[ _-]?order`), DocDeliveryOrder, "", 95},
	{regexp.MustCompile(`(?i)\bPOD[ _-]?\w*`), DocProofOfDelivery, "", 95},
	{regexp.MustCompile(`(?i)invoice`), DocInvoice, "", 92},
}

// contentRules match concatenated, lower-cased body + attachment text.
// Preferred over subject for thread replies: reply subjects carry the
// original topic, not the current document.
var contentRules = []ClassifierRule{
	{regexp.MustCompile(`booking (?:is |has been )?(?:confirmed|acknowledg)`), DocBookingConfirmation, "", 90},
	{regexp.MustCompile(`booking confirmation`), DocBookingConfirmation, "", 90},
	{regexp.MustCompile(`booking (?:has been )?amend`), DocBookingAmendment, "", 90},
	{regexp.MustCompile(`amendment to (?:your )?booking`), DocBookingAmendment, "", 90},
	{regexp.MustCompile(`booking (?:has been |is )?cancel`), DocBookingCancellation, "", 90},
	{regexp.MustCompile(`shipping instruction`), DocShippingInstruction, DirectionOutbound, 90},
	{regexp.MustCompile(`si (?:has been )?(?:received|accepted|confirmed)`), DocSIConfirmation, DirectionInbound, 90},
	{regexp.MustCompile(`verified gross mass|vgm (?:has been )?(?:received|accepted|confirmed)`), DocVGMConfirmation, "", 90},
	{regexp.MustCompile(`(?:si|vgm|cargo|gate|doc(?:umentation)?) cut[- ]?off`), DocCutoffAdvisory, "", 88},
	{regexp.MustCompile(`gated? in|gate-in confirm`), DocGateInConfirmation, "", 90},
	{regexp.MustCompile(`shipped on board|on board confirmation`), DocSOBConfirmation, "", 90},
	{regexp.MustCompile(`draft (?:bill of lading|b/l|bl)|bl (?:draft|proof) for (?:your )?(?:review|approval)`), DocDraftBL, "", 90},
	{regexp.MustCompile(`(?:original|master) bill of lading|sea ?waybill`), DocBillOfLading, "", 90},
	{regexp.MustCompile(`bill of lading`), DocBillOfLading, "", 88},
	{regexp.MustCompile(`house (?:bill of lading|b/l|bl)`), DocHouseBL, "", 90},
	{regexp.MustCompile(`importer security filing|isf (?:has been )?filed|10\+2 filing`), DocISFFiling, "", 90},
	{regexp.MustCompile(`entry summary|cbp form 7501|customs entry`), DocCustomsEntry, "", 90},
	{regexp.MustCompile(`fmc filing|shipment notice`), DocShipmentNotice, "", 88},
	{regexp.MustCompile(`arrival notice|notice of arrival|cargo arrival`), DocArrivalNotice, "", 90},
	{regexp.MustCompile(`delivery order`), DocDeliveryOrder, "", 90},
	{regexp.MustCompile(`proof of delivery|cargo (?:was |has been )?delivered`), DocProofOfDelivery, "", 90},
	{regexp.MustCompile(`(?:freight|ocean) invoice|invoice (?:no|number|#)`), DocInvoice, "", 88},
}

// subjectRules encode known carrier and partner subject-line conventions.
var subjectRules = []ClassifierRule{
	{regexp.MustCompile(`(?i)^booking confirmation\b`), DocBookingConfirmation, "", 95},
	{regexp.MustCompile(`(?i)booking (?:confirmation|confirmed)[:#\s]`), DocBookingConfirmation, "", 92},
	{regexp.MustCompile(`(?i)booking amendment`), DocBookingAmendment, "", 92},
	{regexp.MustCompile(`(?i)booking cancellation|cancelled booking`), DocBookingCancellation, "", 92},
	{regexp.MustCompile(`(?i)shipping instruction`), DocShippingInstruction, "", 88},
	{regexp.MustCompile(`(?i)\bsi (?:confirmation|accepted)`), DocSIConfirmation, "", 90},
	{regexp.MustCompile(`(?i)\bvgm\b`), DocVGMConfirmation, "", 88},
	{regexp.MustCompile(`(?i)cut[- ]?off (?:advisory|notice|reminder)`), DocCutoffAdvisory, "", 90},
	{regexp.MustCompile(`(?i)gate[- ]?in`), DocGateInConfirmation, "", 88},
	{regexp.MustCompile(`(?i)shipped on board|\bsob\b`), DocSOBConfirmation, "", 90},
	{regexp.MustCompile(`(?i)draft (?:bl|b/l)|bl (?:draft|proof|verify)`), DocDraftBL, "", 90},
	{regexp.MustCompile(`(?i)(?:original|master)? ?bill of lading|\bmbl\b|\bobl\b`), DocBillOfLading, "", 88},
	{regexp.MustCompile(`(?i)\bhbl\b|house bl`), DocHouseBL, "", 90},
	{regexp.MustCompile(`(?i)\bisf\b`), DocISFFiling, "", 90},
	{regexp.MustCompile(`(?i)7501|entry summary`), DocCustomsEntry, "", 92},
	{regexp.MustCompile(`(?i)shipment notice`), DocShipmentNotice, "", 85},
	{regexp.MustCompile(`(?i)arrival notice`), DocArrivalNotice, "", 92},
	{regexp.MustCompile(`(?i)delivery order`), DocDeliveryOrder, "", 90},
	{regexp.MustCompile(`(?i)proof of delivery|\bpod\b`), DocProofOfDelivery, "", 88},
	{regexp.MustCompile(`(?i)invoice`), DocInvoice, "", 85},
}

// matchRules returns the first rule whose pattern matches the text and
// whose direction qualifier (if any) matches the detected direction.
func matchRules(rules []ClassifierRule, text string, dir Direction) (ClassifierRule, bool) {
	for _, r := range rules {
		if r.Direction != "" && r.Direction != dir {
			continue
		}
		if r.Pattern.MatchString(text) {
			return r, true
		}
	}
	return ClassifierRule{}, false
}
