package core

import (
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// extractionRule is one row of the extraction table: an entity type, an
// ordered list of patterns tried in sequence, and a validator applied to
// every candidate before acceptance.
type extractionRule struct {
	entityType EntityType
	patterns   []*regexp.Regexp
	validate   func(string) bool
	confidence int
}

// garbageMarkers are lexical hints that a date regex captured prose
// rather than a value ("please advise the revised eta", "reference below").
var garbageMarkers = []string{
	"reference", "please", "delay", "below", "attached", "advise",
	"update", "tbd", "tba", "pending",
}

var extractionRules = []extractionRule{
	{
		entityType: EntityBookingNumber,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)booking\s*(?:confirmation|amendment|cancellation)?\s*(?:no\.?|number|ref(?:erence)?|#)?\s*[:\-]?\s*([A-Z0-9]{6,12})\b`),
			regexp.MustCompile(`(?i)\bbkg\s*(?:no\.?|#)?\s*[:\-]?\s*([A-Z0-9]{6,12})\b`),
		},
		validate:   validBookingNumber,
		confidence: 90,
	},
	{
		entityType: EntityMBLNumber,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bmbl\s*(?:no\.?|number|#)?\s*[:\-]?\s*([A-Z0-9]{8,16})\b`),
			regexp.MustCompile(`(?i)master\s+(?:bill of lading|b/l|bl)\s*(?:no\.?|number|#)?\s*[:\-]?\s*([A-Z0-9]{8,16})\b`),
		},
		validate:   validBLNumber,
		confidence: 90,
	},
	{
		entityType: EntityHBLNumber,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bhbl\s*(?:no\.?|number|#)?\s*[:\-]?\s*([A-Z0-9]{8,16})\b`),
			regexp.MustCompile(`(?i)house\s+(?:bill of lading|b/l|bl)\s*(?:no\.?|number|#)?\s*[:\-]?\s*([A-Z0-9]{8,16})\b`),
		},
		validate:   validBLNumber,
		confidence: 90,
	},
	{
		entityType: EntityBLNumber,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:bill of lading|b/l|\bbl\b|\bobl\b)\s*(?:no\.?|number|#)?\s*[:\-]?\s*([A-Z0-9]{8,16})\b`),
		},
		validate:   validBLNumber,
		confidence: 85,
	},
	{
		entityType: EntityContainerNumber,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b([A-Z]{4}\s?\d{7})\b`),
		},
		validate:   validContainerNumber,
		confidence: 95,
	},
	{
		entityType: EntityVessel,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)vessel\s*(?:name)?\s*[:\-]\s*([A-Za-z][A-Za-z0-9 .\-]{2,30})`),
			regexp.MustCompile(`(?i)\bvsl\s*[:\-]\s*([A-Za-z][A-Za-z0-9 .\-]{2,30})`),
		},
		validate:   validVesselName,
		confidence: 80,
	},
	{
		entityType: EntityVoyage,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)voyage\s*(?:no\.?|#)?\s*[:\-]?\s*([A-Z0-9]{2,8})\b`),
			regexp.MustCompile(`(?i)\bvoy\.?\s*[:\-]?\s*([A-Z0-9]{2,8})\b`),
		},
		validate:   func(v string) bool { return v != "" },
		confidence: 75,
	},
	{
		entityType: EntityPortOfLoading,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)port of loading\s*[:\-]\s*([A-Za-z][A-Za-z ,.\-]{2,40})`),
			regexp.MustCompile(`(?i)\bpol\s*[:\-]\s*([A-Za-z][A-Za-z ,.\-]{2,40})`),
		},
		validate:   validPortName,
		confidence: 80,
	},
	{
		entityType: EntityPortOfDischarge,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)port of discharge\s*[:\-]\s*([A-Za-z][A-Za-z ,.\-]{2,40})`),
			regexp.MustCompile(`(?i)\bpod\s*[:\-]\s*([A-Za-z][A-Za-z ,.\-]{2,40})`),
		},
		validate:   validPortName,
		confidence: 80,
	},
	{
		entityType: EntityETD,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\betd\s*[:\-]?\s*([A-Za-z0-9 ,/\-]{6,24})`),
			regexp.MustCompile(`(?i)(?:estimated )?(?:time of )?departure\s*(?:date)?\s*[:\-]\s*([A-Za-z0-9 ,/\-]{6,24})`),
		},
		validate:   validDate,
		confidence: 85,
	},
	{
		entityType: EntityETA,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\beta\s*[:\-]?\s*([A-Za-z0-9 ,/\-]{6,24})`),
			regexp.MustCompile(`(?i)(?:estimated )?(?:time of )?arrival\s*(?:date)?\s*[:\-]\s*([A-Za-z0-9 ,/\-]{6,24})`),
		},
		validate:   validDate,
		confidence: 85,
	},
	{
		entityType: EntitySICutoff,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:si|doc(?:umentation)?)\s*cut[- ]?off\s*[:\-]?\s*([A-Za-z0-9 ,/:\-]{6,30})`),
		},
		validate:   validDate,
		confidence: 85,
	},
	{
		entityType: EntityVGMCutoff,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)vgm\s*cut[- ]?off\s*[:\-]?\s*([A-Za-z0-9 ,/:\-]{6,30})`),
		},
		validate:   validDate,
		confidence: 85,
	},
	{
		entityType: EntityCargoCutoff,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:cargo|cy)\s*cut[- ]?off\s*[:\-]?\s*([A-Za-z0-9 ,/:\-]{6,30})`),
		},
		validate:   validDate,
		confidence: 85,
	},
	{
		entityType: EntityGateCutoff,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)gate\s*cut[- ]?off\s*[:\-]?\s*([A-Za-z0-9 ,/:\-]{6,30})`),
		},
		validate:   validDate,
		confidence: 85,
	},
}

// carrierNamePattern matches recognised shipping lines mentioned in text.
// Carrier presence is what gates shipment creation in the link resolver.
var carrierNamePattern = regexp.MustCompile(`(?i)\b(maersk|msc|cma[ -]?cgm|hapag[ -]?lloyd|evergreen|cosco|oocl|yang ming|hmm|zim|one)\b`)

var carrierCanonical = map[string]string{
	"maersk":      "Maersk",
	"msc":         "MSC",
	"cma cgm":     "CMA CGM",
	"cma-cgm":     "CMA CGM",
	"cmacgm":      "CMA CGM",
	"hapag lloyd": "Hapag-Lloyd",
	"hapag-lloyd": "Hapag-Lloyd",
	"evergreen":   "Evergreen",
	"cosco":       "COSCO",
	"oocl":        "OOCL",
	"yang ming":   "Yang Ming",
	"hmm":         "HMM",
	"zim":         "ZIM",
	"one":         "ONE",
}

// EntityExtractor pulls identifiers and dates out of email text using the
// pattern table above.
type EntityExtractor struct {
	logger *zap.Logger
}

// NewEntityExtractor creates an extractor.
func NewEntityExtractor(logger *zap.Logger) *EntityExtractor {
	return &EntityExtractor{logger: logger}
}

// Extract runs every rule over the text. Multiple matches for the same
// entity type are kept in document order, not deduplicated here, so
// downstream consumers can apply first/last selection for multi-leg moves.
func (e *EntityExtractor) Extract(messageID, text string, source EntitySource) []Entity {
	var out []Entity

	for _, rule := range extractionRules {
		for _, pattern := range rule.patterns {
			for _, m := range pattern.FindAllStringSubmatch(text, -1) {
				value := normalizeEntityValue(rule.entityType, m[1])
				if value == "" || !rule.validate(value) {
					continue
				}
				out = append(out, Entity{
					MessageID:  messageID,
					Type:       rule.entityType,
					Value:      value,
					Confidence: rule.confidence,
					Source:     source,
				})
			}
		}
	}

	for _, m := range carrierNamePattern.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(strings.Join(strings.Fields(m[1]), " "))
		canonical, ok := carrierCanonical[name]
		if !ok {
			canonical = carrierCanonical[strings.ReplaceAll(name, " ", "-")]
		}
		if canonical == "" {
			continue
		}
		out = append(out, Entity{
			MessageID:  messageID,
			Type:       EntityCarrier,
			Value:      canonical,
			Confidence: 85,
			Source:     source,
		})
	}

	e.logger.Debug("Extracted entities",
		zap.String("message_id", messageID),
		zap.String("source", string(source)),
		zap.Int("count", len(out)))

	return out
}

// ExtractAll runs extraction over the subject, body, attachment texts
// and attachment filenames of a message and returns the combined ordered
// sequence. Carrier notifications frequently carry the booking number
// only in the subject line, and container numbers turn up in filenames.
func (e *EntityExtractor) ExtractAll(msg *Message) []Entity {
	entities := e.Extract(msg.ID, msg.Subject, EntityFromSubject)
	entities = append(entities, e.Extract(msg.ID, msg.Body, EntityFromBody)...)
	for _, text := range msg.AttachmentTexts {
		entities = append(entities, e.Extract(msg.ID, text, EntityFromAttachment)...)
	}
	for _, name := range msg.AttachmentNames {
		entities = append(entities, e.Extract(msg.ID, name, EntityFromAttachment)...)
	}
	return entities
}

func normalizeEntityValue(t EntityType, raw string) string {
	v := strings.TrimSpace(raw)
	switch t {
	case EntityBookingNumber, EntityBLNumber, EntityMBLNumber, EntityHBLNumber:
		return strings.ToUpper(v)
	case EntityContainerNumber:
		return strings.ToUpper(strings.ReplaceAll(v, " ", ""))
	case EntityVessel, EntityPortOfLoading, EntityPortOfDischarge:
		return strings.TrimRight(v, " .,-")
	case EntityVoyage:
		return strings.ToUpper(v)
	default:
		return strings.TrimRight(v, " .,-")
	}
}

// validBookingNumber accepts 6-12 alphanumerics containing at least one
// digit. All-letter captures are almost always prose fragments.
func validBookingNumber(v string) bool {
	if len(v) < 6 || len(v) > 12 {
		return false
	}
	hasDigit := false
	for _, r := range v {
		if r >= '0' && r <= '9' {
			hasDigit = true
		} else if r < 'A' || r > 'Z' {
			return false
		}
	}
	return hasDigit
}

func validBLNumber(v string) bool {
	if len(v) < 8 || len(v) > 16 {
		return false
	}
	hasDigit := false
	for _, r := range v {
		if r >= '0' && r <= '9' {
			hasDigit = true
		} else if r < 'A' || r > 'Z' {
			return false
		}
	}
	return hasDigit
}

// validContainerNumber checks the ISO 6346 shape: four letters (owner code
// plus equipment category) followed by seven digits.
func validContainerNumber(v string) bool {
	if len(v) != 11 {
		return false
	}
	for i, r := range v {
		if i < 4 {
			if r < 'A' || r > 'Z' {
				return false
			}
		} else if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validVesselName(v string) bool {
	if len(v) < 3 {
		return false
	}
	return !containsGarbageMarker(v)
}

func validPortName(v string) bool {
	if len(v) < 3 {
		return false
	}
	return !containsGarbageMarker(v)
}

// dateLayouts is the recognised date grammar for schedule entities.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2-Jan-2006",
	"02-Jan-2006",
	"2006/01/02",
}

// validDate accepts values parseable under the date grammar with a
// plausible year, and rejects captures carrying garbage markers.
func validDate(v string) bool {
	if containsGarbageMarker(v) {
		return false
	}
	if _, ok := ParseShippingDate(v); !ok {
		return false
	}
	return true
}

func containsGarbageMarker(v string) bool {
	lowered := strings.ToLower(v)
	for _, marker := range garbageMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// ParseShippingDate parses a date value under the recognised grammar and
// checks the year is plausible for an active shipment.
func ParseShippingDate(v string) (time.Time, bool) {
	cleaned := strings.TrimSpace(v)
	// Strip a trailing time component like "16:00" or "1600 hrs".
	if idx := strings.IndexAny(cleaned, ":"); idx > 0 {
		fields := strings.Fields(cleaned)
		kept := fields[:0]
		for _, f := range fields {
			if strings.Contains(f, ":") || strings.EqualFold(f, "hrs") {
				continue
			}
			kept = append(kept, f)
		}
		cleaned = strings.Join(kept, " ")
	}
	cleaned = strings.TrimRight(cleaned, " .,-")

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, cleaned)
		if err != nil {
			continue
		}
		if t.Year() < 2015 || t.Year() > 2040 {
			return time.Time{}, false
		}
		return t, true
	}

	// Two-digit years on carrier notices: "02/01/26".
	for _, layout := range []string{"02/01/06", "01/02/06", "2-Jan-06"} {
		t, err := time.Parse(layout, cleaned)
		if err == nil {
			if y := t.Year(); y >= 2015 && y <= 2040 {
				return t, true
			}
		}
	}

	return time.Time{}, false
}
