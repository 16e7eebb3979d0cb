package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Party identifies who a document came from, for action rule lookup.
type Party string

const (
	PartyCarrier  Party = "carrier"
	PartyCustomer Party = "customer"
	PartyPartner  Party = "partner"
	PartyInternal Party = "internal"
	PartyUnknown  Party = "unknown"
)

// ActionRule decides whether a document demands a response and from whom.
// FlipKeywords invert the base HasAction decision when any of them appear
// in the subject or body ("confirmed" flips an amendment chase to done).
type ActionRule struct {
	DocType      DocumentType
	FromParty    Party
	IsReply      bool
	HasAction    bool
	ActionVerb   string
	Owner        string
	BasePriority int
	DeadlineHrs  int
	FlipKeywords []string
}

// Recommendation is the derived action for one document.
type Recommendation struct {
	HasAction  bool
	ActionVerb string
	Owner      string
	Priority   int // 0-100
	Bucket     string
	Deadline   *time.Time
}

// docCriticality weights document types into the priority sum. Types not
// listed weigh 20.
var docCriticality = map[DocumentType]int{
	DocBookingCancellation: 90,
	DocCutoffAdvisory:      80,
	DocDraftBL:             70,
	DocArrivalNotice:       65,
	DocBookingAmendment:    60,
	DocShippingInstruction: 55,
	DocISFFiling:           55,
	DocCustomsEntry:        50,
	DocDeliveryOrder:       50,
	DocBillOfLading:        45,
	DocHouseBL:             40,
	DocBookingConfirmation: 35,
	DocInvoice:             30,
}

// urgencyKeywords add weight when present in subject or body.
var urgencyKeywords = []string{
	"urgent", "asap", "immediately", "final notice", "last free day",
	"demurrage", "detention", "today", "deadline",
}

// defaultActionRules is the built-in rule set, used when no store-backed
// set is configured and as the fallback when loading fails.
var defaultActionRules = []ActionRule{
	{DocType: DocBookingConfirmation, FromParty: PartyCarrier, HasAction: true, ActionVerb: "review_booking", Owner: "ops", BasePriority: 40, DeadlineHrs: 24},
	{DocType: DocBookingAmendment, FromParty: PartyCarrier, HasAction: true, ActionVerb: "verify_amendment", Owner: "ops", BasePriority: 55, DeadlineHrs: 12,
		FlipKeywords: []string{"confirmed", "no further action", "as requested"}},
	{DocType: DocBookingCancellation, FromParty: PartyCarrier, HasAction: true, ActionVerb: "notify_customer", Owner: "ops", BasePriority: 85, DeadlineHrs: 4},
	{DocType: DocCutoffAdvisory, FromParty: PartyCarrier, HasAction: true, ActionVerb: "confirm_cutoffs", Owner: "docs", BasePriority: 70, DeadlineHrs: 8},
	{DocType: DocDraftBL, FromParty: PartyCarrier, HasAction: true, ActionVerb: "verify_draft_bl", Owner: "docs", BasePriority: 65, DeadlineHrs: 24,
		FlipKeywords: []string{"approved", "no corrections"}},
	{DocType: DocBillOfLading, FromParty: PartyCarrier, HasAction: true, ActionVerb: "share_hbl", Owner: "docs", BasePriority: 50, DeadlineHrs: 24},
	{DocType: DocArrivalNotice, FromParty: PartyCarrier, HasAction: true, ActionVerb: "arrange_clearance", Owner: "import", BasePriority: 60, DeadlineHrs: 24},
	{DocType: DocDeliveryOrder, FromParty: PartyCarrier, HasAction: true, ActionVerb: "dispatch_trucker", Owner: "import", BasePriority: 55, DeadlineHrs: 24},
	{DocType: DocInvoice, FromParty: PartyCarrier, HasAction: true, ActionVerb: "process_invoice", Owner: "accounting", BasePriority: 30, DeadlineHrs: 120},
	{DocType: DocShippingInstruction, FromParty: PartyCustomer, HasAction: true, ActionVerb: "submit_si", Owner: "docs", BasePriority: 60, DeadlineHrs: 8},
	{DocType: DocBookingAmendment, FromParty: PartyCustomer, HasAction: true, ActionVerb: "request_amendment", Owner: "ops", BasePriority: 55, DeadlineHrs: 8,
		FlipKeywords: []string{"confirmed", "already amended"}},
	{DocType: DocGeneralCorrespondence, FromParty: PartyCustomer, IsReply: true, HasAction: true, ActionVerb: "respond", Owner: "ops", BasePriority: 35, DeadlineHrs: 24},
}

// ruleCache holds a loaded rule set with its expiry. The cache is an
// explicit value owned by the engine, refreshed on access past expiry;
// a stale set may be served for one load attempt rather than blocking.
type ruleCache struct {
	rules    []ActionRule
	expires  time.Time
}

// ActionEngine derives recommended actions from document type, party and
// reply status, with keyword flips and a weighted priority score.
type ActionEngine struct {
	store  ActionRuleStore
	ttl    time.Duration
	logger *zap.Logger

	mu    sync.Mutex
	cache ruleCache
}

// NewActionEngine creates an action engine. Store may be nil to use the
// built-in rule set only.
func NewActionEngine(store ActionRuleStore, ttl time.Duration, logger *zap.Logger) *ActionEngine {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ActionEngine{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// rules returns the active rule set, reloading from the store when the
// cache expired. Load failures keep serving the stale set.
func (e *ActionEngine) rules(ctx context.Context) []ActionRule {
	if e.store == nil {
		return defaultActionRules
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if time.Now().Before(e.cache.expires) && e.cache.rules != nil {
		return e.cache.rules
	}

	loaded, err := e.store.LoadActionRules(ctx)
	if err != nil {
		e.logger.Warn("Failed to reload action rules, serving stale set", zap.Error(err))
		if e.cache.rules != nil {
			e.cache.expires = time.Now().Add(e.ttl)
			return e.cache.rules
		}
		return defaultActionRules
	}
	if len(loaded) == 0 {
		loaded = defaultActionRules
	}

	e.cache = ruleCache{rules: loaded, expires: time.Now().Add(e.ttl)}
	return loaded
}

// Recommend derives the action for a document. Lookup falls back from
// (type, party, isReply) to (type, party, false) to (type, unknown, false)
// to a generic default.
func (e *ActionEngine) Recommend(ctx context.Context, docType DocumentType, fromParty Party, isReply bool, subject, body string, emailDate time.Time) *Recommendation {
	ruleSet := e.rules(ctx)

	rule, ok := lookupRule(ruleSet, docType, fromParty, isReply)
	if !ok {
		rule, ok = lookupRule(ruleSet, docType, fromParty, false)
	}
	if !ok {
		rule, ok = lookupRule(ruleSet, docType, PartyUnknown, false)
	}
	if !ok {
		rule = ActionRule{
			DocType:      docType,
			HasAction:    RequiresActionByDefault(docType),
			ActionVerb:   "review",
			Owner:        "ops",
			BasePriority: docCriticality[docType],
			DeadlineHrs:  48,
		}
	}

	hasAction := rule.HasAction
	text := strings.ToLower(subject + "\n" + body)
	for _, kw := range rule.FlipKeywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			hasAction = !hasAction
			break
		}
	}

	priority := e.score(docType, rule.BasePriority, text)

	rec := &Recommendation{
		HasAction:  hasAction,
		Priority:   priority,
		Bucket:     bucketFor(priority),
	}
	if hasAction {
		rec.ActionVerb = rule.ActionVerb
		rec.Owner = rule.Owner
		if rule.DeadlineHrs > 0 {
			d := emailDate.Add(time.Duration(rule.DeadlineHrs) * time.Hour)
			rec.Deadline = &d
		}
	}
	return rec
}

// score is a weighted sum of document criticality, rule base priority and
// urgency keyword hits, capped at 100.
func (e *ActionEngine) score(docType DocumentType, base int, loweredText string) int {
	priority := base
	if base == 0 {
		priority = docCriticality[docType]
	}
	priority += docCriticality[docType] / 4

	for _, kw := range urgencyKeywords {
		if strings.Contains(loweredText, kw) {
			priority += 15
			break
		}
	}
	if strings.Contains(loweredText, "urgent") && strings.Contains(loweredText, "asap") {
		priority += 5
	}

	if priority > 100 {
		priority = 100
	}
	if priority < 0 {
		priority = 0
	}
	return priority
}

func lookupRule(rules []ActionRule, docType DocumentType, fromParty Party, isReply bool) (ActionRule, bool) {
	for _, r := range rules {
		if r.DocType == docType && r.FromParty == fromParty && r.IsReply == isReply {
			return r, true
		}
	}
	return ActionRule{}, false
}

func bucketFor(priority int) string {
	switch {
	case priority >= 80:
		return "critical"
	case priority >= 60:
		return "high"
	case priority >= 40:
		return "medium"
	default:
		return "low"
	}
}
