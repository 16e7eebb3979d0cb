package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// DocEngineService orchestrates the full per-message path: classification,
// entity extraction, link resolution and workflow state advancement. It is
// the single entry point consumers call; each component stays usable on
// its own for reports and tooling.
type DocEngineService struct {
	classifier      *DocumentClassifier
	extractor       *EntityExtractor
	resolver        *LinkResolver
	stateMachine    *StateMachine
	actions         *ActionEngine
	direction       *DirectionDetector
	classifications ClassificationStore
	logger          *zap.Logger
}

// NewDocEngineService creates the orchestration service.
func NewDocEngineService(
	classifier *DocumentClassifier,
	extractor *EntityExtractor,
	resolver *LinkResolver,
	stateMachine *StateMachine,
	actions *ActionEngine,
	direction *DirectionDetector,
	classifications ClassificationStore,
	logger *zap.Logger,
) *DocEngineService {
	return &DocEngineService{
		classifier:      classifier,
		extractor:       extractor,
		resolver:        resolver,
		stateMachine:    stateMachine,
		actions:         actions,
		direction:       direction,
		classifications: classifications,
		logger:          logger,
	}
}

// ProcessResult summarises one message's run through the engine.
type ProcessResult struct {
	Classification *Classification
	Entities       []Entity
	Resolution     *Resolution
	State          WorkflowState
	StateChanged   bool
}

// ProcessMessage runs the engine over one message. A classification flagged
// manual_review is kept as-is; everything downstream still runs against it
// so links and state stay current. An unlinkable message is a valid outcome,
// not an error.
func (s *DocEngineService) ProcessMessage(ctx context.Context, msg *Message) (*ProcessResult, error) {
	cl, err := s.classifyOrKeep(ctx, msg)
	if err != nil {
		return nil, err
	}

	entities := s.extractor.ExtractAll(msg)
	if err := s.classifications.SaveEntities(ctx, msg.ID, entities); err != nil {
		return nil, fmt.Errorf("save entities: %w", err)
	}

	res, err := s.resolver.Resolve(ctx, msg, cl, entities)
	if err != nil {
		return nil, fmt.Errorf("resolve link: %w", err)
	}

	result := &ProcessResult{
		Classification: cl,
		Entities:       entities,
		Resolution:     res,
	}

	if res.Linked {
		state, changed, err := s.stateMachine.Advance(ctx, res.ShipmentID)
		if err != nil {
			return nil, fmt.Errorf("advance state: %w", err)
		}
		result.State = state
		result.StateChanged = changed
	}

	return result, nil
}

// classifyOrKeep returns the pinned classification when a human has
// flagged the record manual_review, and classifies + persists otherwise.
func (s *DocEngineService) classifyOrKeep(ctx context.Context, msg *Message) (*Classification, error) {
	existing, err := s.classifications.GetClassification(ctx, msg.ID)
	if err == nil && existing.ManualReview {
		s.logger.Debug("Keeping manual-review classification",
			zap.String("message_id", msg.ID),
			zap.String("doc_type", string(existing.DocType)))
		return existing, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get classification: %w", err)
	}

	cl, err := s.classifier.Classify(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	if err := s.classifications.SaveClassification(ctx, cl); err != nil {
		if errors.Is(err, ErrManualReview) {
			// A human pinned the record between our read and write.
			pinned, gerr := s.classifications.GetClassification(ctx, msg.ID)
			if gerr != nil {
				return nil, fmt.Errorf("reload pinned classification: %w", gerr)
			}
			return pinned, nil
		}
		return nil, fmt.Errorf("save classification: %w", err)
	}
	return cl, nil
}

// PartyFor derives the counterparty for action rules from the sender.
func (s *DocEngineService) PartyFor(msg *Message) Party {
	addr := msg.EffectiveSender()
	if _, ok := s.direction.IsCarrierDomain(addr); ok {
		return PartyCarrier
	}
	if s.direction.Detect(msg.Sender, msg.TrueSender) == DirectionOutbound {
		return PartyInternal
	}
	return PartyCustomer
}

// Recommend derives the action recommendation for an already-classified
// message.
func (s *DocEngineService) Recommend(ctx context.Context, msg *Message, cl *Classification) *Recommendation {
	return s.actions.Recommend(ctx, cl.DocType, s.PartyFor(msg), msg.IsReply, msg.Subject, msg.Body, msg.ReceivedAt)
}

// ReResolveOrphans retries link resolution for messages that previously
// classified and extracted but found no shipment. New shipments and
// back-filled identifiers make orphans linkable over time.
func (s *DocEngineService) ReResolveOrphans(ctx context.Context, msgs []Message) (int, error) {
	linked := 0
	for i := range msgs {
		msg := &msgs[i]
		cl, err := s.classifications.GetClassification(ctx, msg.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return linked, fmt.Errorf("get classification for %s: %w", msg.ID, err)
		}
		entities, err := s.classifications.GetEntities(ctx, msg.ID)
		if err != nil {
			return linked, fmt.Errorf("get entities for %s: %w", msg.ID, err)
		}
		res, err := s.resolver.Resolve(ctx, msg, cl, entities)
		if err != nil {
			return linked, fmt.Errorf("re-resolve %s: %w", msg.ID, err)
		}
		if !res.Linked {
			continue
		}
		linked++
		if _, _, err := s.stateMachine.Advance(ctx, res.ShipmentID); err != nil {
			return linked, fmt.Errorf("advance after re-resolve %s: %w", msg.ID, err)
		}
	}
	if linked > 0 {
		s.logger.Info("Re-resolved orphan messages", zap.Int("linked", linked))
	}
	return linked, nil
}
