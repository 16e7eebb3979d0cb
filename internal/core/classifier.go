package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// AcceptConfidence is the minimum confidence for automated acceptance.
	AcceptConfidence = 85
	// FallbackFloor is the minimum confidence at which a fallback result
	// is recorded at all; below it the message is classified unknown.
	FallbackFloor = 70
)

// DocumentClassifier assigns a document type and direction to a message
// using a strict priority cascade: attachment filenames, then content,
// then subject, then the external model fallback. The first confident
// match wins; later stages never override an earlier one.
type DocumentClassifier struct {
	direction *DirectionDetector
	fallback  FallbackClassifier
	logger    *zap.Logger
}

// NewDocumentClassifier creates a classifier. The fallback may be nil, in
// which case inconclusive messages classify as unknown.
func NewDocumentClassifier(direction *DirectionDetector, fallback FallbackClassifier, logger *zap.Logger) *DocumentClassifier {
	return &DocumentClassifier{
		direction: direction,
		fallback:  fallback,
		logger:    logger,
	}
}

// Classify runs the cascade over a message. It is pure apart from the
// fallback model call; callers persist the result.
func (c *DocumentClassifier) Classify(ctx context.Context, msg *Message) (*Classification, error) {
	dir := c.direction.Detect(msg.Sender, msg.TrueSender)

	// Stage 1: attachment filenames.
	for _, name := range msg.AttachmentNames {
		if rule, ok := matchRules(filenameRules, name, dir); ok {
			return c.result(msg, rule.DocType, dir, rule.Confidence, SourceAttachment,
				fmt.Sprintf("filename %q matched %s", name, rule.DocType)), nil
		}
	}

	// Stage 2: body + attachment content, lower-cased. Replies skip the
	// subject stage entirely; their subjects describe the original topic.
	content := strings.ToLower(msg.Body)
	if len(msg.AttachmentTexts) > 0 {
		content += "\n" + strings.ToLower(strings.Join(msg.AttachmentTexts, "\n"))
	}
	if rule, ok := matchRules(contentRules, content, dir); ok {
		return c.result(msg, rule.DocType, dir, rule.Confidence, SourceBody,
			fmt.Sprintf("content matched %s", rule.DocType)), nil
	}

	// Stage 3: subject conventions.
	if !msg.IsReply {
		if rule, ok := matchRules(subjectRules, msg.Subject, dir); ok {
			return c.result(msg, rule.DocType, dir, rule.Confidence, SourceSubject,
				fmt.Sprintf("subject matched %s", rule.DocType)), nil
		}
	}

	// Stage 4: external model fallback.
	return c.classifyWithFallback(ctx, msg, dir)
}

func (c *DocumentClassifier) classifyWithFallback(ctx context.Context, msg *Message, dir Direction) (*Classification, error) {
	if c.fallback == nil {
		return c.result(msg, DocUnknown, dir, 0, SourceAIFallback, "pattern cascade inconclusive, no fallback configured"), nil
	}

	resp, err := c.fallback.ClassifyDocument(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("fallback classification: %w", err)
	}

	docType := NormalizeDocType(resp.DocType)
	confidence := resp.Confidence
	if docType == DocUnknown || confidence < FallbackFloor {
		c.logger.Debug("Fallback result below floor, recording unknown",
			zap.String("message_id", msg.ID),
			zap.String("raw_type", resp.DocType),
			zap.Int("confidence", confidence))
		return c.result(msg, DocUnknown, dir, 0, SourceAIFallback, "fallback inconclusive: "+resp.Reasoning), nil
	}

	return c.result(msg, docType, dir, confidence, SourceAIFallback, resp.Reasoning), nil
}

func (c *DocumentClassifier) result(msg *Message, dt DocumentType, dir Direction, confidence int, source ClassificationSource, reasoning string) *Classification {
	c.logger.Debug("Classified message",
		zap.String("message_id", msg.ID),
		zap.String("doc_type", string(dt)),
		zap.String("direction", string(dir)),
		zap.Int("confidence", confidence),
		zap.String("source", string(source)))

	return &Classification{
		MessageID:    msg.ID,
		DocType:      dt,
		Direction:    dir,
		Confidence:   confidence,
		Source:       source,
		Reasoning:    reasoning,
		ClassifiedAt: time.Now(),
	}
}
