package ingest

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/mikey/freight-doc-engine/internal/core"
	"go.uber.org/zap"
)

// Deduper suppresses redelivered messages before they reach the store.
type Deduper interface {
	Seen(ctx context.Context, messageID string) (bool, error)
}

// SMTPSource accepts copies of freight correspondence over SMTP and
// queues them as pending messages. A mail gateway BCCs or relays the
// operations mailbox here; classification happens asynchronously.
type SMTPSource struct {
	store      core.MessageStore
	deduper    Deduper
	logger     *zap.Logger
	listenAddr string
	server     *smtp.Server
}

// NewSMTPSource creates a new SMTP ingestion source
func NewSMTPSource(
	store core.MessageStore,
	deduper Deduper,
	listenAddr string,
	logger *zap.Logger,
) *SMTPSource {
	return &SMTPSource{
		store:      store,
		deduper:    deduper,
		listenAddr: listenAddr,
		logger:     logger,
	}
}

// Start starts the SMTP listener
func (s *SMTPSource) Start() error {
	s.server = smtp.NewServer(&smtpBackend{source: s})

	s.server.Addr = s.listenAddr
	s.server.Domain = "localhost"
	s.server.ReadTimeout = 30 * time.Second
	s.server.WriteTimeout = 30 * time.Second
	s.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	s.server.MaxRecipients = 50
	s.server.AllowInsecureAuth = true

	s.logger.Info("SMTP ingestion source starting", zap.String("address", s.listenAddr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				s.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP listener
func (s *SMTPSource) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	source *SMTPSource
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		source:     b.source,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	source     *SMTPSource
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed for ingestion)
func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data receives the message content and queues it as pending
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.source.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		s.source.logger.Error("Failed to parse email message", zap.Error(err))
		return err
	}

	parts, err := extractMessageParts(msg)
	if err != nil {
		s.source.logger.Error("Failed to extract message content", zap.Error(err))
		return err
	}

	message := buildMessage(msg, parts, s.sender)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.source.deduper != nil {
		seen, err := s.source.deduper.Seen(ctx, message.ID)
		if err != nil {
			// The store's own insert is idempotent, so a dedup outage
			// degrades to extra work rather than lost mail.
			s.source.logger.Warn("Dedup check failed, accepting message anyway",
				zap.String("message_id", message.ID), zap.Error(err))
		} else if seen {
			return nil
		}
	}

	if err := s.source.store.InsertMessage(ctx, message); err != nil {
		s.source.logger.Error("Failed to queue message",
			zap.String("message_id", message.ID), zap.Error(err))
		return err
	}

	s.source.logger.Info("Message queued for classification",
		zap.String("message_id", message.ID),
		zap.String("sender", message.EffectiveSender()),
		zap.Int("attachments", len(message.AttachmentNames)))

	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}

// buildMessage converts a parsed email into the pipeline's message form.
func buildMessage(msg *mail.Message, parts *messageParts, envelopeSender string) *core.Message {
	id := strings.Trim(msg.Header.Get("Message-Id"), "<> ")
	if id == "" {
		id = uuid.NewString()
	}

	sender := envelopeSender
	if addr, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		sender = addr.Address
	}

	// Reply-To set by a relay or distribution list points at the actual
	// correspondent.
	trueSender := ""
	if addr, err := mail.ParseAddress(msg.Header.Get("Reply-To")); err == nil && addr.Address != sender {
		trueSender = addr.Address
	}

	subject := msg.Header.Get("Subject")
	if decoded, err := new(mime.WordDecoder).DecodeHeader(subject); err == nil {
		subject = decoded
	}

	inReplyTo := strings.Trim(msg.Header.Get("In-Reply-To"), "<> ")
	threadID := inReplyTo
	if threadID == "" {
		if refs := strings.Fields(msg.Header.Get("References")); len(refs) > 0 {
			threadID = strings.Trim(refs[0], "<>")
		}
	}
	if threadID == "" {
		threadID = id
	}

	lowerSubject := strings.ToLower(subject)
	isReply := inReplyTo != "" ||
		strings.HasPrefix(lowerSubject, "re:") ||
		strings.HasPrefix(lowerSubject, "re :")

	receivedAt := time.Now()
	if date, err := msg.Header.Date(); err == nil {
		receivedAt = date
	}

	return &core.Message{
		ID:              id,
		Subject:         subject,
		Sender:          sender,
		TrueSender:      trueSender,
		Body:            parts.body,
		AttachmentNames: parts.attachmentNames,
		AttachmentTexts: parts.attachmentTexts,
		ReceivedAt:      receivedAt,
		ThreadID:        threadID,
		IsReply:         isReply,
	}
}
