package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mikey/freight-doc-engine/internal/core"
	"go.uber.org/zap"
)

// PostgresStore implements every store interface on a pgx pool. Uniqueness
// constraints on booking number and (shipment, message) make re-runs
// idempotent at the database layer rather than in application code.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a Postgres-backed store and ensures the schema
// exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id               TEXT PRIMARY KEY,
			subject          TEXT NOT NULL DEFAULT '',
			sender           TEXT NOT NULL DEFAULT '',
			true_sender      TEXT NOT NULL DEFAULT '',
			body             TEXT NOT NULL DEFAULT '',
			attachment_names TEXT NOT NULL DEFAULT '',
			attachment_texts TEXT NOT NULL DEFAULT '',
			received_at      TIMESTAMPTZ NOT NULL,
			thread_id        TEXT NOT NULL DEFAULT '',
			is_reply         BOOLEAN NOT NULL DEFAULT FALSE,
			status           TEXT NOT NULL DEFAULT 'pending',
			status_reason    TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_messages_status ON messages(status, received_at);

		CREATE TABLE IF NOT EXISTS classifications (
			message_id    TEXT PRIMARY KEY REFERENCES messages(id),
			doc_type      TEXT NOT NULL,
			direction     TEXT NOT NULL,
			confidence    INT NOT NULL,
			source        TEXT NOT NULL,
			reasoning     TEXT NOT NULL DEFAULT '',
			manual_review BOOLEAN NOT NULL DEFAULT FALSE,
			classified_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS entities (
			message_id TEXT NOT NULL REFERENCES messages(id),
			seq        INT NOT NULL,
			type       TEXT NOT NULL,
			value      TEXT NOT NULL,
			confidence INT NOT NULL,
			source     TEXT NOT NULL,
			PRIMARY KEY (message_id, seq)
		);

		CREATE TABLE IF NOT EXISTS shipments (
			id                   TEXT PRIMARY KEY,
			booking_number       TEXT NOT NULL UNIQUE,
			bl_number            TEXT NOT NULL DEFAULT '',
			mbl_number           TEXT NOT NULL DEFAULT '',
			container_number     TEXT NOT NULL DEFAULT '',
			secondary_containers TEXT NOT NULL DEFAULT '',
			carrier              TEXT NOT NULL DEFAULT '',
			vessel               TEXT NOT NULL DEFAULT '',
			voyage               TEXT NOT NULL DEFAULT '',
			port_of_loading      TEXT NOT NULL DEFAULT '',
			port_of_discharge    TEXT NOT NULL DEFAULT '',
			etd                  TIMESTAMPTZ,
			eta                  TIMESTAMPTZ,
			si_cutoff            TIMESTAMPTZ,
			vgm_cutoff           TIMESTAMPTZ,
			cargo_cutoff         TIMESTAMPTZ,
			gate_cutoff          TIMESTAMPTZ,
			workflow_state       TEXT NOT NULL DEFAULT 'none',
			state_rank           INT NOT NULL DEFAULT 0,
			state_updated_at     TIMESTAMPTZ,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_shipments_bl ON shipments(bl_number);
		CREATE INDEX IF NOT EXISTS idx_shipments_mbl ON shipments(mbl_number);
		CREATE INDEX IF NOT EXISTS idx_shipments_container ON shipments(container_number);

		CREATE TABLE IF NOT EXISTS shipment_documents (
			shipment_id TEXT NOT NULL REFERENCES shipments(id),
			message_id  TEXT NOT NULL REFERENCES messages(id),
			doc_type    TEXT NOT NULL,
			direction   TEXT NOT NULL,
			method      TEXT NOT NULL,
			confidence  INT NOT NULL,
			linked_at   TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (shipment_id, message_id)
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_shipdocs_message ON shipment_documents(message_id);

		CREATE TABLE IF NOT EXISTS action_rules (
			doc_type      TEXT NOT NULL,
			from_party    TEXT NOT NULL,
			is_reply      BOOLEAN NOT NULL DEFAULT FALSE,
			has_action    BOOLEAN NOT NULL,
			action_verb   TEXT NOT NULL DEFAULT '',
			owner         TEXT NOT NULL DEFAULT '',
			base_priority INT NOT NULL DEFAULT 0,
			deadline_hrs  INT NOT NULL DEFAULT 0,
			flip_keywords TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (doc_type, from_party, is_reply)
		);
	`)
	return err
}

const listSeparator = "\x1f"

func joinList(values []string) string {
	return strings.Join(values, listSeparator)
}

func splitList(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, listSeparator)
}

// InsertMessage stores a message as pending; duplicates are ignored.
func (s *PostgresStore) InsertMessage(ctx context.Context, msg *core.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages
			(id, subject, sender, true_sender, body, attachment_names, attachment_texts,
			 received_at, thread_id, is_reply, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'pending')
		ON CONFLICT (id) DO NOTHING
	`, msg.ID, msg.Subject, msg.Sender, msg.TrueSender, msg.Body,
		joinList(msg.AttachmentNames), joinList(msg.AttachmentTexts),
		msg.ReceivedAt, msg.ThreadID, msg.IsReply)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*core.Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, subject, sender, true_sender, body, attachment_names,
		       attachment_texts, received_at, thread_id, is_reply
		FROM messages WHERE id = $1
	`, id)
	return scanMessage(row)
}

func scanMessage(row pgx.Row) (*core.Message, error) {
	var msg core.Message
	var names, texts string
	err := row.Scan(&msg.ID, &msg.Subject, &msg.Sender, &msg.TrueSender, &msg.Body,
		&names, &texts, &msg.ReceivedAt, &msg.ThreadID, &msg.IsReply)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	msg.AttachmentNames = splitList(names)
	msg.AttachmentTexts = splitList(texts)
	return &msg, nil
}

// PendingMessages returns a page of pending messages, oldest first.
func (s *PostgresStore) PendingMessages(ctx context.Context, limit int) ([]core.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, subject, sender, true_sender, body, attachment_names,
		       attachment_texts, received_at, thread_id, is_reply
		FROM messages
		WHERE status = 'pending'
		ORDER BY received_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending messages: %w", err)
	}
	defer rows.Close()

	var page []core.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		page = append(page, *msg)
	}
	return page, rows.Err()
}

// OrphanMessages returns processed messages with no shipment link.
func (s *PostgresStore) OrphanMessages(ctx context.Context, limit int) ([]core.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.subject, m.sender, m.true_sender, m.body, m.attachment_names,
		       m.attachment_texts, m.received_at, m.thread_id, m.is_reply
		FROM messages m
		LEFT JOIN shipment_documents sd ON sd.message_id = m.id
		WHERE m.status = 'processed' AND sd.message_id IS NULL
		ORDER BY m.received_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query orphan messages: %w", err)
	}
	defer rows.Close()

	var page []core.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		page = append(page, *msg)
	}
	return page, rows.Err()
}

// SetMessageStatus records a status transition.
func (s *PostgresStore) SetMessageStatus(ctx context.Context, id string, status core.MessageStatus, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET status = $2, status_reason = $3 WHERE id = $1
	`, id, string(status), reason)
	if err != nil {
		return fmt.Errorf("set message status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// RequeueInFlight returns messages stuck in processing to pending.
func (s *PostgresStore) RequeueInFlight(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET status = $1, status_reason = '' WHERE status = $2
	`, string(core.StatusPending), string(core.StatusProcessing))
	if err != nil {
		return 0, fmt.Errorf("requeue in-flight messages: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// GetClassification retrieves the canonical classification for a message.
func (s *PostgresStore) GetClassification(ctx context.Context, messageID string) (*core.Classification, error) {
	var cl core.Classification
	var docType, direction, source string
	err := s.pool.QueryRow(ctx, `
		SELECT message_id, doc_type, direction, confidence, source, reasoning,
		       manual_review, classified_at
		FROM classifications WHERE message_id = $1
	`, messageID).Scan(&cl.MessageID, &docType, &direction, &cl.Confidence,
		&source, &cl.Reasoning, &cl.ManualReview, &cl.ClassifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query classification: %w", err)
	}
	cl.DocType = core.DocumentType(docType)
	cl.Direction = core.Direction(direction)
	cl.Source = core.ClassificationSource(source)
	return &cl, nil
}

// SaveClassification upserts a classification. The WHERE guard on the
// conflict update leaves manual-review rows untouched; when that happens
// the overall write reports ErrManualReview.
func (s *PostgresStore) SaveClassification(ctx context.Context, cl *core.Classification) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO classifications
			(message_id, doc_type, direction, confidence, source, reasoning, manual_review, classified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (message_id) DO UPDATE SET
			doc_type      = EXCLUDED.doc_type,
			direction     = EXCLUDED.direction,
			confidence    = EXCLUDED.confidence,
			source        = EXCLUDED.source,
			reasoning     = EXCLUDED.reasoning,
			classified_at = EXCLUDED.classified_at
		WHERE classifications.manual_review = FALSE
	`, cl.MessageID, string(cl.DocType), string(cl.Direction), cl.Confidence,
		string(cl.Source), cl.Reasoning, cl.ManualReview, cl.ClassifiedAt)
	if err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrManualReview
	}
	return nil
}

// SaveEntities replaces the extracted entities for a message.
func (s *PostgresStore) SaveEntities(ctx context.Context, messageID string, entities []core.Entity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM entities WHERE message_id = $1`, messageID); err != nil {
		return fmt.Errorf("clear entities: %w", err)
	}
	for i, e := range entities {
		if _, err := tx.Exec(ctx, `
			INSERT INTO entities (message_id, seq, type, value, confidence, source)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, messageID, i, string(e.Type), e.Value, e.Confidence, string(e.Source)); err != nil {
			return fmt.Errorf("insert entity: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// GetEntities returns the extracted entities for a message in document order.
func (s *PostgresStore) GetEntities(ctx context.Context, messageID string) ([]core.Entity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT type, value, confidence, source
		FROM entities WHERE message_id = $1 ORDER BY seq ASC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	var out []core.Entity
	for rows.Next() {
		var e core.Entity
		var entityType, source string
		if err := rows.Scan(&entityType, &e.Value, &e.Confidence, &source); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e.MessageID = messageID
		e.Type = core.EntityType(entityType)
		e.Source = core.EntitySource(source)
		out = append(out, e)
	}
	return out, rows.Err()
}

const shipmentColumns = `
	id, booking_number, bl_number, mbl_number, container_number,
	secondary_containers, carrier, vessel, voyage, port_of_loading,
	port_of_discharge, etd, eta, si_cutoff, vgm_cutoff, cargo_cutoff,
	gate_cutoff, workflow_state, state_updated_at, created_at, updated_at`

func scanShipment(row pgx.Row) (*core.Shipment, error) {
	var sh core.Shipment
	var secondaries, state string
	var stateUpdatedAt *time.Time
	err := row.Scan(&sh.ID, &sh.BookingNumber, &sh.BLNumber, &sh.MBLNumber,
		&sh.ContainerNumber, &secondaries, &sh.Carrier, &sh.Vessel, &sh.Voyage,
		&sh.PortOfLoading, &sh.PortOfDischarge, &sh.ETD, &sh.ETA, &sh.SICutoff,
		&sh.VGMCutoff, &sh.CargoCutoff, &sh.GateCutoff, &state, &stateUpdatedAt,
		&sh.CreatedAt, &sh.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan shipment: %w", err)
	}
	sh.SecondaryContainers = splitList(secondaries)
	sh.State = core.ParseWorkflowState(state)
	if stateUpdatedAt != nil {
		sh.StateUpdatedAt = *stateUpdatedAt
	}
	return &sh, nil
}

// GetShipment retrieves a shipment by ID.
func (s *PostgresStore) GetShipment(ctx context.Context, id string) (*core.Shipment, error) {
	return scanShipment(s.pool.QueryRow(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE id = $1`, id))
}

// GetShipmentByBooking looks up a shipment by booking number.
func (s *PostgresStore) GetShipmentByBooking(ctx context.Context, bookingNumber string) (*core.Shipment, error) {
	return scanShipment(s.pool.QueryRow(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE booking_number = $1`, bookingNumber))
}

// GetShipmentByBL matches either the BL or MBL number.
func (s *PostgresStore) GetShipmentByBL(ctx context.Context, blNumber string) (*core.Shipment, error) {
	if blNumber == "" {
		return nil, core.ErrNotFound
	}
	return scanShipment(s.pool.QueryRow(ctx,
		`SELECT `+shipmentColumns+` FROM shipments WHERE bl_number = $1 OR mbl_number = $1`, blNumber))
}

// GetShipmentByContainer matches the primary or any secondary container.
func (s *PostgresStore) GetShipmentByContainer(ctx context.Context, containerNumber string) (*core.Shipment, error) {
	if containerNumber == "" {
		return nil, core.ErrNotFound
	}
	return scanShipment(s.pool.QueryRow(ctx, `
		SELECT `+shipmentColumns+` FROM shipments
		WHERE container_number = $1
		   OR secondary_containers LIKE '%' || $1 || '%'
	`, containerNumber))
}

// CreateShipment inserts a shipment. The booking number uniqueness
// constraint converts concurrent duplicate creation into
// ErrDuplicateBooking, which callers recover from by fetching and linking.
func (s *PostgresStore) CreateShipment(ctx context.Context, sh *core.Shipment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO shipments
			(id, booking_number, bl_number, mbl_number, container_number,
			 secondary_containers, carrier, vessel, voyage, port_of_loading,
			 port_of_discharge, etd, eta, si_cutoff, vgm_cutoff, cargo_cutoff,
			 gate_cutoff, workflow_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`, sh.ID, sh.BookingNumber, sh.BLNumber, sh.MBLNumber, sh.ContainerNumber,
		joinList(sh.SecondaryContainers), sh.Carrier, sh.Vessel, sh.Voyage,
		sh.PortOfLoading, sh.PortOfDischarge, sh.ETD, sh.ETA, sh.SICutoff,
		sh.VGMCutoff, sh.CargoCutoff, sh.GateCutoff, sh.State.String(),
		sh.CreatedAt, sh.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return core.ErrDuplicateBooking
		}
		return fmt.Errorf("create shipment: %w", err)
	}
	return nil
}

// UpdateShipment replaces a shipment's identifying and schedule fields.
// Workflow state is excluded; it only moves through UpdateShipmentState.
func (s *PostgresStore) UpdateShipment(ctx context.Context, sh *core.Shipment) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE shipments SET
			bl_number = $2, mbl_number = $3, container_number = $4,
			secondary_containers = $5, carrier = $6, vessel = $7, voyage = $8,
			port_of_loading = $9, port_of_discharge = $10, etd = $11, eta = $12,
			si_cutoff = $13, vgm_cutoff = $14, cargo_cutoff = $15,
			gate_cutoff = $16, updated_at = NOW()
		WHERE id = $1
	`, sh.ID, sh.BLNumber, sh.MBLNumber, sh.ContainerNumber,
		joinList(sh.SecondaryContainers), sh.Carrier, sh.Vessel, sh.Voyage,
		sh.PortOfLoading, sh.PortOfDischarge, sh.ETD, sh.ETA,
		sh.SICutoff, sh.VGMCutoff, sh.CargoCutoff, sh.GateCutoff)
	if err != nil {
		return fmt.Errorf("update shipment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// UpdateShipmentState persists a state advancement. The rank guard in the
// WHERE clause makes the write a compare-and-swap: concurrent re-runs can
// never regress a shipment, and cancelled stays sticky.
func (s *PostgresStore) UpdateShipmentState(ctx context.Context, id string, state core.WorkflowState, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE shipments
		SET workflow_state = $2, state_rank = $3, state_updated_at = $4, updated_at = NOW()
		WHERE id = $1 AND workflow_state != 'cancelled' AND state_rank < $3
	`, id, state.String(), int(state), at)
	if err != nil {
		return fmt.Errorf("update shipment state: %w", err)
	}
	return nil
}

// GetLinkByMessage retrieves the link for a message, if any.
func (s *PostgresStore) GetLinkByMessage(ctx context.Context, messageID string) (*core.ShipmentDocument, error) {
	var l core.ShipmentDocument
	var docType, direction, method string
	err := s.pool.QueryRow(ctx, `
		SELECT shipment_id, message_id, doc_type, direction, method, confidence, linked_at
		FROM shipment_documents WHERE message_id = $1
	`, messageID).Scan(&l.ShipmentID, &l.MessageID, &docType, &direction, &method,
		&l.Confidence, &l.LinkedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query link: %w", err)
	}
	l.DocType = core.DocumentType(docType)
	l.Direction = core.Direction(direction)
	l.Method = core.LinkMethod(method)
	return &l, nil
}

// GetLinksByShipment returns all links for a shipment.
func (s *PostgresStore) GetLinksByShipment(ctx context.Context, shipmentID string) ([]core.ShipmentDocument, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT shipment_id, message_id, doc_type, direction, method, confidence, linked_at
		FROM shipment_documents WHERE shipment_id = $1 ORDER BY linked_at ASC
	`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var out []core.ShipmentDocument
	for rows.Next() {
		var l core.ShipmentDocument
		var docType, direction, method string
		if err := rows.Scan(&l.ShipmentID, &l.MessageID, &docType, &direction,
			&method, &l.Confidence, &l.LinkedAt); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		l.DocType = core.DocumentType(docType)
		l.Direction = core.Direction(direction)
		l.Method = core.LinkMethod(method)
		out = append(out, l)
	}
	return out, rows.Err()
}

// AddLink upserts a link; the (shipment, message) primary key makes
// re-adding a no-op.
func (s *PostgresStore) AddLink(ctx context.Context, link *core.ShipmentDocument) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO shipment_documents
			(shipment_id, message_id, doc_type, direction, method, confidence, linked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (shipment_id, message_id) DO NOTHING
	`, link.ShipmentID, link.MessageID, string(link.DocType), string(link.Direction),
		string(link.Method), link.Confidence, link.LinkedAt)
	if err != nil {
		return fmt.Errorf("add link: %w", err)
	}
	return nil
}

// LoadActionRules loads the store-backed action rule set.
func (s *PostgresStore) LoadActionRules(ctx context.Context) ([]core.ActionRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doc_type, from_party, is_reply, has_action, action_verb,
		       owner, base_priority, deadline_hrs, flip_keywords
		FROM action_rules
	`)
	if err != nil {
		return nil, fmt.Errorf("query action rules: %w", err)
	}
	defer rows.Close()

	var out []core.ActionRule
	for rows.Next() {
		var r core.ActionRule
		var docType, party, keywords string
		if err := rows.Scan(&docType, &party, &r.IsReply, &r.HasAction,
			&r.ActionVerb, &r.Owner, &r.BasePriority, &r.DeadlineHrs, &keywords); err != nil {
			return nil, fmt.Errorf("scan action rule: %w", err)
		}
		r.DocType = core.DocumentType(docType)
		r.FromParty = core.Party(party)
		r.FlipKeywords = splitList(keywords)
		out = append(out, r)
	}
	return out, rows.Err()
}
