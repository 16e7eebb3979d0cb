package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/freight-doc-engine/internal/core"
	"go.uber.org/zap"
)

// SQLStore implements every store interface over database/sql, supporting
// the sqlite3 and mysql drivers. Writes that need uniqueness guarantees
// use portable update-then-insert sequences rather than dialect-specific
// upsert syntax.
type SQLStore struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

// NewSQLStore opens (or connects to) the database and ensures the schema
// exists. Driver must be "sqlite3" or "mysql".
func NewSQLStore(driver, dsn string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s database: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver, logger: logger}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) ensureSchema() error {
	text, timestamp := "TEXT", "TIMESTAMP"
	if s.driver == "mysql" {
		// Keyed columns need bounded types under MySQL.
		text = "VARCHAR(64)"
		timestamp = "TIMESTAMP NULL"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS messages (
			id %s PRIMARY KEY,
			subject TEXT,
			sender TEXT,
			true_sender TEXT,
			body TEXT,
			attachment_names TEXT,
			attachment_texts TEXT,
			received_at %s,
			thread_id TEXT,
			is_reply BOOLEAN,
			status VARCHAR(16),
			status_reason TEXT
		)`, text, timestamp),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS classifications (
			message_id %s PRIMARY KEY,
			doc_type TEXT,
			direction TEXT,
			confidence INTEGER,
			source TEXT,
			reasoning TEXT,
			manual_review BOOLEAN,
			classified_at %s
		)`, text, timestamp),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS entities (
			message_id %s,
			seq INTEGER,
			type TEXT,
			value TEXT,
			confidence INTEGER,
			source TEXT,
			PRIMARY KEY (message_id, seq)
		)`, text),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS shipments (
			id %s PRIMARY KEY,
			booking_number %s UNIQUE,
			bl_number TEXT,
			mbl_number TEXT,
			container_number TEXT,
			secondary_containers TEXT,
			carrier TEXT,
			vessel TEXT,
			voyage TEXT,
			port_of_loading TEXT,
			port_of_discharge TEXT,
			etd %s, eta %s, si_cutoff %s, vgm_cutoff %s, cargo_cutoff %s, gate_cutoff %s,
			workflow_state VARCHAR(32),
			state_rank INTEGER,
			state_updated_at %s,
			created_at %s,
			updated_at %s
		)`, text, text, timestamp, timestamp, timestamp, timestamp, timestamp, timestamp, timestamp, timestamp, timestamp),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS shipment_documents (
			shipment_id %s,
			message_id %s,
			doc_type TEXT,
			direction TEXT,
			method TEXT,
			confidence INTEGER,
			linked_at %s,
			PRIMARY KEY (shipment_id, message_id)
		)`, text, text, timestamp),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS action_rules (
			doc_type %s,
			from_party %s,
			is_reply BOOLEAN,
			has_action BOOLEAN,
			action_verb TEXT,
			owner TEXT,
			base_priority INTEGER,
			deadline_hrs INTEGER,
			flip_keywords TEXT,
			PRIMARY KEY (doc_type, from_party, is_reply)
		)`, text, text),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertMessage stores a message as pending; duplicates are ignored.
func (s *SQLStore) InsertMessage(ctx context.Context, msg *core.Message) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM messages WHERE id = ?`, msg.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check message: %w", err)
	}
	if exists > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages
			(id, subject, sender, true_sender, body, attachment_names, attachment_texts,
			 received_at, thread_id, is_reply, status, status_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', '')
	`, msg.ID, msg.Subject, msg.Sender, msg.TrueSender, msg.Body,
		joinList(msg.AttachmentNames), joinList(msg.AttachmentTexts),
		msg.ReceivedAt, msg.ThreadID, msg.IsReply)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *SQLStore) GetMessage(ctx context.Context, id string) (*core.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subject, sender, true_sender, body, attachment_names,
		       attachment_texts, received_at, thread_id, is_reply
		FROM messages WHERE id = ?
	`, id)

	var msg core.Message
	var names, texts string
	err := row.Scan(&msg.ID, &msg.Subject, &msg.Sender, &msg.TrueSender, &msg.Body,
		&names, &texts, &msg.ReceivedAt, &msg.ThreadID, &msg.IsReply)
	if errors.Is(err, sql.ErrNoRows) {
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
func (s *SQLStore) PendingMessages(ctx context.Context, limit int) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject, sender, true_sender, body, attachment_names,
		       attachment_texts, received_at, thread_id, is_reply
		FROM messages WHERE status = 'pending'
		ORDER BY received_at ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending messages: %w", err)
	}
	defer rows.Close()

	var page []core.Message
	for rows.Next() {
		var msg core.Message
		var names, texts string
		if err := rows.Scan(&msg.ID, &msg.Subject, &msg.Sender, &msg.TrueSender,
			&msg.Body, &names, &texts, &msg.ReceivedAt, &msg.ThreadID, &msg.IsReply); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.AttachmentNames = splitList(names)
		msg.AttachmentTexts = splitList(texts)
		page = append(page, msg)
	}
	return page, rows.Err()
}

// OrphanMessages returns processed messages with no shipment link.
func (s *SQLStore) OrphanMessages(ctx context.Context, limit int) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.subject, m.sender, m.true_sender, m.body, m.attachment_names,
		       m.attachment_texts, m.received_at, m.thread_id, m.is_reply
		FROM messages m
		LEFT JOIN shipment_documents sd ON sd.message_id = m.id
		WHERE m.status = 'processed' AND sd.message_id IS NULL
		ORDER BY m.received_at ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query orphan messages: %w", err)
	}
	defer rows.Close()

	var page []core.Message
	for rows.Next() {
		var msg core.Message
		var names, texts string
		if err := rows.Scan(&msg.ID, &msg.Subject, &msg.Sender, &msg.TrueSender,
			&msg.Body, &names, &texts, &msg.ReceivedAt, &msg.ThreadID, &msg.IsReply); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.AttachmentNames = splitList(names)
		msg.AttachmentTexts = splitList(texts)
		page = append(page, msg)
	}
	return page, rows.Err()
}

// SetMessageStatus records a status transition.
func (s *SQLStore) SetMessageStatus(ctx context.Context, id string, status core.MessageStatus, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET status = ?, status_reason = ? WHERE id = ?
	`, string(status), reason, id)
	if err != nil {
		return fmt.Errorf("set message status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// RequeueInFlight returns messages stuck in processing to pending.
func (s *SQLStore) RequeueInFlight(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET status = ?, status_reason = '' WHERE status = ?
	`, string(core.StatusPending), string(core.StatusProcessing))
	if err != nil {
		return 0, fmt.Errorf("requeue in-flight messages: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// GetClassification retrieves the canonical classification for a message.
func (s *SQLStore) GetClassification(ctx context.Context, messageID string) (*core.Classification, error) {
	var cl core.Classification
	var docType, direction, source string
	err := s.db.QueryRowContext(ctx, `
		SELECT message_id, doc_type, direction, confidence, source, reasoning,
		       manual_review, classified_at
		FROM classifications WHERE message_id = ?
	`, messageID).Scan(&cl.MessageID, &docType, &direction, &cl.Confidence,
		&source, &cl.Reasoning, &cl.ManualReview, &cl.ClassifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
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

// SaveClassification upserts a classification without touching
// manual-review rows: update-where-not-manual first, insert if absent.
func (s *SQLStore) SaveClassification(ctx context.Context, cl *core.Classification) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE classifications SET
			doc_type = ?, direction = ?, confidence = ?, source = ?,
			reasoning = ?, classified_at = ?
		WHERE message_id = ? AND manual_review = ?
	`, string(cl.DocType), string(cl.Direction), cl.Confidence, string(cl.Source),
		cl.Reasoning, cl.ClassifiedAt, cl.MessageID, false)
	if err != nil {
		return fmt.Errorf("update classification: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM classifications WHERE message_id = ?`, cl.MessageID).Scan(&exists); err != nil {
		return fmt.Errorf("check classification: %w", err)
	}
	if exists > 0 {
		return core.ErrManualReview
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO classifications
			(message_id, doc_type, direction, confidence, source, reasoning, manual_review, classified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, cl.MessageID, string(cl.DocType), string(cl.Direction), cl.Confidence,
		string(cl.Source), cl.Reasoning, cl.ManualReview, cl.ClassifiedAt)
	if err != nil {
		return fmt.Errorf("insert classification: %w", err)
	}
	return nil
}

// SaveEntities replaces the extracted entities for a message.
func (s *SQLStore) SaveEntities(ctx context.Context, messageID string, entities []core.Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE message_id = ?`, messageID); err != nil {
		return fmt.Errorf("clear entities: %w", err)
	}
	for i, e := range entities {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entities (message_id, seq, type, value, confidence, source)
			VALUES (?, ?, ?, ?, ?, ?)
		`, messageID, i, string(e.Type), e.Value, e.Confidence, string(e.Source)); err != nil {
			return fmt.Errorf("insert entity: %w", err)
		}
	}
	return tx.Commit()
}

// GetEntities returns extracted entities in document order.
func (s *SQLStore) GetEntities(ctx context.Context, messageID string) ([]core.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, value, confidence, source
		FROM entities WHERE message_id = ? ORDER BY seq ASC
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

const sqlShipmentColumns = `
	id, booking_number, bl_number, mbl_number, container_number,
	secondary_containers, carrier, vessel, voyage, port_of_loading,
	port_of_discharge, etd, eta, si_cutoff, vgm_cutoff, cargo_cutoff,
	gate_cutoff, workflow_state, state_updated_at, created_at, updated_at`

func (s *SQLStore) scanShipmentRow(row *sql.Row) (*core.Shipment, error) {
	var sh core.Shipment
	var secondaries, state string
	var stateUpdatedAt sql.NullTime
	err := row.Scan(&sh.ID, &sh.BookingNumber, &sh.BLNumber, &sh.MBLNumber,
		&sh.ContainerNumber, &secondaries, &sh.Carrier, &sh.Vessel, &sh.Voyage,
		&sh.PortOfLoading, &sh.PortOfDischarge, &sh.ETD, &sh.ETA, &sh.SICutoff,
		&sh.VGMCutoff, &sh.CargoCutoff, &sh.GateCutoff, &state, &stateUpdatedAt,
		&sh.CreatedAt, &sh.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan shipment: %w", err)
	}
	sh.SecondaryContainers = splitList(secondaries)
	sh.State = core.ParseWorkflowState(state)
	if stateUpdatedAt.Valid {
		sh.StateUpdatedAt = stateUpdatedAt.Time
	}
	return &sh, nil
}

// GetShipment retrieves a shipment by ID.
func (s *SQLStore) GetShipment(ctx context.Context, id string) (*core.Shipment, error) {
	return s.scanShipmentRow(s.db.QueryRowContext(ctx,
		`SELECT `+sqlShipmentColumns+` FROM shipments WHERE id = ?`, id))
}

// GetShipmentByBooking looks up a shipment by booking number.
func (s *SQLStore) GetShipmentByBooking(ctx context.Context, bookingNumber string) (*core.Shipment, error) {
	return s.scanShipmentRow(s.db.QueryRowContext(ctx,
		`SELECT `+sqlShipmentColumns+` FROM shipments WHERE booking_number = ?`, bookingNumber))
}

// GetShipmentByBL matches either the BL or MBL number.
func (s *SQLStore) GetShipmentByBL(ctx context.Context, blNumber string) (*core.Shipment, error) {
	if blNumber == "" {
		return nil, core.ErrNotFound
	}
	return s.scanShipmentRow(s.db.QueryRowContext(ctx,
		`SELECT `+sqlShipmentColumns+` FROM shipments WHERE bl_number = ? OR mbl_number = ?`,
		blNumber, blNumber))
}

// GetShipmentByContainer matches the primary or any secondary container.
func (s *SQLStore) GetShipmentByContainer(ctx context.Context, containerNumber string) (*core.Shipment, error) {
	if containerNumber == "" {
		return nil, core.ErrNotFound
	}
	return s.scanShipmentRow(s.db.QueryRowContext(ctx, `
		SELECT `+sqlShipmentColumns+` FROM shipments
		WHERE container_number = ? OR secondary_containers LIKE ?
	`, containerNumber, "%"+containerNumber+"%"))
}

// CreateShipment inserts a shipment. A duplicate booking number surfaces
// as ErrDuplicateBooking via the unique constraint.
func (s *SQLStore) CreateShipment(ctx context.Context, sh *core.Shipment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shipments
			(id, booking_number, bl_number, mbl_number, container_number,
			 secondary_containers, carrier, vessel, voyage, port_of_loading,
			 port_of_discharge, etd, eta, si_cutoff, vgm_cutoff, cargo_cutoff,
			 gate_cutoff, workflow_state, state_rank, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sh.ID, sh.BookingNumber, sh.BLNumber, sh.MBLNumber, sh.ContainerNumber,
		joinList(sh.SecondaryContainers), sh.Carrier, sh.Vessel, sh.Voyage,
		sh.PortOfLoading, sh.PortOfDischarge, sh.ETD, sh.ETA, sh.SICutoff,
		sh.VGMCutoff, sh.CargoCutoff, sh.GateCutoff, sh.State.String(),
		int(sh.State), sh.CreatedAt, sh.UpdatedAt)
	if err != nil {
		// Both drivers report the unique violation as an opaque error;
		// confirm against the index before converting it.
		if existing, gerr := s.GetShipmentByBooking(ctx, sh.BookingNumber); gerr == nil && existing != nil {
			return core.ErrDuplicateBooking
		}
		return fmt.Errorf("create shipment: %w", err)
	}
	return nil
}

// UpdateShipment replaces identifying and schedule fields; workflow state
// moves only through UpdateShipmentState.
func (s *SQLStore) UpdateShipment(ctx context.Context, sh *core.Shipment) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE shipments SET
			bl_number = ?, mbl_number = ?, container_number = ?,
			secondary_containers = ?, carrier = ?, vessel = ?, voyage = ?,
			port_of_loading = ?, port_of_discharge = ?, etd = ?, eta = ?,
			si_cutoff = ?, vgm_cutoff = ?, cargo_cutoff = ?, gate_cutoff = ?,
			updated_at = ?
		WHERE id = ?
	`, sh.BLNumber, sh.MBLNumber, sh.ContainerNumber,
		joinList(sh.SecondaryContainers), sh.Carrier, sh.Vessel, sh.Voyage,
		sh.PortOfLoading, sh.PortOfDischarge, sh.ETD, sh.ETA,
		sh.SICutoff, sh.VGMCutoff, sh.CargoCutoff, sh.GateCutoff,
		time.Now(), sh.ID)
	if err != nil {
		return fmt.Errorf("update shipment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// UpdateShipmentState persists a state advancement with a rank guard so
// the write is monotonic under concurrent re-runs.
func (s *SQLStore) UpdateShipmentState(ctx context.Context, id string, state core.WorkflowState, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE shipments
		SET workflow_state = ?, state_rank = ?, state_updated_at = ?, updated_at = ?
		WHERE id = ? AND workflow_state != 'cancelled' AND state_rank < ?
	`, state.String(), int(state), at, time.Now(), id, int(state))
	if err != nil {
		return fmt.Errorf("update shipment state: %w", err)
	}
	return nil
}

// GetLinkByMessage retrieves the link for a message, if any.
func (s *SQLStore) GetLinkByMessage(ctx context.Context, messageID string) (*core.ShipmentDocument, error) {
	var l core.ShipmentDocument
	var docType, direction, method string
	err := s.db.QueryRowContext(ctx, `
		SELECT shipment_id, message_id, doc_type, direction, method, confidence, linked_at
		FROM shipment_documents WHERE message_id = ?
	`, messageID).Scan(&l.ShipmentID, &l.MessageID, &docType, &direction, &method,
		&l.Confidence, &l.LinkedAt)
	if errors.Is(err, sql.ErrNoRows) {
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
func (s *SQLStore) GetLinksByShipment(ctx context.Context, shipmentID string) ([]core.ShipmentDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT shipment_id, message_id, doc_type, direction, method, confidence, linked_at
		FROM shipment_documents WHERE shipment_id = ? ORDER BY linked_at ASC
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

// AddLink inserts a link; re-adding an existing pair is a no-op.
func (s *SQLStore) AddLink(ctx context.Context, link *core.ShipmentDocument) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM shipment_documents WHERE shipment_id = ? AND message_id = ?
	`, link.ShipmentID, link.MessageID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check link: %w", err)
	}
	if exists > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shipment_documents
			(shipment_id, message_id, doc_type, direction, method, confidence, linked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, link.ShipmentID, link.MessageID, string(link.DocType), string(link.Direction),
		string(link.Method), link.Confidence, link.LinkedAt)
	if err != nil {
		return fmt.Errorf("add link: %w", err)
	}
	return nil
}

// LoadActionRules loads the store-backed action rule set.
func (s *SQLStore) LoadActionRules(ctx context.Context) ([]core.ActionRule, error) {
	rows, err := s.db.QueryContext(ctx, `
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
