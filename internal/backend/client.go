package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Client is the thin SDK over the hosted relational store. It exposes only
// what the chat core depends on: filtered selects, insert-one and
// update-by-id-list against the messages relation, plus simple lookups on
// the users and service_requests relations.
type Client struct {
	db *sql.DB
}

// Open connects to the hosted store and verifies the connection.
func Open(dsn string) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping backend: %w", err)
	}
	return &Client{db: db}, nil
}

// DB exposes the underlying handle for migrations.
func (c *Client) DB() *sql.DB { return c.db }

// Close closes the connection pool.
func (c *Client) Close() error { return c.db.Close() }

const messageColumns = `
	m.id, m.sender_id, m.recipient_id, m.content, COALESCE(m.kind, ''),
	COALESCE(m.service_request_id, ''), COALESCE(sr.service_type, ''),
	COALESCE(sr.status, ''), COALESCE(m.meta, ''), m.created_at, m.read_at`

// MessagesInvolving returns every message where userID is sender or
// recipient, newest first, with the service-request join applied. This is
// the aggregator's input.
func (c *Client) MessagesInvolving(ctx context.Context, userID string) ([]MessageRow, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		LEFT JOIN service_requests sr ON m.service_request_id = sr.id
		WHERE m.sender_id = $1 OR m.recipient_id = $1
		ORDER BY m.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("select messages involving %s: %w", userID, err)
	}
	return scanMessages(rows)
}

// MessagesBetween returns messages exchanged between the two participants in
// either direction, newest first, using a keyset cursor on created_at.
func (c *Client) MessagesBetween(ctx context.Context, a, b string, before time.Time, limit int) ([]MessageRow, error) {
	if limit <= 0 {
		limit = 50
	}
	if before.IsZero() {
		before = time.Now().Add(time.Minute)
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		LEFT JOIN service_requests sr ON m.service_request_id = sr.id
		WHERE ((m.sender_id = $1 AND m.recipient_id = $2)
		    OR (m.sender_id = $2 AND m.recipient_id = $1))
		  AND m.created_at < $3
		ORDER BY m.created_at DESC
		LIMIT $4`, a, b, before, limit)
	if err != nil {
		return nil, fmt.Errorf("select messages between %s and %s: %w", a, b, err)
	}
	return scanMessages(rows)
}

// InsertMessage inserts one row and returns it with the server-assigned id
// and timestamp filled in.
func (c *Client) InsertMessage(ctx context.Context, row MessageRow) (MessageRow, error) {
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO messages (sender_id, recipient_id, content, kind, service_request_id, meta, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NOW())
		RETURNING id, created_at`,
		row.SenderID, row.RecipientID, row.Content, row.Kind, row.ServiceRequestID, row.Meta).
		Scan(&row.ID, &row.CreatedAt)
	if err != nil {
		return MessageRow{}, fmt.Errorf("insert message: %w", err)
	}
	return row, nil
}

// MarkMessagesRead sets read_at for the given ids. Rows already marked keep
// their original read_at.
func (c *Client) MarkMessagesRead(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.db.ExecContext(ctx, `
		UPDATE messages SET read_at = $2
		WHERE id = ANY($1) AND read_at IS NULL`, pq.Array(ids), at)
	if err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}
	return nil
}

// UserByID returns a user row, or nil when the user does not exist.
func (c *Client) UserByID(ctx context.Context, id string) (*UserRow, error) {
	var u UserRow
	err := c.db.QueryRowContext(ctx, `
		SELECT id, display_name, COALESCE(avatar_url, '')
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.DisplayName, &u.AvatarURL)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user %s: %w", id, err)
	}
	return &u, nil
}

// ListUsers returns all users except excludeID, for the new-conversation
// picker.
func (c *Client) ListUsers(ctx context.Context, excludeID string) ([]UserRow, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, display_name, COALESCE(avatar_url, '')
		FROM users WHERE id <> $1
		ORDER BY display_name`, excludeID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []UserRow
	for rows.Next() {
		var u UserRow
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.AvatarURL); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ServiceRequestByID returns a service request row, or nil when missing.
func (c *Client) ServiceRequestByID(ctx context.Context, id string) (*ServiceRequestRow, error) {
	var r ServiceRequestRow
	err := c.db.QueryRowContext(ctx, `
		SELECT id, owner_id, provider_id, service_type, status,
		       COALESCE(scheduled_for, 'epoch'::timestamptz), COALESCE(price_cents, 0)
		FROM service_requests WHERE id = $1`, id).
		Scan(&r.ID, &r.OwnerID, &r.ProviderID, &r.ServiceType, &r.Status, &r.ScheduledFor, &r.PriceCents)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select service request %s: %w", id, err)
	}
	return &r, nil
}

func scanMessages(rows *sql.Rows) ([]MessageRow, error) {
	defer func() { _ = rows.Close() }()

	var msgs []MessageRow
	for rows.Next() {
		var m MessageRow
		var readAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &m.Kind,
			&m.ServiceRequestID, &m.ServiceType, &m.RequestStatus, &m.Meta,
			&m.CreatedAt, &readAt); err != nil {
			return nil, err
		}
		if readAt.Valid {
			t := readAt.Time
			m.ReadAt = &t
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
