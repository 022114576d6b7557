package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/repository"
)

const sessionColumns = `id, billing_id, table_label, server_id, server_name, status, start_time, end_time`

// SessionRepository stores occupancy sessions of the reference service.
type SessionRepository struct {
	c conn
}

// NewSessionRepository creates a SessionRepository on the connection pool.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{c: db.conn()}
}

// Sessions returns a SessionRepository bound to the transaction.
func (tx *Tx) Sessions() *SessionRepository {
	return &SessionRepository{c: tx.conn()}
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, sess *billing.Session) error {
	_, err := r.c.q.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.SessionID,
		sess.BillingID,
		sess.TableLabel,
		sess.ServerID,
		sess.ServerName,
		string(sess.Status),
		sess.StartTime.UTC(),
		utcOrNil(sess.EndTime),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get returns a session by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (*billing.Session, error) {
	row := r.c.q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// ActiveByTable returns the running session on label.
func (r *SessionRepository) ActiveByTable(ctx context.Context, label string) (*billing.Session, error) {
	row := r.c.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE table_label = ? AND status = ?`+r.c.forUpdate(),
		label, string(billing.StatusActive),
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return sess, nil
}

// Active returns every running session ordered by start time.
func (r *SessionRepository) Active(ctx context.Context) ([]billing.Session, error) {
	return r.query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE status = ? ORDER BY start_time, table_label`,
		string(billing.StatusActive),
	)
}

// List returns session history matching filter, newest first.
func (r *SessionRepository) List(ctx context.Context, filter billing.SessionFilter) ([]billing.Session, error) {
	var where []string
	var args []any
	if !filter.From.IsZero() {
		where = append(where, "start_time >= ?")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		where = append(where, "start_time < ?")
		args = append(args, filter.To.UTC())
	}
	if filter.Table != "" {
		where = append(where, "table_label = ?")
		args = append(args, filter.Table)
	}
	if filter.Server != "" {
		where = append(where, "(server_id = ? OR server_name = ?)")
		args = append(args, filter.Server, filter.Server)
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_time DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return r.query(ctx, query, args...)
}

// Close marks a session closed at end.
func (r *SessionRepository) Close(ctx context.Context, id string, end time.Time) error {
	result, err := r.c.q.ExecContext(ctx,
		`UPDATE sessions SET status = ?, end_time = ? WHERE id = ? AND status = ?`,
		string(billing.StatusClosed), end.UTC(), id, string(billing.StatusActive),
	)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return requireRow(result)
}

// Relabel moves a running session to another table.
func (r *SessionRepository) Relabel(ctx context.Context, id, label string) error {
	result, err := r.c.q.ExecContext(ctx,
		`UPDATE sessions SET table_label = ? WHERE id = ? AND status = ?`,
		label, id, string(billing.StatusActive),
	)
	if err != nil {
		return fmt.Errorf("failed to relabel session: %w", err)
	}
	return requireRow(result)
}

func (r *SessionRepository) query(ctx context.Context, query string, args ...any) ([]billing.Session, error) {
	rows, err := r.c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []billing.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}
	return sessions, nil
}

func scanSession(row rowScanner) (*billing.Session, error) {
	var sess billing.Session
	var status string
	var end sql.NullTime
	if err := row.Scan(
		&sess.SessionID,
		&sess.BillingID,
		&sess.TableLabel,
		&sess.ServerID,
		&sess.ServerName,
		&status,
		&sess.StartTime,
		&end,
	); err != nil {
		return nil, err
	}
	sess.Status = billing.SessionStatus(status)
	sess.StartTime = sess.StartTime.UTC()
	if end.Valid {
		t := end.Time.UTC()
		sess.EndTime = &t
	}
	return &sess, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func utcOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
