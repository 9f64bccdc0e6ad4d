package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store"
)

// Ensure *PostgresStore implements store.Store at compile time.
var _ store.Store = (*PostgresStore)(nil)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Connect opens a pool and pings it within timeout.
func Connect(ctx context.Context, dsn string, timeout time.Duration) (*pgxpool.Pool, error) {
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgx ping: %w", err)
	}
	return pool, nil
}

// Migrate creates the tables if they do not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SQL templates
const (
	settingsColumns = `url, name, created_at, delay_seconds, maximum_message_size,
  message_retention_period, receive_message_wait_time_seconds, visibility_timeout,
  policy, redrive_policy`

	sqlFindByName = `SELECT ` + settingsColumns + ` FROM queue_settings WHERE name = $1;`
	sqlFindByURL  = `SELECT ` + settingsColumns + ` FROM queue_settings WHERE url = $1;`
	sqlList       = `SELECT ` + settingsColumns + ` FROM queue_settings
WHERE starts_with(name, $1)
ORDER BY name;`

	sqlInsert = `INSERT INTO queue_settings (` + settingsColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

	sqlUpdate = `
UPDATE queue_settings SET
  delay_seconds                     = COALESCE($2, delay_seconds),
  maximum_message_size              = COALESCE($3, maximum_message_size),
  message_retention_period          = COALESCE($4, message_retention_period),
  receive_message_wait_time_seconds = COALESCE($5, receive_message_wait_time_seconds),
  visibility_timeout                = COALESCE($6, visibility_timeout),
  policy                            = COALESCE($7, policy),
  redrive_policy                    = COALESCE($8, redrive_policy)
WHERE url = $1;`

	sqlDropMessages = `DELETE FROM queue_messages WHERE queue_url = $1;`
	sqlDropSettings = `DELETE FROM queue_settings WHERE url = $1;`

	sqlAdd = `
INSERT INTO queue_messages (id, queue_url, body, sent_at, visible_at)
VALUES ($1, $2, $3, $4, $5);`

	// Single CTE pattern: pick -> update -> return row
	sqlLease = `
WITH picked AS (
  SELECT seq
  FROM queue_messages
  WHERE queue_url = $1
    AND NOT deleted
    AND (visible_at IS NULL OR visible_at <= $2)
  ORDER BY seq
  FOR UPDATE SKIP LOCKED
  LIMIT 1
)
UPDATE queue_messages m
SET receipt_handle   = $3,
    visible_at       = $4,
    tries            = m.tries + 1,
    first_claimed_at = COALESCE(m.first_claimed_at, $2)
FROM picked
WHERE m.seq = picked.seq
RETURNING m.id, m.body, m.sent_at, m.visible_at, m.receipt_handle, m.tries, m.first_claimed_at;`

	sqlAck = `
UPDATE queue_messages SET deleted = TRUE
WHERE queue_url = $1 AND receipt_handle = $2 AND NOT deleted;`

	sqlTouch = `
UPDATE queue_messages SET visible_at = $3
WHERE queue_url = $1 AND receipt_handle = $2 AND NOT deleted;`

	sqlClean = `
DELETE FROM queue_messages
WHERE queue_url = $1 AND (deleted OR sent_at < $2);`
)

func scanSettings(row pgx.Row) (queue.Settings, error) {
	var s queue.Settings
	err := row.Scan(
		&s.URL,
		&s.Name,
		&s.Created,
		&s.DelaySeconds,
		&s.MaximumMessageSize,
		&s.MessageRetentionPeriod,
		&s.ReceiveMessageWaitTimeSeconds,
		&s.VisibilityTimeout,
		&s.Policy,
		&s.RedrivePolicy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return queue.Settings{}, store.ErrNotFound
	}
	s.Created = s.Created.UTC()
	return s, err
}

func (p *PostgresStore) FindByName(ctx context.Context, name string) (queue.Settings, error) {
	return scanSettings(p.pool.QueryRow(ctx, sqlFindByName, name))
}

func (p *PostgresStore) FindByURL(ctx context.Context, url string) (queue.Settings, error) {
	return scanSettings(p.pool.QueryRow(ctx, sqlFindByURL, url))
}

func (p *PostgresStore) Insert(ctx context.Context, s queue.Settings) error {
	_, err := p.pool.Exec(ctx, sqlInsert,
		s.URL,
		s.Name,
		s.Created,
		s.DelaySeconds,
		s.MaximumMessageSize,
		s.MessageRetentionPeriod,
		s.ReceiveMessageWaitTimeSeconds,
		s.VisibilityTimeout,
		s.Policy,
		s.RedrivePolicy,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrExists
	}
	return err
}

func (p *PostgresStore) Update(ctx context.Context, url string, a queue.AttributeSet) (bool, error) {
	tag, err := p.pool.Exec(ctx, sqlUpdate,
		url,
		a.DelaySeconds,
		a.MaximumMessageSize,
		a.MessageRetentionPeriod,
		a.ReceiveMessageWaitTimeSeconds,
		a.VisibilityTimeout,
		a.Policy,
		a.RedrivePolicy,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (p *PostgresStore) List(ctx context.Context, prefix string) ([]queue.Settings, error) {
	rows, err := p.pool.Query(ctx, sqlList, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []queue.Settings
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Drop(ctx context.Context, url string) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, sqlDropMessages, url); err != nil {
			return fmt.Errorf("drop messages: %w", err)
		}
		if _, err := tx.Exec(ctx, sqlDropSettings, url); err != nil {
			return fmt.Errorf("drop settings: %w", err)
		}
		return nil
	})
}

func (p *PostgresStore) Queue(url string) store.MessageQueue {
	return &messageQueue{pool: p.pool, url: url}
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

type messageQueue struct {
	pool *pgxpool.Pool
	url  string
}

func (q *messageQueue) Add(ctx context.Context, body string, sentAt, visibleAt time.Time) (string, error) {
	id := uuid.NewString()
	var visible *time.Time
	if !visibleAt.IsZero() {
		visible = &visibleAt
	}
	if _, err := q.pool.Exec(ctx, sqlAdd, id, q.url, body, sentAt, visible); err != nil {
		return "", err
	}
	return id, nil
}

func (q *messageQueue) Lease(ctx context.Context, opts queue.LeaseOptions) (*queue.Message, error) {
	var (
		m         queue.Message
		visibleAt *time.Time
		claimedAt *time.Time
	)
	err := q.pool.QueryRow(ctx, sqlLease, q.url, opts.Now, opts.ReceiptHandle, opts.VisibleUntil).Scan(
		&m.ID,
		&m.Body,
		&m.SentAt,
		&visibleAt,
		&m.ReceiptHandle,
		&m.Tries,
		&claimedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.SentAt = m.SentAt.UTC()
	if visibleAt != nil {
		m.VisibleAt = visibleAt.UTC()
	}
	if claimedAt != nil {
		m.FirstClaimedAt = claimedAt.UTC()
	}
	return &m, nil
}

func (q *messageQueue) Ack(ctx context.Context, handle string, _ time.Time) (bool, error) {
	tag, err := q.pool.Exec(ctx, sqlAck, q.url, handle)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (q *messageQueue) Touch(ctx context.Context, handle string, visibleUntil time.Time) (bool, error) {
	tag, err := q.pool.Exec(ctx, sqlTouch, q.url, handle, visibleUntil)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (q *messageQueue) Clean(ctx context.Context, sentBefore time.Time) (int, error) {
	tag, err := q.pool.Exec(ctx, sqlClean, q.url, sentBefore)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
