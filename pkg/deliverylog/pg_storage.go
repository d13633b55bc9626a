package deliverylog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStorage is a PostgreSQL-backed Storage implementation. It expects the
// delivery_log table created by Migrate.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage creates a delivery log backed by the given connection pool.
func NewPGStorage(pool *pgxpool.Pool) *PGStorage {
	return &PGStorage{pool: pool}
}

// Migrate creates the delivery_log table if it does not exist.
func (s *PGStorage) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS delivery_log (
			notification_id UUID NOT NULL,
			channel TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			sent_at TIMESTAMPTZ,
			delivered_at TIMESTAMPTZ,
			failed_at TIMESTAMPTZ,
			PRIMARY KEY (notification_id, channel)
		);
		CREATE INDEX IF NOT EXISTS delivery_log_created_at_idx ON delivery_log (created_at);
		CREATE INDEX IF NOT EXISTS delivery_log_status_idx ON delivery_log (status);
	`)
	if err != nil {
		return errors.Join(ErrFailedToStoreEntry, err)
	}
	return nil
}

func (s *PGStorage) Create(ctx context.Context, entry Entry) error {
	if entry.NotificationID == uuid.Nil {
		return ErrNotificationIDEmpty
	}
	if entry.Channel == "" {
		return ErrChannelEmpty
	}
	if entry.Status == "" {
		entry.Status = StatusPending
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_log (notification_id, channel, category, status, error, created_at, sent_at, delivered_at, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.NotificationID, entry.Channel, entry.Category, entry.Status, entry.Error, entry.CreatedAt, entry.SentAt, entry.DeliveredAt, entry.FailedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: notification %s channel %s", ErrEntryExists, entry.NotificationID, entry.Channel)
		}
		return errors.Join(ErrFailedToStoreEntry, err)
	}
	return nil
}

func (s *PGStorage) MarkSent(ctx context.Context, notificationID uuid.UUID, channel string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE delivery_log SET status = $3, sent_at = $4, error = ''
		WHERE notification_id = $1 AND channel = $2
	`, notificationID, channel, StatusSent, at)
	if err != nil {
		return errors.Join(ErrFailedToStoreEntry, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (s *PGStorage) MarkDelivered(ctx context.Context, notificationID uuid.UUID, channel string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE delivery_log SET status = $3, sent_at = COALESCE(sent_at, $4), delivered_at = $4, error = ''
		WHERE notification_id = $1 AND channel = $2
	`, notificationID, channel, StatusDelivered, at)
	if err != nil {
		return errors.Join(ErrFailedToStoreEntry, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (s *PGStorage) MarkFailed(ctx context.Context, notificationID uuid.UUID, channel string, errMsg string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE delivery_log SET status = $3, error = $4, failed_at = $5
		WHERE notification_id = $1 AND channel = $2
	`, notificationID, channel, StatusFailed, errMsg, at)
	if err != nil {
		return errors.Join(ErrFailedToStoreEntry, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (s *PGStorage) Get(ctx context.Context, notificationID uuid.UUID, channel string) (*Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT notification_id, channel, category, status, error, created_at, sent_at, delivered_at, failed_at
		FROM delivery_log WHERE notification_id = $1 AND channel = $2
	`, notificationID, channel)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, errors.Join(ErrFailedToQueryEntries, err)
	}
	return entry, nil
}

func (s *PGStorage) List(ctx context.Context, filter Filter) ([]Entry, error) {
	where, args := filterClauses(filter)
	query := `
		SELECT notification_id, channel, category, status, error, created_at, sent_at, delivered_at, failed_at
		FROM delivery_log` + where + ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Join(ErrFailedToQueryEntries, err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Join(ErrFailedToQueryEntries, err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrFailedToQueryEntries, err)
	}

	return entries, nil
}

func (s *PGStorage) Stats(ctx context.Context, filter Filter) (Stats, error) {
	where, args := filterClauses(filter)
	query := `
		SELECT status, COUNT(*),
			COALESCE(AVG(EXTRACT(EPOCH FROM sent_at - created_at)) FILTER (WHERE sent_at IS NOT NULL), 0)::float8,
			COALESCE(AVG(EXTRACT(EPOCH FROM delivered_at - sent_at)) FILTER (WHERE delivered_at IS NOT NULL AND sent_at IS NOT NULL), 0)::float8
		FROM delivery_log` + where + ` GROUP BY status`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return Stats{}, errors.Join(ErrFailedToQueryEntries, err)
	}
	defer rows.Close()

	stats := Stats{CountByStatus: make(map[Status]int)}

	// Latency averages are weighted back together across status groups.
	var createdToSent, sentToDelivered time.Duration
	var sentCount, deliveredCount int

	for rows.Next() {
		var status Status
		var count int
		var avgSentSec, avgDeliveredSec float64
		if err := rows.Scan(&status, &count, &avgSentSec, &avgDeliveredSec); err != nil {
			return Stats{}, errors.Join(ErrFailedToQueryEntries, err)
		}
		stats.CountByStatus[status] = count
		if status == StatusSent || status == StatusDelivered {
			createdToSent += time.Duration(avgSentSec*float64(time.Second)) * time.Duration(count)
			sentCount += count
		}
		if status == StatusDelivered {
			sentToDelivered += time.Duration(avgDeliveredSec*float64(time.Second)) * time.Duration(count)
			deliveredCount += count
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, errors.Join(ErrFailedToQueryEntries, err)
	}

	if sentCount > 0 {
		stats.AvgCreatedToSent = createdToSent / time.Duration(sentCount)
	}
	if deliveredCount > 0 {
		stats.AvgSentToDelivered = sentToDelivered / time.Duration(deliveredCount)
	}

	return stats, nil
}

func (s *PGStorage) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM delivery_log
		WHERE created_at < $1 AND status IN ($2, $3)
	`, olderThan, StatusDelivered, StatusFailed)
	if err != nil {
		return 0, errors.Join(ErrFailedToStoreEntry, err)
	}
	return int(tag.RowsAffected()), nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var entry Entry
	if err := row.Scan(
		&entry.NotificationID, &entry.Channel, &entry.Category, &entry.Status,
		&entry.Error, &entry.CreatedAt, &entry.SentAt, &entry.DeliveredAt, &entry.FailedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}

func filterClauses(filter Filter) (string, []any) {
	clauses := make([]string, 0, 5)
	args := make([]any, 0, 5)

	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.Channel != "" {
		add("channel = $%d", filter.Channel)
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
