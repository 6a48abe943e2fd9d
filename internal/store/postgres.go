package store

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

	"github.com/ToffenYT/varsly/internal/logger"
	"github.com/ToffenYT/varsly/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// Postgres Store backed by pgx
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates tables and the alert unique constraint if missing
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	log := logger.GetLogger("store")
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	log.Info("Schema ensured")
	return nil
}

func (p *Postgres) ListKeywords(ctx context.Context, ownerID string) ([]models.Keyword, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, user_id, keyword, created_at
		FROM user_keywords
		WHERE user_id = $1
		ORDER BY created_at, lower(keyword)
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	return collectKeywords(rows)
}

func (p *Postgres) ListAllKeywords(ctx context.Context) ([]models.Keyword, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, user_id, keyword, created_at
		FROM user_keywords
		ORDER BY user_id, created_at, lower(keyword)
	`)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	return collectKeywords(rows)
}

func collectKeywords(rows pgx.Rows) ([]models.Keyword, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Keyword, error) {
		var k models.Keyword
		err := row.Scan(&k.ID, &k.OwnerID, &k.Text, &k.CreatedAt)
		return k, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan keywords: %w", err)
	}
	return out, nil
}

func (p *Postgres) InsertKeyword(ctx context.Context, k *models.Keyword) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO user_keywords (id, user_id, keyword)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, k.ID, k.OwnerID, k.Text).Scan(&k.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert keyword: %w", mapError(err))
	}
	return nil
}

func (p *Postgres) DeleteKeyword(ctx context.Context, ownerID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM user_keywords WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete keyword: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const alertColumns = `id::text, user_id, tender_title, tender_organization, tender_location,
	tender_deadline, tender_url, tender_category, matched_keyword, created_at`

func scanAlert(row pgx.Row) (models.Alert, error) {
	var a models.Alert
	err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.NoticeTitle,
		&a.NoticeOrganization,
		&a.NoticeLocation,
		&a.NoticeDeadline,
		&a.NoticeURL,
		&a.NoticeCategory,
		&a.MatchedKeyword,
		&a.CreatedAt,
	)
	return a, err
}

func (p *Postgres) FindAlert(ctx context.Context, key models.AlertKey) (*models.Alert, error) {
	a, err := scanAlert(p.pool.QueryRow(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE user_id = $1 AND tender_title = $2 AND matched_keyword = $3
		LIMIT 1
	`, key.OwnerID, key.NoticeTitle, key.MatchedKeyword))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find alert: %w", err)
	}
	return &a, nil
}

// InsertAlert relies on the unique constraint; ON CONFLICT DO NOTHING yields no row for a duplicate
func (p *Postgres) InsertAlert(ctx context.Context, a *models.Alert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	var createdAt *time.Time
	if !a.CreatedAt.IsZero() {
		createdAt = &a.CreatedAt
	}

	err := p.pool.QueryRow(ctx, `
		INSERT INTO alerts (id, user_id, tender_title, tender_organization, tender_location,
			tender_deadline, tender_url, tender_category, matched_keyword, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()))
		ON CONFLICT (user_id, tender_title, matched_keyword) DO NOTHING
		RETURNING created_at
	`,
		a.ID,
		a.OwnerID,
		a.NoticeTitle,
		a.NoticeOrganization,
		a.NoticeLocation,
		a.NoticeDeadline,
		a.NoticeURL,
		a.NoticeCategory,
		a.MatchedKeyword,
		createdAt,
	).Scan(&a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert alert: %w", mapError(err))
	}
	return nil
}

func (p *Postgres) ListAlertsSince(ctx context.Context, ownerID string, since time.Time) ([]models.Alert, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Alert, error) {
		return scanAlert(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan alerts: %w", err)
	}
	return out, nil
}

const preferenceColumns = `id, email, email_notifications, notification_frequency, last_notified_at`

func scanPreference(row pgx.Row) (models.SubscriberPreference, error) {
	var (
		p    models.SubscriberPreference
		mode string
	)
	err := row.Scan(&p.SubscriberID, &p.Email, &p.NotificationsEnabled, &mode, &p.LastNotifiedAt)
	p.DeliveryMode = models.DeliveryMode(mode)
	return p, err
}

func (p *Postgres) GetPreference(ctx context.Context, subscriberID string) (*models.SubscriberPreference, error) {
	pref, err := scanPreference(p.pool.QueryRow(ctx,
		`SELECT `+preferenceColumns+` FROM profiles WHERE id = $1`, subscriberID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get preference: %w", err)
	}
	return &pref, nil
}

func (p *Postgres) ListPreferences(ctx context.Context, f PreferenceFilter) ([]models.SubscriberPreference, error) {
	query := `SELECT ` + preferenceColumns + ` FROM profiles WHERE ($1 = false OR email_notifications)`
	args := []any{f.EnabledOnly}
	if f.Mode != "" {
		query += ` AND notification_frequency = $2`
		args = append(args, string(f.Mode))
	}
	query += ` ORDER BY id`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SubscriberPreference, error) {
		return scanPreference(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan preferences: %w", err)
	}
	return out, nil
}

func (p *Postgres) UpsertPreference(ctx context.Context, pref *models.SubscriberPreference) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO profiles (id, email, email_notifications, notification_frequency, last_notified_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			email_notifications = EXCLUDED.email_notifications,
			notification_frequency = EXCLUDED.notification_frequency,
			last_notified_at = COALESCE(EXCLUDED.last_notified_at, profiles.last_notified_at)
	`, pref.SubscriberID, pref.Email, pref.NotificationsEnabled, string(pref.DeliveryMode), pref.LastNotifiedAt)
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

func (p *Postgres) SetNotificationsEnabled(ctx context.Context, subscriberID string, enabled bool) error {
	tag, err := p.pool.Exec(ctx, `UPDATE profiles SET email_notifications = $2 WHERE id = $1`, subscriberID, enabled)
	if err != nil {
		return fmt.Errorf("update notifications: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) MarkNotified(ctx context.Context, subscriberID string, at time.Time) error {
	tag, err := p.pool.Exec(ctx, `UPDATE profiles SET last_notified_at = $2 WHERE id = $1`, subscriberID, at)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close is a no-op; the pool belongs to db.DB
func (p *Postgres) Close() {}

// mapError translates a unique violation into ErrDuplicate
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}
