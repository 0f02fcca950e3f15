package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"GhibliScanner/internal/domain"
	"GhibliScanner/internal/ports"
)

const (
	settingsTable = "scanner_settings"
	settingsRowID = 1

	colProcessed  = "images_processed"
	colDownloaded = "images_downloaded"
)

var settingsColumns = []string{
	"enabled",
	colProcessed,
	colDownloaded,
	"download_path",
	"api_key",
	"api_base_url",
	"confidence_threshold",
}

const schemaDDL = `CREATE TABLE IF NOT EXISTS scanner_settings (
    id                   SMALLINT PRIMARY KEY,
    enabled              BOOLEAN NOT NULL DEFAULT TRUE,
    images_processed     BIGINT NOT NULL DEFAULT 0,
    images_downloaded    BIGINT NOT NULL DEFAULT 0,
    download_path        TEXT NOT NULL DEFAULT '',
    api_key              TEXT NOT NULL DEFAULT '',
    api_base_url         TEXT NOT NULL DEFAULT '',
    confidence_threshold DOUBLE PRECISION NOT NULL DEFAULT 0.7,
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore keeps the settings record in a single Postgres row.
type PostgresStore struct {
	db *sql.DB
}

var _ ports.SettingsStore = (*PostgresStore)(nil)

// OpenPostgres opens and pings a pgx-backed sql.DB.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the settings table when it is missing.
func (r *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create settings table: %w", err)
	}
	return nil
}

// Install inserts the default row unless one exists.
func (r *PostgresStore) Install(ctx context.Context, defaults domain.Settings) error {
	query, args, err := installQuery(defaults)
	if err != nil {
		return fmt.Errorf("build install: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("install settings: %w", err)
	}
	return nil
}

// Load returns the stored row, or install defaults when there is none.
func (r *PostgresStore) Load(ctx context.Context) (domain.Settings, error) {
	query, args, err := loadQuery()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("build load: %w", err)
	}

	settings, err := scanSettings(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return settings, nil
}

// Update applies every patch field in a single UPDATE statement.
func (r *PostgresStore) Update(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	if patch.Empty() {
		return r.Load(ctx)
	}

	query, args, err := updateQuery(patch)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("build update: %w", err)
	}

	settings, err := scanSettings(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.Settings{}, fmt.Errorf("update settings: %w", err)
	}
	return settings, nil
}

// SetEnabled flips the enabled flag.
func (r *PostgresStore) SetEnabled(ctx context.Context, enabled bool) error {
	_, err := r.Update(ctx, domain.SettingsPatch{Enabled: &enabled})
	return err
}

// IncrementProcessed bumps the processed counter server-side.
func (r *PostgresStore) IncrementProcessed(ctx context.Context) (int64, error) {
	return r.increment(ctx, colProcessed)
}

// IncrementDownloaded bumps the downloaded counter server-side.
func (r *PostgresStore) IncrementDownloaded(ctx context.Context) (int64, error) {
	return r.increment(ctx, colDownloaded)
}

func (r *PostgresStore) increment(ctx context.Context, column string) (int64, error) {
	query, args, err := incrementQuery(column)
	if err != nil {
		return 0, fmt.Errorf("build increment: %w", err)
	}

	var value int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		return 0, fmt.Errorf("increment %s: %w", column, err)
	}
	return value, nil
}

func installQuery(s domain.Settings) (string, []interface{}, error) {
	return psql.Insert(settingsTable).
		Columns(append([]string{"id"}, settingsColumns...)...).
		Values(settingsRowID, s.Enabled, s.ImagesProcessed, s.ImagesDownloaded,
			s.DownloadPath, s.APIKey, s.APIBaseURL, s.ConfidenceThreshold).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
}

func loadQuery() (string, []interface{}, error) {
	return psql.Select(settingsColumns...).
		From(settingsTable).
		Where(sq.Eq{"id": settingsRowID}).
		ToSql()
}

func updateQuery(p domain.SettingsPatch) (string, []interface{}, error) {
	values := map[string]interface{}{"updated_at": sq.Expr("NOW()")}
	if p.Enabled != nil {
		values["enabled"] = *p.Enabled
	}
	if p.DownloadPath != nil {
		values["download_path"] = *p.DownloadPath
	}
	if p.APIKey != nil {
		values["api_key"] = *p.APIKey
	}
	if p.APIBaseURL != nil {
		values["api_base_url"] = *p.APIBaseURL
	}
	if p.ConfidenceThreshold != nil {
		values["confidence_threshold"] = *p.ConfidenceThreshold
	}

	return psql.Update(settingsTable).
		SetMap(values).
		Where(sq.Eq{"id": settingsRowID}).
		Suffix("RETURNING " + strings.Join(settingsColumns, ", ")).
		ToSql()
}

func incrementQuery(column string) (string, []interface{}, error) {
	return psql.Update(settingsTable).
		Set(column, sq.Expr(column+" + 1")).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": settingsRowID}).
		Suffix("RETURNING " + column).
		ToSql()
}

func scanSettings(row *sql.Row) (domain.Settings, error) {
	var s domain.Settings
	err := row.Scan(
		&s.Enabled,
		&s.ImagesProcessed,
		&s.ImagesDownloaded,
		&s.DownloadPath,
		&s.APIKey,
		&s.APIBaseURL,
		&s.ConfidenceThreshold,
	)
	return s, err
}
