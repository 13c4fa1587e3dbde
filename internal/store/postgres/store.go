// Package postgres is the PostgreSQL trip repository.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/syntrixbase/tripsync/internal/store"
	"github.com/syntrixbase/tripsync/internal/store/postgres/migrations"
	"github.com/syntrixbase/tripsync/pkg/model"
)

const uniqueViolation = "23505"

const selectColumns = `id, trip_number, status, start_time, end_time,
	       driver_id, vehicle_id, last_modified, version`

// Store persists trips in the trips table.
type Store struct {
	db *sql.DB
}

var _ store.Repository = (*Store)(nil)

// Open connects with lib/pq and, if configured, applies migrations.
func Open(ctx context.Context, cfg store.PostgresConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}
	return New(db), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		slog.Info("Applied migration", "source", r.Source.Path, "duration", r.Duration)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, trip *model.Trip) error {
	if err := trip.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trips (
			id, trip_number, status, start_time, end_time,
			driver_id, vehicle_id, last_modified, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		trip.ID, trip.TripNumber, trip.Status, trip.StartTime, trip.EndTime,
		trip.DriverID, trip.VehicleID, trip.LastModified, trip.Version,
	)
	if isUniqueViolation(err) {
		return model.ErrExists
	}
	return model.WrapError(err)
}

func (s *Store) Get(ctx context.Context, id string) (*model.Trip, error) {
	return s.scanTrip(s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM trips WHERE id = $1`, id))
}

func (s *Store) GetByNumber(ctx context.Context, tripNumber string) (*model.Trip, error) {
	return s.scanTrip(s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM trips WHERE trip_number = $1`, tripNumber))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInto(row scanner) (*model.Trip, error) {
	var trip model.Trip
	var endTime sql.NullTime
	if err := row.Scan(
		&trip.ID, &trip.TripNumber, &trip.Status, &trip.StartTime, &endTime,
		&trip.DriverID, &trip.VehicleID, &trip.LastModified, &trip.Version,
	); err != nil {
		return nil, err
	}
	if endTime.Valid {
		end := endTime.Time
		trip.EndTime = &end
	}
	return &trip, nil
}

func (s *Store) scanTrip(row *sql.Row) (*model.Trip, error) {
	trip, err := scanInto(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, model.WrapError(err)
	}
	return trip, nil
}

func (s *Store) List(ctx context.Context, opts store.ListOptions) ([]*model.Trip, error) {
	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT ` + selectColumns + ` FROM trips`)
	if opts.Status != "" {
		args = append(args, opts.Status)
		fmt.Fprintf(&query, ` WHERE status = $%d`, len(args))
	}
	query.WriteString(` ORDER BY trip_number`)
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&query, ` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, model.WrapError(err)
	}
	defer rows.Close()

	trips := make([]*model.Trip, 0)
	for rows.Next() {
		trip, err := scanInto(rows)
		if err != nil {
			return nil, model.WrapError(err)
		}
		trips = append(trips, trip)
	}
	return trips, model.WrapError(rows.Err())
}

func (s *Store) Update(ctx context.Context, trip *model.Trip, expectedVersion int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE trips SET
			trip_number = $2, status = $3, start_time = $4, end_time = $5,
			driver_id = $6, vehicle_id = $7, last_modified = $8, version = $9
		WHERE id = $1 AND version = $10
	`,
		trip.ID, trip.TripNumber, trip.Status, trip.StartTime, trip.EndTime,
		trip.DriverID, trip.VehicleID, trip.LastModified, trip.Version,
		expectedVersion,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrPreconditionFailed
		}
		return model.WrapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM trips WHERE id = $1)`, trip.ID).Scan(&exists); err != nil {
		return model.WrapError(err)
	}
	if !exists {
		return model.ErrNotFound
	}
	return model.ErrPreconditionFailed
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return model.WrapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
