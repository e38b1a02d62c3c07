package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/localizador/backend/internal/models"
)

var ErrNotFound = errors.New("not found")

//go:embed schema.sql
var schema string

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schema)
	return err
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const technicianColumns = `id, name, address, city, state, coordinator, coordinator_email, lat, lon, updated_at`

func scanTechnician(row pgx.Row) (models.Technician, error) {
	var t models.Technician
	err := row.Scan(&t.ID, &t.Name, &t.Address, &t.City, &t.State, &t.Coordinator, &t.CoordinatorEmail, &t.Lat, &t.Lon, &t.UpdatedAt)
	return t, err
}

// ListTechnicians returns the directory in insertion order, which is the
// order used to break distance ties.
func (s *Store) ListTechnicians(ctx context.Context, filter models.TechnicianFilter) ([]models.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians`
	var args []any
	var wheres []string
	if filter.State != "" {
		args = append(args, filter.State)
		wheres = append(wheres, fmt.Sprintf("state = $%d", len(args)))
	}
	if filter.City != "" {
		args = append(args, filter.City)
		wheres = append(wheres, fmt.Sprintf("city = $%d", len(args)))
	}
	if filter.Coordinator != "" {
		args = append(args, filter.Coordinator)
		wheres = append(wheres, fmt.Sprintf("coordinator = $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY seq ASC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Technician{}
	for rows.Next() {
		t, err := scanTechnician(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTechnician(ctx context.Context, id string) (models.Technician, error) {
	t, err := scanTechnician(s.Pool.QueryRow(ctx, `SELECT `+technicianColumns+` FROM technicians WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Technician{}, ErrNotFound
	}
	return t, err
}

func (s *Store) CreateTechnician(ctx context.Context, t models.Technician) (models.Technician, error) {
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}
	t.UpdatedAt = time.Now().UTC()
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO technicians (id, name, address, city, state, coordinator, coordinator_email, lat, lon, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, t.ID, t.Name, t.Address, t.City, t.State, t.Coordinator, t.CoordinatorEmail, t.Lat, t.Lon, t.UpdatedAt)
	return t, err
}

func (s *Store) UpdateTechnician(ctx context.Context, t models.Technician) (models.Technician, error) {
	t.UpdatedAt = time.Now().UTC()
	tag, err := s.Pool.Exec(ctx, `
		UPDATE technicians
		SET name = $2, address = $3, city = $4, state = $5, coordinator = $6, coordinator_email = $7, lat = $8, lon = $9, updated_at = $10
		WHERE id = $1
	`, t.ID, t.Name, t.Address, t.City, t.State, t.Coordinator, t.CoordinatorEmail, t.Lat, t.Lon, t.UpdatedAt)
	if err != nil {
		return models.Technician{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.Technician{}, ErrNotFound
	}
	return t, nil
}

func (s *Store) DeleteTechnician(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM technicians WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceTechnicians swaps the whole directory in one transaction. Records
// without an id get a generated one.
func (s *Store) ReplaceTechnicians(ctx context.Context, techs []models.Technician) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(techs))
	for _, t := range techs {
		if strings.TrimSpace(t.ID) == "" {
			t.ID = uuid.NewString()
		}
		rows = append(rows, []any{t.ID, t.Name, t.Address, t.City, t.State, t.Coordinator, t.CoordinatorEmail, t.Lat, t.Lon, now})
	}

	var copyCount int64
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE technicians RESTART IDENTITY`); err != nil {
			return err
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"technicians"},
			[]string{"id", "name", "address", "city", "state", "coordinator", "coordinator_email", "lat", "lon", "updated_at"},
			pgx.CopyFromRows(rows))
		copyCount = n
		return err
	})
	return copyCount, err
}

func (s *Store) UpdateTechnicianCoords(ctx context.Context, id string, lat, lon float64) error {
	_, err := s.Pool.Exec(ctx, `UPDATE technicians SET lat = $1, lon = $2, updated_at = NOW() WHERE id = $3`, lat, lon, id)
	return err
}

// TechnicianFilterOptions lists the distinct values offered as filters.
func (s *Store) TechnicianFilterOptions(ctx context.Context) (models.FilterOptions, error) {
	opts := models.FilterOptions{}
	var err error
	if opts.States, err = s.distinct(ctx, "state"); err != nil {
		return opts, err
	}
	if opts.Cities, err = s.distinct(ctx, "city"); err != nil {
		return opts, err
	}
	if opts.Coordinators, err = s.distinct(ctx, "coordinator"); err != nil {
		return opts, err
	}
	return opts, nil
}

func (s *Store) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := s.Pool.Query(ctx, fmt.Sprintf(`SELECT DISTINCT %[1]s FROM technicians WHERE %[1]s <> '' ORDER BY %[1]s`, pgx.Identifier{column}.Sanitize()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) TechnicianStats(ctx context.Context) (models.TechnicianStats, error) {
	stats := models.TechnicianStats{}
	err := s.Pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT NULLIF(coordinator, '')), COUNT(DISTINCT NULLIF(state, ''))
		FROM technicians`).Scan(&stats.Total, &stats.Coordinators, &stats.States)
	if err != nil {
		return stats, err
	}
	if stats.ByState, err = s.countBy(ctx, "state"); err != nil {
		return stats, err
	}
	if stats.ByCoordinator, err = s.countBy(ctx, "coordinator"); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *Store) countBy(ctx context.Context, column string) ([]models.Count, error) {
	col := pgx.Identifier{column}.Sanitize()
	rows, err := s.Pool.Query(ctx, fmt.Sprintf(`
		SELECT %[1]s, COUNT(*) FROM technicians
		WHERE %[1]s <> ''
		GROUP BY %[1]s
		ORDER BY COUNT(*) DESC, %[1]s`, col))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Count, error) {
		var c models.Count
		err := row.Scan(&c.Key, &c.Count)
		return c, err
	})
}

func (s *Store) CreateRun(ctx context.Context, status string, params []byte) (string, error) {
	id := uuid.NewString()
	_, err := s.Pool.Exec(ctx, `INSERT INTO runs (id, status, started_at, params) VALUES ($1, $2, NOW(), $3)`, id, status, params)
	return id, err
}

func (s *Store) FinishRun(ctx context.Context, runID string, status string, summary, results, workload []byte) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE runs SET status = $1, summary = $2, results = $3, workload = $4, finished_at = NOW()
		WHERE id = $5
	`, status, summary, results, workload, runID)
	return err
}

const runColumns = `id::text, started_at, finished_at, status, params, summary, results, workload`

func scanRun(row pgx.Row) (models.Run, error) {
	var r models.Run
	var params, summary, results, workload []byte
	err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &params, &summary, &results, &workload)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Run{}, ErrNotFound
	}
	if err != nil {
		return models.Run{}, err
	}
	r.Params, r.Summary, r.Results, r.Workload = params, summary, results, workload
	return r, nil
}

func (s *Store) GetLatestRun(ctx context.Context) (models.Run, error) {
	return scanRun(s.Pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT 1`))
}

func (s *Store) GetRun(ctx context.Context, id string) (models.Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.Run{}, ErrNotFound
	}
	return scanRun(s.Pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id))
}
