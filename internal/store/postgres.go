package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kjstillabower/climate-insights/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// SQLSTATE codes from https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const (
	provinceColumns = `id, name, code`
	userColumns     = `id, email, name`
	weatherSelect   = `SELECT w.id, w.province_id, w.date, w.temperature, w.precipitation, p.id, p.name, p.code`
)

// Postgres is the PostgreSQL-backed Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a pool against databaseURL and verifies connectivity.
// maxConns <= 0 keeps the pgxpool default.
func NewPostgres(ctx context.Context, databaseURL string, maxConns int32) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// classify converts driver errors into ErrNotFound and *ConstraintError.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return newConstraintError(KindUnique, pgErr.ConstraintName, err)
		case pgForeignKeyViolation:
			return newConstraintError(KindForeignKey, pgErr.ConstraintName, err)
		}
	}
	return err
}

// assignments accumulates "col = $n" pairs for a partial UPDATE.
type assignments struct {
	cols []string
	args []any
}

func (a *assignments) set(col string, v any) {
	a.args = append(a.args, v)
	a.cols = append(a.cols, fmt.Sprintf("%s = $%d", col, len(a.args)))
}

// where appends the id argument and returns the SET list and its placeholder.
func (a *assignments) where(id int64) (string, string) {
	a.args = append(a.args, id)
	return strings.Join(a.cols, ", "), fmt.Sprintf("$%d", len(a.args))
}

// Provinces

func scanProvince(row pgx.Row) (models.Province, error) {
	var pr models.Province
	err := row.Scan(&pr.ID, &pr.Name, &pr.Code)
	return pr, classify(err)
}

func (p *Postgres) ListProvinces(ctx context.Context, page models.Page) ([]models.Province, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+provinceColumns+` FROM provinces ORDER BY name ASC, id ASC LIMIT NULLIF($1, 0) OFFSET $2`,
		page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query provinces: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Province, error) {
		return scanProvince(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan provinces: %w", err)
	}
	return out, nil
}

func (p *Postgres) GetProvince(ctx context.Context, id int64) (models.Province, error) {
	return scanProvince(p.pool.QueryRow(ctx,
		`SELECT `+provinceColumns+` FROM provinces WHERE id = $1`, id))
}

func (p *Postgres) CreateProvince(ctx context.Context, in models.ProvinceInput) (models.Province, error) {
	return scanProvince(p.pool.QueryRow(ctx,
		`INSERT INTO provinces (name, code) VALUES ($1, $2) RETURNING `+provinceColumns,
		in.Name, in.Code))
}

func (p *Postgres) UpdateProvince(ctx context.Context, id int64, patch models.ProvincePatch) (models.Province, error) {
	if patch.Empty() {
		return p.GetProvince(ctx, id)
	}
	var a assignments
	if patch.Name != nil {
		a.set("name", *patch.Name)
	}
	if patch.Code != nil {
		a.set("code", *patch.Code)
	}
	set, idArg := a.where(id)
	return scanProvince(p.pool.QueryRow(ctx,
		`UPDATE provinces SET `+set+` WHERE id = `+idArg+` RETURNING `+provinceColumns, a.args...))
}

func (p *Postgres) DeleteProvince(ctx context.Context, id int64) error {
	return p.deleteByID(ctx, "provinces", id)
}

func (p *Postgres) UpsertProvince(ctx context.Context, in models.ProvinceInput) (models.Province, error) {
	return scanProvince(p.pool.QueryRow(ctx,
		`INSERT INTO provinces (name, code) VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING `+provinceColumns,
		in.Name, in.Code))
}

// Users

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name)
	return u, classify(err)
}

func (p *Postgres) ListUsers(ctx context.Context, page models.Page) ([]models.User, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id ASC LIMIT NULLIF($1, 0) OFFSET $2`,
		page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}
	return out, nil
}

func (p *Postgres) GetUser(ctx context.Context, id int64) (models.User, error) {
	return scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (p *Postgres) CreateUser(ctx context.Context, in models.UserInput) (models.User, error) {
	return scanUser(p.pool.QueryRow(ctx,
		`INSERT INTO users (email, name) VALUES ($1, $2) RETURNING `+userColumns,
		in.Email, in.Name))
}

func (p *Postgres) UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (models.User, error) {
	if patch.Empty() {
		return p.GetUser(ctx, id)
	}
	var a assignments
	if patch.Email != nil {
		a.set("email", *patch.Email)
	}
	if patch.Name != nil {
		a.set("name", *patch.Name)
	}
	set, idArg := a.where(id)
	return scanUser(p.pool.QueryRow(ctx,
		`UPDATE users SET `+set+` WHERE id = `+idArg+` RETURNING `+userColumns, a.args...))
}

func (p *Postgres) DeleteUser(ctx context.Context, id int64) error {
	return p.deleteByID(ctx, "users", id)
}

// Weather data

func scanWeather(row pgx.Row) (models.WeatherData, error) {
	var (
		w  models.WeatherData
		pr models.Province
	)
	err := row.Scan(&w.ID, &w.ProvinceID, &w.Date, &w.Temperature, &w.Precipitation, &pr.ID, &pr.Name, &pr.Code)
	if err != nil {
		return w, classify(err)
	}
	w.Date = w.Date.UTC()
	w.Province = &pr
	return w, nil
}

func (p *Postgres) ListWeather(ctx context.Context, filter models.WeatherFilter) ([]models.WeatherData, error) {
	rows, err := p.pool.Query(ctx,
		weatherSelect+`
		FROM weather_data w JOIN provinces p ON p.id = w.province_id
		WHERE ($1::bigint IS NULL OR w.province_id = $1)
		ORDER BY w.date DESC, w.id DESC
		LIMIT NULLIF($2, 0) OFFSET $3`,
		filter.ProvinceID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query weather data: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.WeatherData, error) {
		return scanWeather(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan weather data: %w", err)
	}
	return out, nil
}

func (p *Postgres) GetWeather(ctx context.Context, id int64) (models.WeatherData, error) {
	return scanWeather(p.pool.QueryRow(ctx,
		weatherSelect+` FROM weather_data w JOIN provinces p ON p.id = w.province_id WHERE w.id = $1`, id))
}

func (p *Postgres) CreateWeather(ctx context.Context, in models.WeatherInput) (models.WeatherData, error) {
	return scanWeather(p.pool.QueryRow(ctx,
		`WITH w AS (
			INSERT INTO weather_data (province_id, date, temperature, precipitation)
			VALUES ($1, $2, $3, $4)
			RETURNING *
		)
		`+weatherSelect+` FROM w JOIN provinces p ON p.id = w.province_id`,
		in.ProvinceID, in.Date, in.Temperature, in.Precipitation))
}

func (p *Postgres) UpdateWeather(ctx context.Context, id int64, patch models.WeatherPatch) (models.WeatherData, error) {
	if patch.Empty() {
		return p.GetWeather(ctx, id)
	}
	var a assignments
	if patch.ProvinceID != nil {
		a.set("province_id", *patch.ProvinceID)
	}
	if patch.Date != nil {
		a.set("date", *patch.Date)
	}
	if patch.Temperature != nil {
		a.set("temperature", *patch.Temperature)
	}
	if patch.Precipitation != nil {
		a.set("precipitation", *patch.Precipitation)
	}
	set, idArg := a.where(id)
	return scanWeather(p.pool.QueryRow(ctx,
		`WITH w AS (
			UPDATE weather_data SET `+set+` WHERE id = `+idArg+`
			RETURNING *
		)
		`+weatherSelect+` FROM w JOIN provinces p ON p.id = w.province_id`,
		a.args...))
}

func (p *Postgres) DeleteWeather(ctx context.Context, id int64) error {
	return p.deleteByID(ctx, "weather_data", id)
}

func (p *Postgres) SummarizeWeather(ctx context.Context) ([]models.ProvinceSummary, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT p.id, p.name, p.code, COUNT(w.id), AVG(w.temperature), SUM(w.precipitation)
		FROM provinces p JOIN weather_data w ON w.province_id = p.id
		GROUP BY p.id, p.name, p.code
		ORDER BY p.code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query weather summary: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ProvinceSummary, error) {
		var s models.ProvinceSummary
		err := row.Scan(&s.ProvinceID, &s.Name, &s.Code, &s.Count, &s.AvgTemperature, &s.TotalPrecipitation)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan weather summary: %w", err)
	}
	return out, nil
}

// deleteByID removes one row from table. table is always a package constant.
func (p *Postgres) deleteByID(ctx context.Context, table string, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
