// Package store persists provinces, users and weather observations.
//
// Two backends implement Store: Postgres (pgxpool) for deployments and Memory for
// tests and local runs. Both report absence as ErrNotFound and integrity violations as
// *ConstraintError, so callers never inspect driver errors.
package store

import (
	"context"

	"github.com/kjstillabower/climate-insights/internal/models"
)

type ProvinceStore interface {
	// ListProvinces returns provinces ordered by name, then id.
	ListProvinces(ctx context.Context, page models.Page) ([]models.Province, error)
	GetProvince(ctx context.Context, id int64) (models.Province, error)
	CreateProvince(ctx context.Context, in models.ProvinceInput) (models.Province, error)
	// UpdateProvince applies the non-nil patch fields. An empty patch returns the current row.
	UpdateProvince(ctx context.Context, id int64, patch models.ProvincePatch) (models.Province, error)
	// DeleteProvince fails with a foreign-key ConstraintError while observations reference it.
	DeleteProvince(ctx context.Context, id int64) error
	// UpsertProvince inserts by code or renames the existing province with that code.
	UpsertProvince(ctx context.Context, in models.ProvinceInput) (models.Province, error)
}

type UserStore interface {
	// ListUsers returns users ordered by id.
	ListUsers(ctx context.Context, page models.Page) ([]models.User, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	CreateUser(ctx context.Context, in models.UserInput) (models.User, error)
	UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (models.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// WeatherStore reads and writes observations. Every returned record has Province set.
type WeatherStore interface {
	// ListWeather returns observations newest first (date desc, then id desc).
	ListWeather(ctx context.Context, filter models.WeatherFilter) ([]models.WeatherData, error)
	GetWeather(ctx context.Context, id int64) (models.WeatherData, error)
	CreateWeather(ctx context.Context, in models.WeatherInput) (models.WeatherData, error)
	UpdateWeather(ctx context.Context, id int64, patch models.WeatherPatch) (models.WeatherData, error)
	DeleteWeather(ctx context.Context, id int64) error
	// SummarizeWeather aggregates observations per province, ordered by province code.
	SummarizeWeather(ctx context.Context) ([]models.ProvinceSummary, error)
}

// Store is the single persistence handle constructed in main and shared by all handlers.
// Implementations are safe for concurrent use.
type Store interface {
	ProvinceStore
	UserStore
	WeatherStore
	Ping(ctx context.Context) error
	Close() error
}
