package store

import (
	"context"
	"errors"
	"time"

	"github.com/kjstillabower/climate-insights/internal/models"
	"github.com/kjstillabower/climate-insights/internal/observability"
)

// Instrumented wraps a Store and records storeOperationsTotal and
// storeOperationDurationSeconds for every call.
type Instrumented struct {
	next Store
}

func Instrument(next Store) *Instrumented {
	return &Instrumented{next: next}
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return observability.ResultOK
	case errors.Is(err, ErrNotFound):
		return observability.ResultNotFound
	case errors.As(err, new(*ConstraintError)):
		return observability.ResultConflict
	default:
		return observability.ResultError
	}
}

func observe(entity, op string, start time.Time, err error) {
	observability.RecordStoreOperation(entity, op, resultOf(err), time.Since(start))
}

func (s *Instrumented) Ping(ctx context.Context) error { return s.next.Ping(ctx) }

func (s *Instrumented) Close() error { return s.next.Close() }

func (s *Instrumented) ListProvinces(ctx context.Context, page models.Page) ([]models.Province, error) {
	start := time.Now()
	out, err := s.next.ListProvinces(ctx, page)
	observe("province", "list", start, err)
	return out, err
}

func (s *Instrumented) GetProvince(ctx context.Context, id int64) (models.Province, error) {
	start := time.Now()
	out, err := s.next.GetProvince(ctx, id)
	observe("province", "get", start, err)
	return out, err
}

func (s *Instrumented) CreateProvince(ctx context.Context, in models.ProvinceInput) (models.Province, error) {
	start := time.Now()
	out, err := s.next.CreateProvince(ctx, in)
	observe("province", "create", start, err)
	return out, err
}

func (s *Instrumented) UpdateProvince(ctx context.Context, id int64, patch models.ProvincePatch) (models.Province, error) {
	start := time.Now()
	out, err := s.next.UpdateProvince(ctx, id, patch)
	observe("province", "update", start, err)
	return out, err
}

func (s *Instrumented) DeleteProvince(ctx context.Context, id int64) error {
	start := time.Now()
	err := s.next.DeleteProvince(ctx, id)
	observe("province", "delete", start, err)
	return err
}

func (s *Instrumented) UpsertProvince(ctx context.Context, in models.ProvinceInput) (models.Province, error) {
	start := time.Now()
	out, err := s.next.UpsertProvince(ctx, in)
	observe("province", "upsert", start, err)
	return out, err
}

func (s *Instrumented) ListUsers(ctx context.Context, page models.Page) ([]models.User, error) {
	start := time.Now()
	out, err := s.next.ListUsers(ctx, page)
	observe("user", "list", start, err)
	return out, err
}

func (s *Instrumented) GetUser(ctx context.Context, id int64) (models.User, error) {
	start := time.Now()
	out, err := s.next.GetUser(ctx, id)
	observe("user", "get", start, err)
	return out, err
}

func (s *Instrumented) CreateUser(ctx context.Context, in models.UserInput) (models.User, error) {
	start := time.Now()
	out, err := s.next.CreateUser(ctx, in)
	observe("user", "create", start, err)
	return out, err
}

func (s *Instrumented) UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (models.User, error) {
	start := time.Now()
	out, err := s.next.UpdateUser(ctx, id, patch)
	observe("user", "update", start, err)
	return out, err
}

func (s *Instrumented) DeleteUser(ctx context.Context, id int64) error {
	start := time.Now()
	err := s.next.DeleteUser(ctx, id)
	observe("user", "delete", start, err)
	return err
}

func (s *Instrumented) ListWeather(ctx context.Context, filter models.WeatherFilter) ([]models.WeatherData, error) {
	start := time.Now()
	out, err := s.next.ListWeather(ctx, filter)
	observe("weather", "list", start, err)
	return out, err
}

func (s *Instrumented) GetWeather(ctx context.Context, id int64) (models.WeatherData, error) {
	start := time.Now()
	out, err := s.next.GetWeather(ctx, id)
	observe("weather", "get", start, err)
	return out, err
}

func (s *Instrumented) CreateWeather(ctx context.Context, in models.WeatherInput) (models.WeatherData, error) {
	start := time.Now()
	out, err := s.next.CreateWeather(ctx, in)
	observe("weather", "create", start, err)
	return out, err
}

func (s *Instrumented) UpdateWeather(ctx context.Context, id int64, patch models.WeatherPatch) (models.WeatherData, error) {
	start := time.Now()
	out, err := s.next.UpdateWeather(ctx, id, patch)
	observe("weather", "update", start, err)
	return out, err
}

func (s *Instrumented) DeleteWeather(ctx context.Context, id int64) error {
	start := time.Now()
	err := s.next.DeleteWeather(ctx, id)
	observe("weather", "delete", start, err)
	return err
}

func (s *Instrumented) SummarizeWeather(ctx context.Context) ([]models.ProvinceSummary, error) {
	start := time.Now()
	out, err := s.next.SummarizeWeather(ctx)
	observe("weather", "summary", start, err)
	return out, err
}

var (
	_ Store = (*Instrumented)(nil)
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)
