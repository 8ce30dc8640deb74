package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/kjstillabower/climate-insights/internal/models"
)

// Memory is an in-process Store with the same ordering and constraint semantics as
// Postgres. Used by handler tests and by store.backend=memory.
type Memory struct {
	mu        sync.RWMutex
	provinces map[int64]models.Province
	users     map[int64]models.User
	weather   map[int64]models.WeatherData
	nextID    map[string]int64
}

func NewMemory() *Memory {
	return &Memory{
		provinces: make(map[int64]models.Province),
		users:     make(map[int64]models.User),
		weather:   make(map[int64]models.WeatherData),
		nextID:    make(map[string]int64),
	}
}

var errMemoryConstraint = errors.New("memory store constraint")

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() error { return nil }

func (m *Memory) seq(table string) int64 {
	m.nextID[table]++
	return m.nextID[table]
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// Provinces

func (m *Memory) codeTaken(code string, except int64) bool {
	for id, p := range m.provinces {
		if id != except && p.Code == code {
			return true
		}
	}
	return false
}

func (m *Memory) ListProvinces(ctx context.Context, page models.Page) ([]models.Province, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Province, 0, len(m.provinces))
	for _, p := range m.provinces {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return window(out, page.Limit, page.Offset), nil
}

func (m *Memory) GetProvince(ctx context.Context, id int64) (models.Province, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.provinces[id]
	if !ok {
		return models.Province{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) CreateProvince(ctx context.Context, in models.ProvinceInput) (models.Province, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codeTaken(in.Code, 0) {
		return models.Province{}, newConstraintError(KindUnique, ConstraintProvinceCode, errMemoryConstraint)
	}
	p := models.Province{ID: m.seq("provinces"), Name: in.Name, Code: in.Code}
	m.provinces[p.ID] = p
	return p, nil
}

func (m *Memory) UpdateProvince(ctx context.Context, id int64, patch models.ProvincePatch) (models.Province, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.provinces[id]
	if !ok {
		return models.Province{}, ErrNotFound
	}
	if patch.Empty() {
		return p, nil
	}
	if patch.Code != nil && m.codeTaken(*patch.Code, id) {
		return models.Province{}, newConstraintError(KindUnique, ConstraintProvinceCode, errMemoryConstraint)
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Code != nil {
		p.Code = *patch.Code
	}
	m.provinces[id] = p
	return p, nil
}

func (m *Memory) DeleteProvince(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.provinces[id]; !ok {
		return ErrNotFound
	}
	for _, w := range m.weather {
		if w.ProvinceID == id {
			return newConstraintError(KindForeignKey, ConstraintWeatherProvince, errMemoryConstraint)
		}
	}
	delete(m.provinces, id)
	return nil
}

func (m *Memory) UpsertProvince(ctx context.Context, in models.ProvinceInput) (models.Province, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.provinces {
		if p.Code == in.Code {
			p.Name = in.Name
			m.provinces[id] = p
			return p, nil
		}
	}
	p := models.Province{ID: m.seq("provinces"), Name: in.Name, Code: in.Code}
	m.provinces[p.ID] = p
	return p, nil
}

// Users

func (m *Memory) emailTaken(email string, except int64) bool {
	for id, u := range m.users {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

func copyUser(u models.User) models.User {
	if u.Name != nil {
		name := *u.Name
		u.Name = &name
	}
	return u
}

func (m *Memory) ListUsers(ctx context.Context, page models.Page) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return window(out, page.Limit, page.Offset), nil
}

func (m *Memory) GetUser(ctx context.Context, id int64) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return copyUser(u), nil
}

func (m *Memory) CreateUser(ctx context.Context, in models.UserInput) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailTaken(in.Email, 0) {
		return models.User{}, newConstraintError(KindUnique, ConstraintUserEmail, errMemoryConstraint)
	}
	u := copyUser(models.User{ID: m.seq("users"), Email: in.Email, Name: in.Name})
	m.users[u.ID] = u
	return copyUser(u), nil
}

func (m *Memory) UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	if patch.Empty() {
		return copyUser(u), nil
	}
	if patch.Email != nil && m.emailTaken(*patch.Email, id) {
		return models.User{}, newConstraintError(KindUnique, ConstraintUserEmail, errMemoryConstraint)
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.Name != nil {
		name := *patch.Name
		u.Name = &name
	}
	m.users[id] = u
	return copyUser(u), nil
}

func (m *Memory) DeleteUser(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

// Weather data

// joined attaches a copy of the referenced province. Callers hold m.mu.
func (m *Memory) joined(w models.WeatherData) models.WeatherData {
	p := m.provinces[w.ProvinceID]
	w.Province = &p
	return w
}

func (m *Memory) ListWeather(ctx context.Context, filter models.WeatherFilter) ([]models.WeatherData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.WeatherData, 0, len(m.weather))
	for _, w := range m.weather {
		if filter.ProvinceID != nil && w.ProvinceID != *filter.ProvinceID {
			continue
		}
		out = append(out, m.joined(w))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return window(out, filter.Limit, filter.Offset), nil
}

func (m *Memory) GetWeather(ctx context.Context, id int64) (models.WeatherData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.weather[id]
	if !ok {
		return models.WeatherData{}, ErrNotFound
	}
	return m.joined(w), nil
}

func (m *Memory) CreateWeather(ctx context.Context, in models.WeatherInput) (models.WeatherData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.provinces[in.ProvinceID]; !ok {
		return models.WeatherData{}, newConstraintError(KindForeignKey, ConstraintWeatherProvince, errMemoryConstraint)
	}
	w := models.WeatherData{
		ID:            m.seq("weather_data"),
		ProvinceID:    in.ProvinceID,
		Date:          in.Date.UTC(),
		Temperature:   in.Temperature,
		Precipitation: in.Precipitation,
	}
	m.weather[w.ID] = w
	return m.joined(w), nil
}

func (m *Memory) UpdateWeather(ctx context.Context, id int64, patch models.WeatherPatch) (models.WeatherData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.weather[id]
	if !ok {
		return models.WeatherData{}, ErrNotFound
	}
	if patch.Empty() {
		return m.joined(w), nil
	}
	if patch.ProvinceID != nil {
		if _, ok := m.provinces[*patch.ProvinceID]; !ok {
			return models.WeatherData{}, newConstraintError(KindForeignKey, ConstraintWeatherProvince, errMemoryConstraint)
		}
		w.ProvinceID = *patch.ProvinceID
	}
	if patch.Date != nil {
		w.Date = patch.Date.UTC()
	}
	if patch.Temperature != nil {
		w.Temperature = *patch.Temperature
	}
	if patch.Precipitation != nil {
		w.Precipitation = *patch.Precipitation
	}
	m.weather[id] = w
	return m.joined(w), nil
}

func (m *Memory) DeleteWeather(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.weather[id]; !ok {
		return ErrNotFound
	}
	delete(m.weather, id)
	return nil
}

func (m *Memory) SummarizeWeather(ctx context.Context) ([]models.ProvinceSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byProvince := make(map[int64]*models.ProvinceSummary)
	for _, w := range m.weather {
		s, ok := byProvince[w.ProvinceID]
		if !ok {
			p := m.provinces[w.ProvinceID]
			s = &models.ProvinceSummary{ProvinceID: p.ID, Name: p.Name, Code: p.Code}
			byProvince[w.ProvinceID] = s
		}
		s.Count++
		s.AvgTemperature += w.Temperature
		s.TotalPrecipitation += w.Precipitation
	}
	out := make([]models.ProvinceSummary, 0, len(byProvince))
	for _, s := range byProvince {
		s.AvgTemperature /= float64(s.Count)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}
