package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/climate-insights/internal/models"
)

// runStoreContract exercises the behaviour every Store backend must share.
// newStore must return an empty store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	july := time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)

	t.Run("province code is unique", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateProvince(ctx, models.ProvinceInput{Name: "Ontario", Code: "ON"})
		require.NoError(t, err)

		_, err = s.CreateProvince(ctx, models.ProvinceInput{Name: "Ontario Again", Code: "ON"})

		ce, ok := AsConstraint(err)
		require.True(t, ok, "want ConstraintError, got %v", err)
		assert.Equal(t, KindUnique, ce.Kind)
		assert.Equal(t, "code", ce.Field)
		assert.Equal(t, ConstraintProvinceCode, ce.Constraint)
	})

	t.Run("province update to taken code conflicts", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateProvince(ctx, models.ProvinceInput{Name: "Ontario", Code: "ON"})
		require.NoError(t, err)
		qc, err := s.CreateProvince(ctx, models.ProvinceInput{Name: "Quebec", Code: "QC"})
		require.NoError(t, err)

		code := "ON"
		_, err = s.UpdateProvince(ctx, qc.ID, models.ProvincePatch{Code: &code})
		assert.True(t, IsUnique(err))

		same := "QC"
		got, err := s.UpdateProvince(ctx, qc.ID, models.ProvincePatch{Code: &same})
		require.NoError(t, err)
		assert.Equal(t, "QC", got.Code)
	})

	t.Run("empty patch returns current row", func(t *testing.T) {
		s := newStore(t)
		p, err := s.CreateProvince(ctx, models.ProvinceInput{Name: "Yukon", Code: "YT"})
		require.NoError(t, err)

		got, err := s.UpdateProvince(ctx, p.ID, models.ProvincePatch{})
		require.NoError(t, err)
		assert.Equal(t, p, got)

		u, err := s.CreateUser(ctx, models.UserInput{Email: "ada@example.com"})
		require.NoError(t, err)
		gotUser, err := s.UpdateUser(ctx, u.ID, models.UserPatch{})
		require.NoError(t, err)
		assert.Equal(t, u, gotUser)

		w, err := s.CreateWeather(ctx, models.WeatherInput{ProvinceID: p.ID, Date: july, Temperature: 12})
		require.NoError(t, err)
		gotWeather, err := s.UpdateWeather(ctx, w.ID, models.WeatherPatch{})
		require.NoError(t, err)
		assert.Equal(t, w.ID, gotWeather.ID)
		assert.Equal(t, 12.0, gotWeather.Temperature)
		require.NotNil(t, gotWeather.Province)
		assert.Equal(t, "YT", gotWeather.Province.Code)

		_, err = s.UpdateProvince(ctx, 999, models.ProvincePatch{})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.UpdateUser(ctx, 999, models.UserPatch{})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.UpdateWeather(ctx, 999, models.WeatherPatch{})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("provinces list by name with paging", func(t *testing.T) {
		s := newStore(t)
		for _, in := range []models.ProvinceInput{
			{Name: "Quebec", Code: "QC"},
			{Name: "Alberta", Code: "AB"},
			{Name: "Manitoba", Code: "MB"},
		} {
			_, err := s.CreateProvince(ctx, in)
			require.NoError(t, err)
		}

		all, err := s.ListProvinces(ctx, models.Page{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"AB", "MB", "QC"}, []string{all[0].Code, all[1].Code, all[2].Code})

		page, err := s.ListProvinces(ctx, models.Page{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "MB", page[0].Code)

		past, err := s.ListProvinces(ctx, models.Page{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, past)
	})

	t.Run("upsert renames by code", func(t *testing.T) {
		s := newStore(t)
		first, err := s.UpsertProvince(ctx, models.ProvinceInput{Name: "Newfoundland", Code: "NL"})
		require.NoError(t, err)

		second, err := s.UpsertProvince(ctx, models.ProvinceInput{Name: "Newfoundland and Labrador", Code: "NL"})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Newfoundland and Labrador", second.Name)
		all, err := s.ListProvinces(ctx, models.Page{})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("missing rows are ErrNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetProvince(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteProvince(ctx, 999), ErrNotFound)
		assert.ErrorIs(t, s.DeleteUser(ctx, 999), ErrNotFound)
		assert.ErrorIs(t, s.DeleteWeather(ctx, 999), ErrNotFound)
		name := "x"
		_, err = s.UpdateUser(ctx, 999, models.UserPatch{Name: &name})
		assert.ErrorIs(t, err, ErrNotFound)
		temp := 1.0
		_, err = s.UpdateWeather(ctx, 999, models.WeatherPatch{Temperature: &temp})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("user email is unique and name optional", func(t *testing.T) {
		s := newStore(t)
		u, err := s.CreateUser(ctx, models.UserInput{Email: "ada@example.com"})
		require.NoError(t, err)
		assert.Nil(t, u.Name)

		_, err = s.CreateUser(ctx, models.UserInput{Email: "ada@example.com"})
		ce, ok := AsConstraint(err)
		require.True(t, ok)
		assert.Equal(t, "email", ce.Field)

		name := "Ada Lovelace"
		got, err := s.UpdateUser(ctx, u.ID, models.UserPatch{Name: &name})
		require.NoError(t, err)
		require.NotNil(t, got.Name)
		assert.Equal(t, name, *got.Name)
		assert.Equal(t, "ada@example.com", got.Email)
	})

	t.Run("weather requires an existing province", func(t *testing.T) {
		s := newStore(t)
		_, err := s.CreateWeather(ctx, models.WeatherInput{ProvinceID: 42, Date: july, Temperature: 20})

		ce, ok := AsConstraint(err)
		require.True(t, ok, "want ConstraintError, got %v", err)
		assert.Equal(t, KindForeignKey, ce.Kind)
		assert.Equal(t, "provinceId", ce.Field)
	})

	t.Run("weather is returned with its province", func(t *testing.T) {
		s := newStore(t)
		on, err := s.CreateProvince(ctx, models.ProvinceInput{Name: "Ontario", Code: "ON"})
		require.NoError(t, err)

		w, err := s.CreateWeather(ctx, models.WeatherInput{ProvinceID: on.ID, Date: july, Temperature: 25, Precipitation: 1.5})
		require.NoError(t, err)
		require.NotNil(t, w.Province)
		assert.Equal(t, on, *w.Province)
		assert.True(t, w.Date.Equal(july))
		assert.Equal(t, time.UTC, w.Date.Location())

		got, err := s.GetWeather(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, "ON", got.Province.Code)
	})

	t.Run("weather update can move province", func(t *testing.T) {
		s := newStore(t)
		on, err := s.CreateProvince(ctx, models.ProvinceInput{Name: "Ontario", Code: "ON"})
		require.NoError(t, err)
		qc, err := s.CreateProvince(ctx, models.ProvinceInput{Name: "Quebec", Code: "QC"})
		require.NoError(t, err)
		w, err := s.CreateWeather(ctx, models.WeatherInput{ProvinceID: on.ID, Date: july, Temperature: 25})
		require.NoError(t, err)

		got, err := s.UpdateWeather(ctx, w.ID, models.WeatherPatch{ProvinceID: &qc.ID})
		require.NoError(t, err)
		assert.Equal(t, qc.ID, got.ProvinceID)
		assert.Equal(t, "QC", got.Province.Code)
		assert.Equal(t, 25.0, got.Temperature)

		missing := qc.ID + 100
		_, err = s.UpdateWeather(ctx, w.ID, models.WeatherPatch{ProvinceID: &missing})
		assert.True(t, IsForeignKey(err))
	})

	t.Run("province with weather cannot be deleted", func(t *testing.T) {
		s := newStore(t)
		on, err := s.CreateProvince(ctx, models.ProvinceInput{Name: "Ontario", Code: "ON"})
		require.NoError(t, err)
		w, err := s.CreateWeather(ctx, models.WeatherInput{ProvinceID: on.ID, Date: july, Temperature: 25})
		require.NoError(t, err)

		err = s.DeleteProvince(ctx, on.ID)
		assert.True(t, IsForeignKey(err), "want foreign-key violation, got %v", err)

		require.NoError(t, s.DeleteWeather(ctx, w.ID))
		require.NoError(t, s.DeleteProvince(ctx, on.ID))
		_, err = s.GetProvince(ctx, on.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("weather list is newest first and filterable", func(t *testing.T) {
		s := newStore(t)
		on, err := s.CreateProvince(ctx, models.ProvinceInput{Name: "Ontario", Code: "ON"})
		require.NoError(t, err)
		bc, err := s.CreateProvince(ctx, models.ProvinceInput{Name: "British Columbia", Code: "BC"})
		require.NoError(t, err)
		for i, p := range []int64{on.ID, bc.ID, on.ID} {
			_, err := s.CreateWeather(ctx, models.WeatherInput{ProvinceID: p, Date: july.AddDate(0, 0, i), Temperature: float64(i)})
			require.NoError(t, err)
		}

		all, err := s.ListWeather(ctx, models.WeatherFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.True(t, all[0].Date.After(all[1].Date))
		assert.True(t, all[1].Date.After(all[2].Date))

		onOnly, err := s.ListWeather(ctx, models.WeatherFilter{ProvinceID: &on.ID})
		require.NoError(t, err)
		require.Len(t, onOnly, 2)
		for _, w := range onOnly {
			assert.Equal(t, on.ID, w.ProvinceID)
		}

		limited, err := s.ListWeather(ctx, models.WeatherFilter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, all[0].ID, limited[0].ID)
	})

	t.Run("summary aggregates per province", func(t *testing.T) {
		s := newStore(t)
		on, err := s.CreateProvince(ctx, models.ProvinceInput{Name: "Ontario", Code: "ON"})
		require.NoError(t, err)
		ab, err := s.CreateProvince(ctx, models.ProvinceInput{Name: "Alberta", Code: "AB"})
		require.NoError(t, err)
		_, err = s.CreateProvince(ctx, models.ProvinceInput{Name: "Nunavut", Code: "NU"})
		require.NoError(t, err)
		for _, in := range []models.WeatherInput{
			{ProvinceID: on.ID, Date: july, Temperature: 20, Precipitation: 1},
			{ProvinceID: on.ID, Date: july.AddDate(0, 0, 1), Temperature: 30, Precipitation: 2.5},
			{ProvinceID: ab.ID, Date: july, Temperature: 27},
		} {
			_, err := s.CreateWeather(ctx, in)
			require.NoError(t, err)
		}

		sums, err := s.SummarizeWeather(ctx)
		require.NoError(t, err)
		require.Len(t, sums, 2)
		assert.Equal(t, "AB", sums[0].Code)
		assert.Equal(t, 1, sums[0].Count)
		assert.InDelta(t, 27.0, sums[0].AvgTemperature, 1e-9)
		assert.Equal(t, "ON", sums[1].Code)
		assert.Equal(t, 2, sums[1].Count)
		assert.InDelta(t, 25.0, sums[1].AvgTemperature, 1e-9)
		assert.InDelta(t, 3.5, sums[1].TotalPrecipitation, 1e-9)
	})
}
