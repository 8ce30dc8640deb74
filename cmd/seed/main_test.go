package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/climate-insights/internal/models"
	"github.com/kjstillabower/climate-insights/internal/store"
)

func TestSeed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	n, err := seed(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 13, n)

	provinces, err := st.ListProvinces(ctx, models.Page{})
	require.NoError(t, err)
	require.Len(t, provinces, 13)
	assert.Equal(t, "Alberta", provinces[0].Name, "ordered by name")

	weather, err := st.ListWeather(ctx, models.WeatherFilter{})
	require.NoError(t, err)
	require.Len(t, weather, 13)
	for _, w := range weather {
		assert.True(t, w.Date.Equal(seedDate))
		assert.Zero(t, w.Precipitation)
	}
}

func TestSeed_RerunUpsertsProvinces(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	_, err := st.CreateProvince(ctx, models.ProvinceInput{Name: "Ontario (old)", Code: "ON"})
	require.NoError(t, err)

	_, err = seed(ctx, st)
	require.NoError(t, err)
	_, err = seed(ctx, st)
	require.NoError(t, err)

	provinces, err := st.ListProvinces(ctx, models.Page{})
	require.NoError(t, err)
	assert.Len(t, provinces, 13)

	on, err := st.GetProvince(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ontario", on.Name)

	summary, err := st.SummarizeWeather(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 13)
	for _, s := range summary {
		assert.Equal(t, 2, s.Count, s.Code)
	}
}
