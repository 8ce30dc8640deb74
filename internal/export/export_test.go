package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kjstillabower/climate-insights/internal/models"
)

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWorkbook_WeatherRows(t *testing.T) {
	on := &models.Province{ID: 1, Name: "Ontario", Code: "ON"}
	rows := []models.WeatherData{
		{ID: 2, ProvinceID: 1, Date: time.Date(2025, 7, 3, 12, 0, 0, 0, time.UTC), Temperature: 26.5, Precipitation: 1.2, Province: on},
		{ID: 1, ProvinceID: 1, Date: time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC), Temperature: 25, Precipitation: 0, Province: on},
	}

	data, err := Workbook(rows, nil, time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	f := openWorkbook(t, data)
	got, err := f.GetRows(WeatherSheet)
	require.NoError(t, err)
	require.Len(t, got, 3, "header plus one row per observation")
	assert.Equal(t, weatherHeaders, got[0])
	assert.Equal(t, []string{"2", "Ontario", "ON", "2025-07-03 12:00", "26.5", "1.2"}, got[1])
	assert.Equal(t, []string{"1", "Ontario", "ON", "2025-07-02 00:00", "25", "0"}, got[2])
}

func TestWorkbook_SummarySheet(t *testing.T) {
	summary := []models.ProvinceSummary{
		{ProvinceID: 2, Name: "Alberta", Code: "AB", Count: 2, AvgTemperature: 26, TotalPrecipitation: 3.5},
		{ProvinceID: 1, Name: "Ontario", Code: "ON", Count: 1, AvgTemperature: 25, TotalPrecipitation: 0},
	}

	data, err := Workbook(nil, summary, time.Now())
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{WeatherSheet, SummarySheet}, f.GetSheetList())

	got, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, summaryHeaders, got[0])
	assert.Equal(t, []string{"AB", "Alberta", "2", "26", "3.5"}, got[1])
}

func TestWorkbook_EmptyHasHeadersOnly(t *testing.T) {
	data, err := Workbook(nil, nil, time.Now())
	require.NoError(t, err)

	f := openWorkbook(t, data)
	got, err := f.GetRows(WeatherSheet)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestWorkbook_MissingProvinceLeavesCellsBlank(t *testing.T) {
	rows := []models.WeatherData{{ID: 7, ProvinceID: 9, Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Temperature: -3}}

	data, err := Workbook(rows, nil, time.Now())
	require.NoError(t, err)

	f := openWorkbook(t, data)
	name, err := f.GetCellValue(WeatherSheet, "B2")
	require.NoError(t, err)
	assert.Empty(t, name)
	temp, err := f.GetCellValue(WeatherSheet, "E2")
	require.NoError(t, err)
	assert.Equal(t, "-3", temp)
}
