// Package export renders weather observations as an XLSX workbook.
package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kjstillabower/climate-insights/internal/models"
)

const (
	WeatherSheet = "Weather Data"
	SummarySheet = "Summary"

	// ContentType is the media type of the rendered workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// MaxRows is the most observations one sheet holds below its header row.
	MaxRows = excelize.TotalRows - 1
)

var (
	weatherHeaders = []string{"ID", "Province", "Code", "Date (UTC)", "Temperature (°C)", "Precipitation (mm)"}
	summaryHeaders = []string{"Code", "Province", "Observations", "Avg Temperature (°C)", "Total Precipitation (mm)"}
)

// Workbook builds the export: one row per observation on WeatherSheet and one row per
// province on SummarySheet. generatedAt is stamped into the document properties.
func Workbook(rows []models.WeatherData, summary []models.ProvinceSummary, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Climate Insights - Weather Data",
		Creator: "climate-insights",
		Created: generatedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		return nil, fmt.Errorf("set document properties: %w", err)
	}

	if err := f.SetSheetName("Sheet1", WeatherSheet); err != nil {
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}
	if err := writeWeatherSheet(f, rows); err != nil {
		return nil, fmt.Errorf("weather sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeSummarySheet(f, summary); err != nil {
		return nil, fmt.Errorf("summary sheet: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeWeatherSheet(f *excelize.File, rows []models.WeatherData) error {
	if err := writeRow(f, WeatherSheet, 1, toCells(weatherHeaders)); err != nil {
		return err
	}
	for i, wd := range rows {
		var name, code string
		if wd.Province != nil {
			name, code = wd.Province.Name, wd.Province.Code
		}
		cells := []interface{}{
			wd.ID, name, code,
			wd.Date.UTC().Format("2006-01-02 15:04"),
			wd.Temperature, wd.Precipitation,
		}
		if err := writeRow(f, WeatherSheet, i+2, cells); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(WeatherSheet, "B", "B", 28); err != nil {
		return err
	}
	return f.SetColWidth(WeatherSheet, "D", "F", 20)
}

func writeSummarySheet(f *excelize.File, summary []models.ProvinceSummary) error {
	if err := writeRow(f, SummarySheet, 1, toCells(summaryHeaders)); err != nil {
		return err
	}
	for i, s := range summary {
		cells := []interface{}{s.Code, s.Name, s.Count, s.AvgTemperature, s.TotalPrecipitation}
		if err := writeRow(f, SummarySheet, i+2, cells); err != nil {
			return err
		}
	}
	return f.SetColWidth(SummarySheet, "B", "E", 24)
}

func writeRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
