package models

import "time"

// WeatherData is a dated observation tied to one Province. Province is populated
// whenever the record is read back from the store.
type WeatherData struct {
	ID            int64     `json:"id"`
	ProvinceID    int64     `json:"provinceId"`
	Date          time.Time `json:"date"`
	Temperature   float64   `json:"temperature"`
	Precipitation float64   `json:"precipitation"`
	Province      *Province `json:"province,omitempty"`
}

type WeatherInput struct {
	ProvinceID    int64
	Date          time.Time
	Temperature   float64
	Precipitation float64
}

type WeatherPatch struct {
	ProvinceID    *int64
	Date          *time.Time
	Temperature   *float64
	Precipitation *float64
}

func (p WeatherPatch) Empty() bool {
	return p.ProvinceID == nil && p.Date == nil && p.Temperature == nil && p.Precipitation == nil
}

// WeatherFilter narrows a weather listing. Limit 0 means no limit.
type WeatherFilter struct {
	ProvinceID *int64
	Limit      int
	Offset     int
}

// ProvinceSummary aggregates the observations recorded for one province.
type ProvinceSummary struct {
	ProvinceID         int64   `json:"provinceId"`
	Name               string  `json:"name"`
	Code               string  `json:"code"`
	Count              int     `json:"count"`
	AvgTemperature     float64 `json:"avgTemperature"`
	TotalPrecipitation float64 `json:"totalPrecipitation"`
}
