package validation

import (
	"time"

	"github.com/kjstillabower/climate-insights/internal/models"
)

type weatherCreate struct {
	ProvinceID    *int64   `json:"provinceId" validate:"required,gt=0"`
	Date          *string  `json:"date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Temperature   *float64 `json:"temperature" validate:"required,gte=-50,lte=50"`
	Precipitation *float64 `json:"precipitation" validate:"required,gte=0"`
}

type weatherPatch struct {
	ProvinceID    *int64   `json:"provinceId" validate:"omitempty,gt=0"`
	Date          *string  `json:"date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Temperature   *float64 `json:"temperature" validate:"omitempty,gte=-50,lte=50"`
	Precipitation *float64 `json:"precipitation" validate:"omitempty,gte=0"`
}

// WeatherCreate validates a POST /weatherdata body. Whether provinceId refers to an
// existing province is checked later, against the store.
func WeatherCreate(raw []byte) (models.WeatherInput, Violations) {
	p, v := decode(raw, func(p *weatherCreate) { trim(p.Date) })
	if len(v) > 0 {
		return models.WeatherInput{}, v
	}
	date, err := parseDate(*p.Date)
	if err != nil {
		return models.WeatherInput{}, Field("date", "must be an ISO 8601 timestamp")
	}
	return models.WeatherInput{
		ProvinceID:    *p.ProvinceID,
		Date:          date,
		Temperature:   *p.Temperature,
		Precipitation: *p.Precipitation,
	}, nil
}

func WeatherPatch(raw []byte) (models.WeatherPatch, Violations) {
	p, v := decode(raw, func(p *weatherPatch) { trim(p.Date) })
	if len(v) > 0 {
		return models.WeatherPatch{}, v
	}
	out := models.WeatherPatch{
		ProvinceID:    p.ProvinceID,
		Temperature:   p.Temperature,
		Precipitation: p.Precipitation,
	}
	if p.Date != nil {
		date, err := parseDate(*p.Date)
		if err != nil {
			return models.WeatherPatch{}, Field("date", "must be an ISO 8601 timestamp")
		}
		out.Date = &date
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
