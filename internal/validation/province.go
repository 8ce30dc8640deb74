package validation

import "github.com/kjstillabower/climate-insights/internal/models"

type provinceCreate struct {
	Name *string `json:"name" validate:"required,min=2,max=100"`
	Code *string `json:"code" validate:"required,len=2,alpha"`
}

type provincePatch struct {
	Name *string `json:"name" validate:"omitempty,min=2,max=100"`
	Code *string `json:"code" validate:"omitempty,len=2,alpha"`
}

// ProvinceCreate validates a POST /provinces body. The code is trimmed and uppercased.
func ProvinceCreate(raw []byte) (models.ProvinceInput, Violations) {
	p, v := decode(raw, func(p *provinceCreate) {
		trim(p.Name)
		trim(p.Code)
		upper(p.Code)
	})
	if len(v) > 0 {
		return models.ProvinceInput{}, v
	}
	return models.ProvinceInput{Name: *p.Name, Code: *p.Code}, nil
}

// ProvincePatch validates a PATCH /provinces/{id} body; absent fields stay nil.
func ProvincePatch(raw []byte) (models.ProvincePatch, Violations) {
	p, v := decode(raw, func(p *provincePatch) {
		trim(p.Name)
		trim(p.Code)
		upper(p.Code)
	})
	if len(v) > 0 {
		return models.ProvincePatch{}, v
	}
	return models.ProvincePatch{Name: p.Name, Code: p.Code}, nil
}
