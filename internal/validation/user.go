package validation

import "github.com/kjstillabower/climate-insights/internal/models"

type userCreate struct {
	Email *string `json:"email" validate:"required,max=255,email"`
	Name  *string `json:"name" validate:"omitempty,max=255"`
}

type userPatch struct {
	Email *string `json:"email" validate:"omitempty,max=255,email"`
	Name  *string `json:"name" validate:"omitempty,max=255"`
}

func normalizeUser(email, name *string) {
	trim(email)
	trim(name)
}

func UserCreate(raw []byte) (models.UserInput, Violations) {
	p, v := decode(raw, func(p *userCreate) { normalizeUser(p.Email, p.Name) })
	if len(v) > 0 {
		return models.UserInput{}, v
	}
	return models.UserInput{Email: *p.Email, Name: p.Name}, nil
}

func UserPatch(raw []byte) (models.UserPatch, Violations) {
	p, v := decode(raw, func(p *userPatch) { normalizeUser(p.Email, p.Name) })
	if len(v) > 0 {
		return models.UserPatch{}, v
	}
	return models.UserPatch{Email: p.Email, Name: p.Name}, nil
}
