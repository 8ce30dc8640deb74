package models

// Province is a first-level administrative region with a unique two-letter code.
type Province struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// ProvinceInput is a validated, normalized province payload for create.
type ProvinceInput struct {
	Name string
	Code string
}

// ProvincePatch carries the fields of a partial province update; nil means unchanged.
type ProvincePatch struct {
	Name *string
	Code *string
}

// Empty reports whether the patch changes nothing.
func (p ProvincePatch) Empty() bool {
	return p.Name == nil && p.Code == nil
}
