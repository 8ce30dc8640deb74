package models

// Page bounds a listing. Limit 0 means no limit.
type Page struct {
	Limit  int
	Offset int
}
