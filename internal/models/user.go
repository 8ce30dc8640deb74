package models

// User is an application-level user record. It is not the identity provider's account.
type User struct {
	ID    int64   `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name"`
}

type UserInput struct {
	Email string
	Name  *string
}

type UserPatch struct {
	Email *string
	Name  *string
}

func (p UserPatch) Empty() bool {
	return p.Email == nil && p.Name == nil
}
