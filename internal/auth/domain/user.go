package domain

import "time"

// User is the account record owned by the user store. Email is unique
// within the store.
type User struct {
	ID           string
	Email        string
	PasswordHash string // argon2id encoded
	DisplayName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the client-facing shape of a user. It exists so the
// credential hash can never accidentally serialize into a response body.
type PublicUser struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Public strips everything a client must not see.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}
