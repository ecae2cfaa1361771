package models

// User represents a registered account holder
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	// Not serialized
	PasswordHash string `json:"-"`
}
