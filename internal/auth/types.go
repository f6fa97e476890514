package auth

import "time"

// User is a member of the organization. Emails are unique and compared exactly as stored.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is a user together with the roles it holds.
type Member struct {
	User
	Roles []Role `json:"roles"`
}

// Session is a persisted login. ID is the digest of the secret held by the client.
type Session struct {
	ID        string    `json:"-"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// EmailToken is a pending single-use login token. ID is the digest of the secret
// that was sent out by mail.
type EmailToken struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

// UserInput carries the editable fields of a user.
type UserInput struct {
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}
