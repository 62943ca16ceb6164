package model

import "time"

type User struct {
	ID        string
	Username  string
	Name      string
	Email     string
	Bio       string
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileComplete reports whether the public booking page can be shown.
func (u *User) ProfileComplete() bool {
	return u.Name != "" && u.Bio != "" && u.AvatarURL != ""
}

// Account links a user to an external identity provider. Token fields hold
// plaintext in memory; the store seals them at rest.
type Account struct {
	ID                string
	UserID            string
	Provider          string
	ProviderAccountID string
	AccessToken       string
	RefreshToken      string
	ExpiresAt         *time.Time
	Scope             string
	TokenType         string
	IDToken           string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// WeeklyInterval is the window, in minutes from midnight, during which a user
// accepts bookings on one weekday (0 = Sunday).
type WeeklyInterval struct {
	UserID       string
	WeekDay      int
	StartMinutes int
	EndMinutes   int
}

type Booking struct {
	ID           string
	UserID       string
	Name         string
	Email        string
	Observations string
	Date         time.Time
	CreatedAt    time.Time
}

type OutboxEvent struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}
