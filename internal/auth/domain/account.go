package domain

import "time"

// Account is a registered user. Handle is the normalized sign-in name and is
// unique across accounts; ID never changes once assigned.
type Account struct {
	ID           string    `json:"id" gorm:"primaryKey" firestore:"-"`
	Handle       string    `json:"handle" gorm:"uniqueIndex;not null" firestore:"username"`
	DisplayName  string    `json:"display_name" firestore:"displayName"`
	PasswordHash string    `json:"-" firestore:"passwordHash"` // Never return password in JSON
	CreatedAt    time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt    time.Time `json:"updated_at" firestore:"updatedAt"`
}

func (Account) TableName() string { return "accounts" }

// Profile is the public view of an account shown to other users.
type Profile struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
}

func (a *Account) Profile() Profile {
	return Profile{ID: a.ID, Handle: a.Handle, DisplayName: a.DisplayName}
}

type RefreshToken struct {
	Token     string    `json:"token" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index;not null"`
	ExpiresAt time.Time `json:"expires_at"`
}
