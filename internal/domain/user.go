// Package domain defines the persistence models for accounts, conversation
// turns and idempotency records. These types are mapped with GORM and shared
// across the repository, service and HTTP layers.
package domain

import "time"

// User is a registered account. The normalized email is the identity used by
// the chat endpoints.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Email: unique, stored trimmed and case-folded.
//   - Name: display name chosen at signup.
//   - PasswordHash: bcrypt hash; never serialized.
//   - Avatar: selected avatar path from the catalogue (may be empty).
//   - EmailVerified: flips to true exactly once, when the token is consumed.
//   - VerificationToken: pending token; NULL once consumed.
type User struct {
	ID                string    `json:"id"             gorm:"type:char(36);primaryKey"`
	Email             string    `json:"email"          gorm:"type:varchar(320);not null;uniqueIndex:ux_users_email"`
	Name              string    `json:"name"           gorm:"type:varchar(255);not null;default:''"`
	PasswordHash      string    `json:"-"              gorm:"type:varchar(255);not null"`
	Avatar            string    `json:"avatar"         gorm:"type:varchar(255);not null;default:''"`
	EmailVerified     bool      `json:"email_verified" gorm:"not null;default:false"`
	VerificationToken *string   `json:"-"              gorm:"type:varchar(128);uniqueIndex:ux_users_verification_token"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }
