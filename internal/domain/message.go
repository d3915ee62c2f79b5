package domain

import "time"

// Turn roles. The set is closed; transient client states such as a typing
// indicator are never persisted.
const (
	RoleUser = "user"
	RoleAI   = "ai"
)

// ValidRole reports whether r is a persistable turn role.
func ValidRole(r string) bool { return r == RoleUser || r == RoleAI }

// ChatMessage is one immutable conversation turn owned by a user.
//
// Turns are ordered by (CreatedAt, Seq). Seq is assigned by the repository
// and is strictly increasing within a process, so two turns written in the
// same clock tick still sort in insertion order.
type ChatMessage struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"-"          gorm:"type:char(36);not null;index:idx_user_turns,priority:1"`
	Role      string    `json:"role"       gorm:"type:varchar(8);not null;check:chk_chat_messages_role,role IN ('user','ai')"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createdAt"  gorm:"not null;index:idx_user_turns,priority:2"`
	Seq       int64     `json:"-"          gorm:"not null;index:idx_user_turns,priority:3"`

	// User owns the turn; turns follow their account on delete.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chat_messages" }
