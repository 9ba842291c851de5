package audit

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// SessionEvent is one journal row: a session state change and who caused it
type SessionEvent struct {
	BaseModel
	Kind       string    `json:"kind" gorm:"type:varchar(16);not null;index"`
	Scope      string    `json:"scope" gorm:"type:varchar(16)"`
	Email      string    `json:"email" gorm:"type:varchar(255);index"`
	Role       string    `json:"role" gorm:"type:varchar(32)"`
	UserID     string    `json:"user_id" gorm:"type:varchar(64)"`
	Authorised bool      `json:"authenticated" gorm:"not null;default:false"`
	OccurredAt time.Time `json:"occurred_at" gorm:"not null;index"`

	// Where the change came from
	Client    string `json:"client" gorm:"type:varchar(16)"`
	RemoteIP  string `json:"remote_ip" gorm:"type:varchar(64)"`
	UserAgent string `json:"user_agent" gorm:"type:text"`
}
