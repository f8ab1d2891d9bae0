package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string
type WaContactOpt string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"

	WaContactOff           WaContactOpt = "OFF"
	WaContactFollowersOnly WaContactOpt = "FOLLOWERS_ONLY"
	WaContactEveryone      WaContactOpt = "EVERYONE"
)

// Preference keys stored in User.Preferences
const (
	PrefModerationUpdates = "moderationUpdates"
	PrefFCMToken          = "fcm_token"
)

// JSONB Types for GORM
type JSONStringArray []string

func (a *JSONStringArray) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	}
	return errors.New("type assertion to []byte failed")
}

func (a JSONStringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	return string(b), err
}

type JSONMap map[string]interface{}

func (m *JSONMap) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return errors.New("type assertion to []byte failed")
}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

// User is a profile row. Accounts and sessions live with the auth provider;
// this service only reads role and notification preferences.
type User struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Handle       string       `gorm:"size:64;uniqueIndex;not null" json:"handle"`
	DisplayName  string       `gorm:"size:255;not null" json:"display_name"`
	AvatarURL    string       `gorm:"type:text" json:"avatar_url,omitempty"`
	Bio          string       `gorm:"type:text" json:"bio,omitempty"`
	IsPrivate    bool         `gorm:"default:false" json:"is_private"`
	WaContactOpt WaContactOpt `gorm:"size:20;default:'OFF'" json:"wa_contact_opt"`
	Role         Role         `gorm:"size:20;default:'user';index" json:"role"`

	Preferences JSONMap `gorm:"type:jsonb" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "profiles"
}

// BeforeCreate hook to generate UUID if not present
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// WantsModerationUpdates defaults to true when the preference was never set.
func (u *User) WantsModerationUpdates() bool {
	v, ok := u.Preferences[PrefModerationUpdates].(bool)
	return !ok || v
}

func (u *User) FCMToken() string {
	tok, _ := u.Preferences[PrefFCMToken].(string)
	return tok
}
