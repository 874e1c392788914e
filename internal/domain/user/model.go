package user

import "time"

// User is the identity a request acts as. Anonymous users are identified by
// a device id.
type User struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
	Anonymous bool
}

type Profile struct {
	UserID     string    `gorm:"type:text;primaryKey"`
	Email      *string   `gorm:"type:text"`
	AvatarURL  *string   `gorm:"type:text"`
	Anonymous  bool      `gorm:"not null;default:false"`
	LastSeenAt time.Time `gorm:"not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

func (Profile) TableName() string {
	return "owner_profiles"
}
