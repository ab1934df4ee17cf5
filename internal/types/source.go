package types

import (
	"gorm.io/gorm"
	"time"
)

// The records below belong to the repository application itself. The backup
// subsystem only reads them.
type (
	Document struct {
		ID        uint           `json:"id" gorm:"primaryKey"`
		Title     string         `json:"title"`
		FileKey   string         `json:"file_key"`
		FileName  string         `json:"file_name"`
		CreatedAt time.Time      `json:"created_at"`
		UpdatedAt time.Time      `json:"updated_at"`
		DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
	}

	User struct {
		ID              uint           `json:"id" gorm:"primaryKey"`
		Name            string         `json:"name"`
		Email           string         `json:"email"`
		Role            string         `json:"role"`
		ProfileImageKey string         `json:"profile_image_key"`
		CreatedAt       time.Time      `json:"created_at"`
		UpdatedAt       time.Time      `json:"updated_at"`
		DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
	}

	Staff struct {
		ID         uint      `json:"id" gorm:"primaryKey"`
		UserID     uint      `json:"user_id"`
		Department string    `json:"department"`
		Position   string    `json:"position"`
		CreatedAt  time.Time `json:"created_at"`
		UpdatedAt  time.Time `json:"updated_at"`
	}
)

func (Staff) TableName() string {
	return "staff"
}
