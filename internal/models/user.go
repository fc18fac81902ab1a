package models

import (
	"time"

	"github.com/kelvinguchu/galacticelectricals/internal/domain"

	"gorm.io/gorm"
)

type User struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Email           string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash    string         `gorm:"size:255" json:"-"`
	Role            string         `gorm:"size:20;not null;index;default:'customer'" json:"role"` // customer | admin
	FirstName       string         `gorm:"size:100" json:"first_name"`
	LastName        string         `gorm:"size:100" json:"last_name"`
	Phone           string         `gorm:"size:20" json:"phone"`
	AddressLine1    string         `gorm:"size:255" json:"address_line1"`
	AddressLine2    string         `gorm:"size:255" json:"address_line2"`
	City            string         `gorm:"size:100" json:"city"`
	County          string         `gorm:"size:100" json:"county"`
	PostalCode      string         `gorm:"size:20" json:"postal_code"`
	Country         string         `gorm:"size:100;default:'Kenya'" json:"country"`
	EmailVerifiedAt *time.Time     `json:"email_verified_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool { return u.Role == domain.RoleAdmin }
