package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name  string    `gorm:"not null" json:"name"`
	Email string    `gorm:"uniqueIndex;not null" json:"email"`
	Phone string    `gorm:"type:varchar(30)" json:"phone"`

	Password string `gorm:"not null" json:"-"`
	Role     Role   `gorm:"type:varchar(20);not null;index" json:"role"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	// Kode referral milik user ini, dibagikan ke calon user lain.
	ReferralCode string `gorm:"type:varchar(12);uniqueIndex;not null" json:"referral_code"`

	// Siapa yang mengajak user ini. Tersimpan sekali saat registrasi.
	ReferredByID *uuid.UUID `gorm:"type:uuid;index" json:"referred_by_id,omitempty"`
	ReferredBy   *User      `gorm:"foreignKey:ReferredByID" json:"referred_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}
