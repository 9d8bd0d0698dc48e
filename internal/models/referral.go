package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Referral adalah catatan komisi untuk satu transaksi sukses.
// Unique index pada TransactionID menjamin komisi dibuat paling banyak
// satu kali per transaksi, apapun urutan callback yang datang.
type Referral struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReferrerID uuid.UUID `gorm:"type:uuid;index;not null" json:"referrer_id"`
	Referrer   *User     `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"`
	ReferredID uuid.UUID `gorm:"type:uuid;index;not null" json:"referred_id"`
	Referred   *User     `gorm:"foreignKey:ReferredID" json:"referred,omitempty"`

	TransactionID    string `gorm:"type:varchar(40);uniqueIndex;not null" json:"transaction_id"`
	CommissionAmount int64  `gorm:"not null" json:"commission_amount"`
	IsPaid           bool   `gorm:"default:false;index" json:"is_paid"`

	CreatedAt time.Time `json:"created_at"`
}

func (r *Referral) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}
