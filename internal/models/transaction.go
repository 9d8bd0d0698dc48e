package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusSuccess    TransactionStatus = "success"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
)

// ValidTransactionStatus melindungi callback dari nilai status liar.
func ValidTransactionStatus(s TransactionStatus) bool {
	switch s {
	case TransactionStatusPending, TransactionStatusProcessing,
		TransactionStatusSuccess, TransactionStatusFailed,
		TransactionStatusCancelled:
		return true
	}
	return false
}

type Transaction struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ProductID uint      `gorm:"index;not null" json:"product_id"`
	Product   *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`

	// TransactionID adalah kunci publik transaksi (dipakai provider saat
	// callback). ID internal tidak pernah keluar dari sistem.
	TransactionID         string  `gorm:"type:varchar(40);uniqueIndex;not null" json:"transaction_id"`
	ExternalTransactionID *string `gorm:"type:varchar(64)" json:"external_transaction_id,omitempty"`

	Amount int64 `gorm:"not null" json:"amount"` // nilai/nominal yang dibeli
	Price  int64 `gorm:"not null" json:"price"`  // harga yang ditagihkan

	Status TransactionStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	CustomerNo   string `gorm:"type:varchar(30)" json:"customer_no"`
	CustomerName string `gorm:"type:varchar(120)" json:"customer_name"`

	SerialNumber     *string        `gorm:"type:varchar(120)" json:"serial_number,omitempty"`
	ProviderResponse datatypes.JSON `json:"provider_response,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}
