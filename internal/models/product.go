package models

import "time"

type ProductCategory string

const (
	CategoryMobileCredit ProductCategory = "mobile_credit"
	CategoryDataPackage  ProductCategory = "data_package"
	CategoryPLNToken     ProductCategory = "pln_token"
	CategoryGameVoucher  ProductCategory = "game_voucher"
	CategoryOther        ProductCategory = "other"
)

type DenominationType string

const (
	DenominationFixed DenominationType = "fixed"
	DenominationRange DenominationType = "range"
)

// Product adalah entri katalog hasil sinkronisasi dari provider.
// Read-only bagi alur transaksi.
type Product struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	SKU  string `gorm:"type:varchar(50);uniqueIndex;not null" json:"sku"`
	Name string `gorm:"not null" json:"name"`

	Category ProductCategory `gorm:"type:varchar(20);index;not null" json:"category"`
	Brand    string          `gorm:"type:varchar(80)" json:"brand"`

	Price     int64 `gorm:"not null" json:"price"`      // harga jual ke customer
	BasePrice int64 `gorm:"not null" json:"base_price"` // harga modal dari provider

	IsActive bool `gorm:"default:true;index" json:"is_active"`

	DenominationType DenominationType `gorm:"type:varchar(10);default:'fixed'" json:"denomination_type"`
	MinAmount        int64            `json:"min_amount"`
	MaxAmount        int64            `json:"max_amount"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
