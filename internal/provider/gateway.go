package provider

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// OrderState adalah hasil klasifikasi respon provider.
type OrderState string

const (
	StateSuccess OrderState = "success"
	StatePending OrderState = "pending"
	StateFailed  OrderState = "failed"
)

// Sentinel dari provider. response_code "OK" menandakan request diterima;
// field status memakai istilah bahasa Indonesia.
const (
	ResponseCodeOK = "OK"
	statusSuccess  = "sukses"
	statusPending  = "pending"
)

// ServiceEntry adalah satu item price-list dari provider.
type ServiceEntry struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Brand     string `json:"brand"`
	Type      string `json:"type"` // fixed | range
	Price     int64  `json:"price"`
	BasePrice int64  `json:"base_price"`
	MinAmount int64  `json:"min_amount"`
	MaxAmount int64  `json:"max_amount"`
	Status    string `json:"status"` // available | unavailable
}

type OrderRequest struct {
	RefID      string `json:"ref_id"`
	SKU        string `json:"sku"`
	CustomerNo string `json:"customer_no"`
	Amount     int64  `json:"amount"`
}

// OrderResult adalah bentuk ternormalisasi hasil place-order / check-status.
type OrderResult struct {
	RefID        string `json:"ref_id"`
	ProviderRef  string `json:"provider_ref"`
	Status       string `json:"status"`
	SerialNumber string `json:"sn"`
	Message      string `json:"message"`
	ResponseCode string `json:"response_code"`
	Raw          []byte `json:"-"`
}

// State mengklasifikasikan respon provider. Status di luar sentinel yang
// dikenal dianggap gagal kecuali response code masih "OK" (provider masih
// berhutang callback final).
func (r *OrderResult) State() OrderState {
	switch strings.ToLower(strings.TrimSpace(r.Status)) {
	case statusSuccess:
		return StateSuccess
	case statusPending:
		return StatePending
	}
	if r.ResponseCode != ResponseCodeOK {
		return StateFailed
	}
	return StatePending
}

// Gateway adalah batas keluar ke provider top-up. Engine transaksi tidak
// pernah tahu implementasi mana yang aktif (HTTP vs mock).
type Gateway interface {
	PriceList(ctx context.Context) ([]ServiceEntry, error)
	CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	CheckStatus(ctx context.Context, refID string) (*OrderResult, error)
}

// Signature menghasilkan digest hex 32 karakter untuk autentikasi request
// dan verifikasi callback: md5(username + apiKey + ref).
func Signature(username, apiKey, ref string) string {
	sum := md5.Sum([]byte(username + apiKey + ref))
	return hex.EncodeToString(sum[:])
}
