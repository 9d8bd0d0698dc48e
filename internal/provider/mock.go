package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
)

// Mock adalah Gateway tanpa jaringan untuk pengembangan lokal dan test.
// Default-nya deterministik: order selalu Pending, cek status selalu
// Sukses. Randomize membuat hasil order acak untuk uji alur gagal.
type Mock struct {
	Randomize bool

	// Entries menggantikan price list bawaan bila diisi.
	Entries []ServiceEntry

	// OrderStatus / StatusStatus memaksa hasil tertentu bila diisi.
	OrderStatus  string
	StatusStatus string
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) PriceList(ctx context.Context) ([]ServiceEntry, error) {
	if m.Entries != nil {
		return m.Entries, nil
	}
	return []ServiceEntry{
		{Code: "TSEL5", Name: "Telkomsel 5.000", Category: "Pulsa", Brand: "TELKOMSEL", Type: "fixed", Price: 5500, BasePrice: 5250, Status: "available"},
		{Code: "TSEL10", Name: "Telkomsel 10.000", Category: "Pulsa", Brand: "TELKOMSEL", Type: "fixed", Price: 10500, BasePrice: 10100, Status: "available"},
		{Code: "XLD5GB", Name: "XL Data 5GB", Category: "Data", Brand: "XL", Type: "fixed", Price: 55000, BasePrice: 52500, Status: "available"},
		{Code: "PLNPRA", Name: "PLN Prabayar", Category: "Token Listrik", Brand: "PLN", Type: "range", Price: 0, BasePrice: 0, MinAmount: 20000, MaxAmount: 1000000, Status: "available"},
		{Code: "MLBB86", Name: "Mobile Legends 86 Diamond", Category: "Voucher Game", Brand: "MOBILE LEGENDS", Type: "fixed", Price: 23000, BasePrice: 21500, Status: "available"},
	}, nil
}

func (m *Mock) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	status := m.OrderStatus
	if status == "" {
		status = "Pending"
		if m.Randomize {
			status = []string{"Sukses", "Pending", "Gagal"}[rand.Intn(3)]
		}
	}
	return m.result(req.RefID, status), nil
}

func (m *Mock) CheckStatus(ctx context.Context, refID string) (*OrderResult, error) {
	status := m.StatusStatus
	if status == "" {
		status = "Sukses"
	}
	return m.result(refID, status), nil
}

func (m *Mock) result(refID, status string) *OrderResult {
	res := &OrderResult{
		RefID:        refID,
		ProviderRef:  "MOCK-" + refID,
		Status:       status,
		Message:      "mock response",
		ResponseCode: ResponseCodeOK,
	}
	if status == "Sukses" {
		res.SerialNumber = fmt.Sprintf("SN-%s", refID)
	}
	if status == "Gagal" {
		res.ResponseCode = "ERR"
	}
	res.Raw, _ = json.Marshal(res)
	return res
}
