package transaction

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rifkiandrian/topupin_be/internal/apperr"
	"github.com/rifkiandrian/topupin_be/internal/models"
	"github.com/rifkiandrian/topupin_be/internal/provider"
	"github.com/rifkiandrian/topupin_be/internal/services/referral"
	"github.com/rifkiandrian/topupin_be/internal/utils"
)

// Service adalah engine transaksi: membuat transaksi, meneruskan order ke
// provider, dan menerapkan transisi status dari callback.
type Service struct {
	DB        *gorm.DB
	Gateway   provider.Gateway
	Referrals *referral.Service
}

func NewService(db *gorm.DB, gw provider.Gateway, refs *referral.Service) *Service {
	return &Service{DB: db, Gateway: gw, Referrals: refs}
}

type CreateInput struct {
	UserID       uuid.UUID
	ProductID    uint
	Amount       int64 // 0 berarti pakai harga produk
	CustomerNo   string
	CustomerName string
}

// CreateTransaction memvalidasi pembelian terhadap aturan produk lalu
// menyimpan transaksi berstatus pending. Tidak ada efek samping lain;
// order ke provider dikirim lewat Dispatch.
func (s *Service) CreateTransaction(input CreateInput) (*models.Transaction, error) {
	var user models.User
	if err := s.DB.First(&user, "id = ?", input.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "User tidak ditemukan")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "Gagal memuat user", err)
	}

	var product models.Product
	if err := s.DB.First(&product, "id = ?", input.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "Produk tidak ditemukan")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "Gagal memuat produk", err)
	}
	if !product.IsActive {
		return nil, apperr.New(apperr.KindInvalidState, "Produk sedang tidak aktif")
	}

	amount := input.Amount
	if amount <= 0 {
		amount = product.Price
	}
	if product.DenominationType == models.DenominationRange {
		if amount < product.MinAmount {
			return nil, apperr.New(apperr.KindValidation,
				fmt.Sprintf("Nominal minimal %d", product.MinAmount))
		}
		if amount > product.MaxAmount {
			return nil, apperr.New(apperr.KindValidation,
				fmt.Sprintf("Nominal maksimal %d", product.MaxAmount))
		}
	}

	trx := models.Transaction{
		UserID:       user.ID,
		ProductID:    product.ID,
		Amount:       amount,
		Price:        product.Price,
		Status:       models.TransactionStatusPending,
		CustomerNo:   input.CustomerNo,
		CustomerName: input.CustomerName,
	}

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		trx.TransactionID = utils.GenerateTransactionID()
		err = s.DB.Create(&trx).Error
		if err == nil {
			trx.Product = &product
			return &trx, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	return nil, apperr.Wrap(apperr.KindInternal, "Gagal menyimpan transaksi", err)
}

// Dispatch meneruskan order ke provider dan menerapkan hasil klasifikasinya.
// Transaksi yang sudah tersimpan tidak ikut gagal bila provider bermasalah;
// statusnya ditandai failed dan error upstream dikembalikan ke pemanggil.
func (s *Service) Dispatch(ctx context.Context, trx *models.Transaction) (*models.Transaction, error) {
	var product models.Product
	if err := s.DB.First(&product, "id = ?", trx.ProductID).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Gagal memuat produk transaksi", err)
	}

	res, err := s.Gateway.CreateOrder(ctx, provider.OrderRequest{
		RefID:      trx.TransactionID,
		SKU:        product.SKU,
		CustomerNo: trx.CustomerNo,
		Amount:     trx.Amount,
	})
	if err != nil {
		if ferr := s.transitionWith(trx, models.TransactionStatusFailed, nil, "", nil); ferr != nil {
			log.Printf("transaction %s: gagal menandai failed: %v", trx.TransactionID, ferr)
		}
		return trx, err
	}

	if err := s.applyResult(trx, res); err != nil {
		return trx, err
	}
	return trx, nil
}

// UpdateStatus adalah jalur callback provider: lookup memakai transaction_id
// publik, bukan id internal. Serial number dari callback ikut tersimpan di
// sini karena callback adalah jalur pengiriman utamanya. Transaksi yang
// tidak dikenal mengembalikan (nil, nil) karena callback untuk transaksi
// usang memang bisa terjadi.
func (s *Service) UpdateStatus(transactionID string, status models.TransactionStatus, externalID *string, serial string, raw []byte) (*models.Transaction, error) {
	if !models.ValidTransactionStatus(status) {
		return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("Status tidak dikenal: %s", status))
	}

	var trx models.Transaction
	if err := s.DB.First(&trx, "transaction_id = ?", transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindInternal, "Gagal memuat transaksi", err)
	}

	if err := s.transitionWith(&trx, status, externalID, serial, raw); err != nil {
		return nil, err
	}
	return &trx, nil
}

// RefreshStatus menarik status order langsung dari provider (jalur admin)
// dan menerapkannya lewat transisi yang sama dengan callback.
func (s *Service) RefreshStatus(ctx context.Context, transactionID string) (*models.Transaction, error) {
	var trx models.Transaction
	if err := s.DB.First(&trx, "transaction_id = ?", transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "Transaksi tidak ditemukan")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "Gagal memuat transaksi", err)
	}

	res, err := s.Gateway.CheckStatus(ctx, trx.TransactionID)
	if err != nil {
		return nil, err
	}
	if err := s.applyResult(&trx, res); err != nil {
		return nil, err
	}
	return &trx, nil
}

func (s *Service) applyResult(trx *models.Transaction, res *provider.OrderResult) error {
	var status models.TransactionStatus
	switch res.State() {
	case provider.StateSuccess:
		status = models.TransactionStatusSuccess
	case provider.StatePending:
		status = models.TransactionStatusProcessing
	default:
		status = models.TransactionStatusFailed
	}

	var ext *string
	if res.ProviderRef != "" {
		ext = &res.ProviderRef
	}
	return s.transitionWith(trx, status, ext, res.SerialNumber, res.Raw)
}

// transitionWith adalah satu-satunya jalan mengubah status transaksi.
// Transisi ke success memicu pencatatan komisi, dengan dua lapis pengaman
// terhadap pembayaran ganda: guard status lama di sini dan unique index
// transaction_id di tabel referrals. Kegagalan komisi dicatat tapi tidak
// membatalkan transisi status.
func (s *Service) transitionWith(trx *models.Transaction, status models.TransactionStatus, externalID *string, serial string, raw []byte) error {
	wasSuccess := trx.Status == models.TransactionStatusSuccess

	updates := map[string]interface{}{"status": status}
	if externalID != nil {
		updates["external_transaction_id"] = *externalID
	}
	if serial != "" {
		updates["serial_number"] = serial
	}
	if len(raw) > 0 {
		updates["provider_response"] = datatypes.JSON(raw)
	}

	if err := s.DB.Model(trx).Updates(updates).Error; err != nil {
		return apperr.Wrap(apperr.KindInternal, "Gagal memperbarui transaksi", err)
	}

	trx.Status = status
	if externalID != nil {
		trx.ExternalTransactionID = externalID
	}
	if serial != "" {
		trx.SerialNumber = &serial
	}
	if len(raw) > 0 {
		trx.ProviderResponse = datatypes.JSON(raw)
	}

	if status == models.TransactionStatusSuccess && !wasSuccess {
		if _, err := s.Referrals.SettleCommission(trx); err != nil {
			log.Printf("transaction %s: gagal mencatat komisi: %v", trx.TransactionID, err)
		}
	}
	return nil
}

type ListFilter struct {
	UserID *uuid.UUID
	Status models.TransactionStatus
	Page   int
	Limit  int
}

// List mengembalikan transaksi terbaru lebih dulu plus total untuk
// pagination. Urutan stabil: created_at turun, id sebagai pemecah seri.
func (s *Service) List(filter ListFilter) ([]models.Transaction, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	q := s.DB.Model(&models.Transaction{})
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, "Gagal menghitung transaksi", err)
	}

	var items []models.Transaction
	if err := q.
		Preload("Product").
		Order("created_at DESC, id DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&items).Error; err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, "Gagal memuat transaksi", err)
	}
	return items, total, nil
}

func (s *Service) GetByTransactionID(transactionID string) (*models.Transaction, error) {
	var trx models.Transaction
	if err := s.DB.
		Preload("Product").
		First(&trx, "transaction_id = ?", transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "Transaksi tidak ditemukan")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "Gagal memuat transaksi", err)
	}
	return &trx, nil
}
