package referral

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rifkiandrian/topupin_be/internal/apperr"
	"github.com/rifkiandrian/topupin_be/internal/models"
)

// CommissionRate adalah porsi harga transaksi sukses yang menjadi komisi
// pengundang. Pembulatan ke rupiah terdekat, tidak ada komisi pecahan.
const CommissionRate = 0.05

func CommissionFor(price int64) int64 {
	return int64(math.Round(float64(price) * CommissionRate))
}

type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// SettleCommission mencatat komisi untuk satu transaksi sukses. No-op bila
// pembeli tidak punya pengundang, dan no-op bila komisi untuk transaksi ini
// sudah pernah dibuat (unique index pada transaction_id yang menjaga).
func (s *Service) SettleCommission(trx *models.Transaction) (*models.Referral, error) {
	var buyer models.User
	if err := s.DB.First(&buyer, "id = ?", trx.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "User pembeli tidak ditemukan")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "Gagal memuat user pembeli", err)
	}

	if buyer.ReferredByID == nil {
		return nil, nil
	}

	ref := models.Referral{
		ReferrerID:       *buyer.ReferredByID,
		ReferredID:       buyer.ID,
		TransactionID:    trx.TransactionID,
		CommissionAmount: CommissionFor(trx.Price),
	}

	if err := s.DB.Create(&ref).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Komisi transaksi ini sudah tercatat sebelumnya.
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindInternal, "Gagal mencatat komisi", err)
	}

	return &ref, nil
}

type EarningsSummary struct {
	TotalEarnings  int64             `json:"total_earnings"`
	PaidEarnings   int64             `json:"paid_earnings"`
	UnpaidEarnings int64             `json:"unpaid_earnings"`
	Referrals      []models.Referral `json:"referrals"`
}

// GetUserReferralEarnings merangkum semua komisi milik userID sebagai
// pengundang. User tanpa komisi mendapat total nol dan daftar kosong.
func (s *Service) GetUserReferralEarnings(userID uuid.UUID) (*EarningsSummary, error) {
	var refs []models.Referral
	if err := s.DB.
		Where("referrer_id = ?", userID).
		Order("created_at DESC").
		Find(&refs).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Gagal memuat komisi referral", err)
	}

	summary := EarningsSummary{Referrals: refs}
	for _, r := range refs {
		summary.TotalEarnings += r.CommissionAmount
		if r.IsPaid {
			summary.PaidEarnings += r.CommissionAmount
		} else {
			summary.UnpaidEarnings += r.CommissionAmount
		}
	}
	return &summary, nil
}

type ReferredUser struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	JoinedAt          time.Time `json:"joined_at"`
	TotalTransactions int64     `json:"total_transactions"`
	TotalSpent        int64     `json:"total_spent"`
}

// GetUserReferrals mendaftar user yang diundang userID beserta jumlah dan
// nilai transaksi SUKSES mereka. User tanpa transaksi tetap muncul dengan
// angka nol.
func (s *Service) GetUserReferrals(userID uuid.UUID) ([]ReferredUser, error) {
	rows := []ReferredUser{}
	err := s.DB.
		Table("users").
		Select(`
			users.id,
			users.name,
			users.email,
			users.created_at as joined_at,
			(SELECT COUNT(*) FROM transactions t WHERE t.user_id = users.id AND t.status = 'success') as total_transactions,
			(SELECT COALESCE(SUM(t.price), 0) FROM transactions t WHERE t.user_id = users.id AND t.status = 'success') as total_spent
		`).
		Where("users.referred_by_id = ?", userID).
		Order("users.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Gagal memuat daftar referral", err)
	}
	return rows, nil
}

type ReferrerInfo struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ValidateReferralCode mengecek kode referral. Kode kosong atau tidak
// dikenal mengembalikan nil tanpa error.
func (s *Service) ValidateReferralCode(code string) (*ReferrerInfo, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}

	var u models.User
	if err := s.DB.Where("referral_code = ?", code).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindInternal, "Gagal memeriksa kode referral", err)
	}
	return &ReferrerInfo{ID: u.ID, Name: u.Name}, nil
}

// MarkReferralAsPaid menandai komisi sudah dibayar. Satu arah: komisi yang
// sudah paid tetap paid dan dikembalikan apa adanya.
func (s *Service) MarkReferralAsPaid(id uuid.UUID) (*models.Referral, error) {
	var ref models.Referral
	if err := s.DB.First(&ref, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "Data referral tidak ditemukan")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "Gagal memuat referral", err)
	}

	if ref.IsPaid {
		return &ref, nil
	}

	if err := s.DB.Model(&ref).Update("is_paid", true).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Gagal memperbarui referral", err)
	}
	ref.IsPaid = true
	return &ref, nil
}
