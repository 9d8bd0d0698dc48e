package referral

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rifkiandrian/topupin_be/internal/apperr"
	"github.com/rifkiandrian/topupin_be/internal/models"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Product{}, &models.Transaction{}, &models.Referral{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name, code string, referredBy *uuid.UUID) models.User {
	t.Helper()
	u := models.User{
		Name:         name,
		Email:        name + "@mail.test",
		Password:     "x",
		Role:         models.RoleCustomer,
		IsActive:     true,
		ReferralCode: code,
		ReferredByID: referredBy,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func seedTrx(t *testing.T, db *gorm.DB, user models.User, trxID string, price int64, status models.TransactionStatus) models.Transaction {
	t.Helper()
	trx := models.Transaction{
		UserID:        user.ID,
		ProductID:     1,
		TransactionID: trxID,
		Amount:        price,
		Price:         price,
		Status:        status,
	}
	require.NoError(t, db.Create(&trx).Error)
	return trx
}

func TestCommissionFor(t *testing.T) {
	require.Equal(t, int64(500), CommissionFor(10000))
	require.Equal(t, int64(275), CommissionFor(5500))
	// pembulatan ke rupiah terdekat
	require.Equal(t, int64(500), CommissionFor(10001))
	require.Equal(t, int64(501), CommissionFor(10010))
	require.Equal(t, int64(0), CommissionFor(0))
}

func TestSettleCommissionNoReferrer(t *testing.T) {
	db := setupDB(t)
	svc := NewService(db)

	buyer := seedUser(t, db, "tanpa-pengundang", "CODE0001", nil)
	trx := seedTrx(t, db, buyer, "TRX-NOREF", 10000, models.TransactionStatusSuccess)

	ref, err := svc.SettleCommission(&trx)
	require.NoError(t, err)
	require.Nil(t, ref)

	var count int64
	require.NoError(t, db.Model(&models.Referral{}).Count(&count).Error)
	require.Equal(t, int64(0), count)
}

func TestSettleCommissionWithReferrer(t *testing.T) {
	db := setupDB(t)
	svc := NewService(db)

	referrer := seedUser(t, db, "pengundang", "CODE0002", nil)
	buyer := seedUser(t, db, "pembeli", "CODE0003", &referrer.ID)
	trx := seedTrx(t, db, buyer, "TRX-REF1", 10000, models.TransactionStatusSuccess)

	ref, err := svc.SettleCommission(&trx)
	require.NoError(t, err)
	require.NotNil(t, ref)
	require.Equal(t, referrer.ID, ref.ReferrerID)
	require.Equal(t, buyer.ID, ref.ReferredID)
	require.Equal(t, "TRX-REF1", ref.TransactionID)
	require.Equal(t, int64(500), ref.CommissionAmount)
	require.False(t, ref.IsPaid)
}

func TestSettleCommissionDuplicateIsBenign(t *testing.T) {
	db := setupDB(t)
	svc := NewService(db)

	referrer := seedUser(t, db, "pengundang", "CODE0004", nil)
	buyer := seedUser(t, db, "pembeli", "CODE0005", &referrer.ID)
	trx := seedTrx(t, db, buyer, "TRX-DUP", 20000, models.TransactionStatusSuccess)

	first, err := svc.SettleCommission(&trx)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := svc.SettleCommission(&trx)
	require.NoError(t, err)
	require.Nil(t, second)

	var count int64
	require.NoError(t, db.Model(&models.Referral{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestGetUserReferralEarnings(t *testing.T) {
	db := setupDB(t)
	svc := NewService(db)

	referrer := seedUser(t, db, "pengundang", "CODE0006", nil)
	buyer := seedUser(t, db, "pembeli", "CODE0007", &referrer.ID)

	require.NoError(t, db.Create(&models.Referral{
		ReferrerID: referrer.ID, ReferredID: buyer.ID,
		TransactionID: "TRX-E1", CommissionAmount: 500, IsPaid: true,
	}).Error)
	require.NoError(t, db.Create(&models.Referral{
		ReferrerID: referrer.ID, ReferredID: buyer.ID,
		TransactionID: "TRX-E2", CommissionAmount: 275,
	}).Error)

	summary, err := svc.GetUserReferralEarnings(referrer.ID)
	require.NoError(t, err)
	require.Equal(t, int64(775), summary.TotalEarnings)
	require.Equal(t, int64(500), summary.PaidEarnings)
	require.Equal(t, int64(275), summary.UnpaidEarnings)
	require.Len(t, summary.Referrals, 2)
}

func TestGetUserReferralEarningsEmpty(t *testing.T) {
	db := setupDB(t)
	svc := NewService(db)

	u := seedUser(t, db, "sendiri", "CODE0008", nil)

	summary, err := svc.GetUserReferralEarnings(u.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), summary.TotalEarnings)
	require.Equal(t, int64(0), summary.PaidEarnings)
	require.Equal(t, int64(0), summary.UnpaidEarnings)
	require.Empty(t, summary.Referrals)
}

func TestGetUserReferralsSuccessOnly(t *testing.T) {
	db := setupDB(t)
	svc := NewService(db)

	referrer := seedUser(t, db, "pengundang", "CODE0009", nil)
	aktif := seedUser(t, db, "aktif", "CODE0010", &referrer.ID)
	pasif := seedUser(t, db, "pasif", "CODE0011", &referrer.ID)

	seedTrx(t, db, aktif, "TRX-A1", 10000, models.TransactionStatusSuccess)
	seedTrx(t, db, aktif, "TRX-A2", 15000, models.TransactionStatusSuccess)
	// transaksi non-sukses tidak boleh ikut dihitung
	seedTrx(t, db, aktif, "TRX-A3", 99999, models.TransactionStatusFailed)
	seedTrx(t, db, aktif, "TRX-A4", 88888, models.TransactionStatusPending)

	rows, err := svc.GetUserReferrals(referrer.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byName := map[string]ReferredUser{}
	for _, r := range rows {
		byName[r.Name] = r
	}
	require.Equal(t, int64(2), byName["aktif"].TotalTransactions)
	require.Equal(t, int64(25000), byName["aktif"].TotalSpent)
	// user tanpa transaksi tetap muncul dengan angka nol
	require.Equal(t, int64(0), byName["pasif"].TotalTransactions)
	require.Equal(t, int64(0), byName["pasif"].TotalSpent)
	_ = pasif
}

func TestValidateReferralCode(t *testing.T) {
	db := setupDB(t)
	svc := NewService(db)

	u := seedUser(t, db, "pemilik", "VALID123", nil)

	info, err := svc.ValidateReferralCode("VALID123")
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, u.ID, info.ID)
	require.Equal(t, "pemilik", info.Name)

	// huruf kecil dinormalisasi
	info, err = svc.ValidateReferralCode("valid123")
	require.NoError(t, err)
	require.NotNil(t, info)

	info, err = svc.ValidateReferralCode("TIDAKADA")
	require.NoError(t, err)
	require.Nil(t, info)

	info, err = svc.ValidateReferralCode("")
	require.NoError(t, err)
	require.Nil(t, info)
}

func TestMarkReferralAsPaid(t *testing.T) {
	db := setupDB(t)
	svc := NewService(db)

	referrer := seedUser(t, db, "pengundang", "CODE0012", nil)
	buyer := seedUser(t, db, "pembeli", "CODE0013", &referrer.ID)

	ref := models.Referral{
		ReferrerID: referrer.ID, ReferredID: buyer.ID,
		TransactionID: "TRX-PAY", CommissionAmount: 500,
	}
	require.NoError(t, db.Create(&ref).Error)

	updated, err := svc.MarkReferralAsPaid(ref.ID)
	require.NoError(t, err)
	require.True(t, updated.IsPaid)

	// memanggil ulang pada record yang sudah paid: no-op, tetap paid
	again, err := svc.MarkReferralAsPaid(ref.ID)
	require.NoError(t, err)
	require.True(t, again.IsPaid)

	_, err = svc.MarkReferralAsPaid(uuid.New())
	require.Error(t, err)
	require.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
