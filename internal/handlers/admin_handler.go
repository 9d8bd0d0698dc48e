package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/rifkiandrian/topupin_be/internal/apperr"
	"github.com/rifkiandrian/topupin_be/internal/models"
)

const (
	statsCacheKey = "admin:stats:v1"
	statsCacheTTL = 60 * time.Second
)

type AdminHandler struct {
	DB    *gorm.DB
	Cache *redis.Client // boleh nil
}

func NewAdminHandler(db *gorm.DB, cache *redis.Client) *AdminHandler {
	return &AdminHandler{DB: db, Cache: cache}
}

type adminStats struct {
	TotalUsers        int64            `json:"total_users"`
	TotalProducts     int64            `json:"total_products"`
	TotalTransactions int64            `json:"total_transactions"`
	TransactionCounts map[string]int64 `json:"transaction_counts"`
	GrossRevenue      int64            `json:"gross_revenue"`
	Profit            int64            `json:"profit"`
	UnpaidCommission  int64            `json:"unpaid_commission"`
	PaidCommission    int64            `json:"paid_commission"`
}

// GetStats merangkum angka utama untuk dashboard admin. Hasilnya di-cache
// sebentar di redis karena query agregatnya lumayan berat.
func (h *AdminHandler) GetStats(c *fiber.Ctx) error {
	if h.Cache != nil {
		if raw, err := h.Cache.Get(c.Context(), statsCacheKey).Bytes(); err == nil {
			var cached adminStats
			if err := json.Unmarshal(raw, &cached); err == nil {
				return c.JSON(fiber.Map{"success": true, "data": cached, "cached": true})
			}
		}
	}

	stats, err := h.collectStats()
	if err != nil {
		return fail(c, err)
	}

	if h.Cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := h.Cache.Set(c.Context(), statsCacheKey, raw, statsCacheTTL).Err(); err != nil {
				log.Printf("admin stats: gagal menulis cache: %v", err)
			}
		}
	}

	return c.JSON(fiber.Map{"success": true, "data": stats})
}

// collectStats menjalankan semua query agregat. Kegagalan satu query
// menggagalkan keseluruhan; dashboard angka nol yang salah lebih buruk
// daripada error.
func (h *AdminHandler) collectStats() (*adminStats, error) {
	stats := adminStats{TransactionCounts: map[string]int64{}}

	err := h.DB.Model(&models.User{}).Count(&stats.TotalUsers).Error
	if err == nil {
		err = h.DB.Model(&models.Product{}).Count(&stats.TotalProducts).Error
	}
	if err == nil {
		err = h.DB.Model(&models.Transaction{}).Count(&stats.TotalTransactions).Error
	}

	var perStatus []struct {
		Status string
		Total  int64
	}
	if err == nil {
		err = h.DB.Model(&models.Transaction{}).
			Select("status, COUNT(*) as total").
			Group("status").
			Scan(&perStatus).Error
		for _, row := range perStatus {
			stats.TransactionCounts[row.Status] = row.Total
		}
	}

	if err == nil {
		err = h.DB.Table("transactions").
			Joins("JOIN products ON products.id = transactions.product_id").
			Where("transactions.status = ?", models.TransactionStatusSuccess).
			Select("COALESCE(SUM(transactions.price), 0)").
			Scan(&stats.GrossRevenue).Error
	}
	if err == nil {
		err = h.DB.Table("transactions").
			Joins("JOIN products ON products.id = transactions.product_id").
			Where("transactions.status = ?", models.TransactionStatusSuccess).
			Select("COALESCE(SUM(transactions.price - products.base_price), 0)").
			Scan(&stats.Profit).Error
	}

	if err == nil {
		err = h.DB.Model(&models.Referral{}).
			Where("is_paid = ?", false).
			Select("COALESCE(SUM(commission_amount), 0)").
			Scan(&stats.UnpaidCommission).Error
	}
	if err == nil {
		err = h.DB.Model(&models.Referral{}).
			Where("is_paid = ?", true).
			Select("COALESCE(SUM(commission_amount), 0)").
			Scan(&stats.PaidCommission).Error
	}

	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Gagal memuat statistik", err)
	}
	return &stats, nil
}

type revenueBucket struct {
	Period       string `json:"period"`
	Revenue      int64  `json:"revenue"`
	Profit       int64  `json:"profit"`
	Transactions int64  `json:"transactions"`
}

// GetRevenue mengelompokkan pendapatan transaksi sukses per hari/minggu/
// bulan dalam jendela N hari ke belakang. Pengelompokan dilakukan di Go
// supaya perilakunya sama di postgres dan sqlite.
func (h *AdminHandler) GetRevenue(c *fiber.Ctx) error {
	interval := c.Query("interval", "day")
	if interval != "day" && interval != "week" && interval != "month" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "interval harus day, week, atau month",
		})
	}

	days := c.QueryInt("days", 30)
	if days < 1 {
		days = 1
	}
	if days > 365 {
		days = 365
	}
	since := time.Now().AddDate(0, 0, -days)

	var rows []struct {
		CreatedAt time.Time
		Price     int64
		BasePrice int64
	}
	if err := h.DB.Table("transactions").
		Joins("JOIN products ON products.id = transactions.product_id").
		Where("transactions.status = ?", models.TransactionStatusSuccess).
		Where("transactions.created_at >= ?", since).
		Select("transactions.created_at, transactions.price, products.base_price").
		Scan(&rows).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Gagal memuat data pendapatan",
		})
	}

	buckets := map[string]*revenueBucket{}
	for _, row := range rows {
		key := bucketKey(row.CreatedAt, interval)
		b, ok := buckets[key]
		if !ok {
			b = &revenueBucket{Period: key}
			buckets[key] = b
		}
		b.Revenue += row.Price
		b.Profit += row.Price - row.BasePrice
		b.Transactions++
	}

	out := make([]revenueBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })

	return c.JSON(fiber.Map{
		"success":  true,
		"interval": interval,
		"days":     days,
		"data":     out,
	})
}

func bucketKey(t time.Time, interval string) string {
	switch interval {
	case "week":
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case "month":
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}
