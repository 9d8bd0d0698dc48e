package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/rifkiandrian/topupin_be/internal/apperr"
	"github.com/rifkiandrian/topupin_be/internal/models"
	"github.com/rifkiandrian/topupin_be/internal/provider"
)

const (
	listCacheKey = "catalog:products:v1"
	listCacheTTL = 5 * time.Minute
)

type Service struct {
	DB      *gorm.DB
	Gateway provider.Gateway
	Cache   *redis.Client // boleh nil, cache jadi no-op
}

func NewService(db *gorm.DB, gw provider.Gateway, cache *redis.Client) *Service {
	return &Service{DB: db, Gateway: gw, Cache: cache}
}

type ListFilter struct {
	Query           string
	Category        string
	Sort            string // latest | price_low | price_high
	Page            int
	Limit           int
	IncludeInactive bool
}

func (f *ListFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
}

func (f ListFilter) isDefault() bool {
	return f.Query == "" && f.Category == "" && f.Sort == "" &&
		f.Page == 1 && f.Limit == 20 && !f.IncludeInactive
}

type ProductPage struct {
	Items []models.Product `json:"items"`
	Total int64            `json:"total"`
}

// ListProducts mengembalikan satu halaman katalog plus total untuk
// perhitungan pagination di sisi client. Halaman default (tanpa filter)
// di-cache di redis karena paling sering dibaca.
func (s *Service) ListProducts(ctx context.Context, filter ListFilter) (*ProductPage, error) {
	filter.normalize()

	if filter.isDefault() {
		if page, ok := s.cachedList(ctx); ok {
			return page, nil
		}
	}

	q := s.DB.Model(&models.Product{})
	if !filter.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}
	if filter.Query != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Query)+"%")
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Gagal menghitung produk", err)
	}

	switch filter.Sort {
	case "price_low":
		q = q.Order("price ASC")
	case "price_high":
		q = q.Order("price DESC")
	default:
		q = q.Order("created_at DESC, id DESC")
	}

	var items []models.Product
	if err := q.
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&items).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "Gagal memuat produk", err)
	}

	page := &ProductPage{Items: items, Total: total}
	if filter.isDefault() {
		s.storeList(ctx, page)
	}
	return page, nil
}

func (s *Service) GetProduct(id uint) (*models.Product, error) {
	var p models.Product
	if err := s.DB.First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "Produk tidak ditemukan")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "Gagal memuat produk", err)
	}
	return &p, nil
}

type SyncResult struct {
	Synced int      `json:"synced"`
	Errors []string `json:"errors"`
}

// SyncCatalog menarik price list provider dan meng-upsert katalog per SKU.
// Kegagalan satu entri dicatat tanpa menggagalkan keseluruhan sync.
func (s *Service) SyncCatalog(ctx context.Context) (*SyncResult, error) {
	entries, err := s.Gateway.PriceList(ctx)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Errors: []string{}}
	for _, e := range entries {
		if strings.TrimSpace(e.Code) == "" {
			result.Errors = append(result.Errors, "entri tanpa SKU dilewati: "+e.Name)
			continue
		}
		if err := s.upsertEntry(e); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", e.Code, err))
			continue
		}
		result.Synced++
	}

	s.invalidateList(ctx)
	return result, nil
}

func (s *Service) upsertEntry(e provider.ServiceEntry) error {
	denom := models.DenominationFixed
	if strings.EqualFold(e.Type, "range") {
		denom = models.DenominationRange
	}

	fields := models.Product{
		SKU:              e.Code,
		Name:             e.Name,
		Category:         MapCategory(e.Category, e.Brand),
		Brand:            e.Brand,
		Price:            e.Price,
		BasePrice:        e.BasePrice,
		IsActive:         strings.EqualFold(e.Status, "available"),
		DenominationType: denom,
		MinAmount:        e.MinAmount,
		MaxAmount:        e.MaxAmount,
	}

	var existing models.Product
	err := s.DB.Where("sku = ?", e.Code).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.DB.Create(&fields).Error
	}
	if err != nil {
		return err
	}

	return s.DB.Model(&existing).
		Select("Name", "Category", "Brand", "Price", "BasePrice", "IsActive",
			"DenominationType", "MinAmount", "MaxAmount").
		Updates(fields).Error
}

// MapCategory memetakan kategori/brand provider ke enum lokal dengan aturan
// kata kunci sederhana.
func MapCategory(category, brand string) models.ProductCategory {
	s := strings.ToLower(category + " " + brand)
	switch {
	case containsAny(s, "pulsa", "credit"):
		return models.CategoryMobileCredit
	case containsAny(s, "data", "internet", "kuota"):
		return models.CategoryDataPackage
	case containsAny(s, "pln", "listrik", "token"):
		return models.CategoryPLNToken
	case containsAny(s, "game", "voucher", "diamond"):
		return models.CategoryGameVoucher
	default:
		return models.CategoryOther
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (s *Service) cachedList(ctx context.Context) (*ProductPage, bool) {
	if s.Cache == nil {
		return nil, false
	}
	raw, err := s.Cache.Get(ctx, listCacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var page ProductPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, false
	}
	return &page, true
}

func (s *Service) storeList(ctx context.Context, page *ProductPage) {
	if s.Cache == nil {
		return
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := s.Cache.Set(ctx, listCacheKey, raw, listCacheTTL).Err(); err != nil {
		log.Printf("catalog: gagal menulis cache: %v", err)
	}
}

func (s *Service) invalidateList(ctx context.Context) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Del(ctx, listCacheKey).Err(); err != nil {
		log.Printf("catalog: gagal menghapus cache: %v", err)
	}
}
