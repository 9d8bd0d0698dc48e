package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rifkiandrian/topupin_be/internal/services/catalog"
)

type ProductHandler struct {
	Catalog *catalog.Service
}

func NewProductHandler(svc *catalog.Service) *ProductHandler {
	return &ProductHandler{Catalog: svc}
}

// List menampilkan katalog produk aktif dengan filter pencarian,
// kategori, sort, dan pagination.
func (h *ProductHandler) List(c *fiber.Ctx) error {
	filter := catalog.ListFilter{
		Query:    c.Query("q"),
		Category: c.Query("category"),
		Sort:     c.Query("sort"),
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", 20),
	}

	page, err := h.Catalog.ListProducts(c.Context(), filter)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    page.Items,
		"total":   page.Total,
		"page":    filter.Page,
		"limit":   filter.Limit,
	})
}

func (h *ProductHandler) GetDetail(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "ID produk tidak valid",
		})
	}

	p, err := h.Catalog.GetProduct(uint(id))
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    p,
	})
}

// Sync dipanggil admin untuk menarik price list provider ke katalog lokal.
func (h *ProductHandler) Sync(c *fiber.Ctx) error {
	result, err := h.Catalog.SyncCatalog(c.Context())
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Sinkronisasi katalog selesai",
		"data":    result,
	})
}
