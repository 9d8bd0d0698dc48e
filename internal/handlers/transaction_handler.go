package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/rifkiandrian/topupin_be/internal/models"
	"github.com/rifkiandrian/topupin_be/internal/services/transaction"
)

type TransactionHandler struct {
	Engine *transaction.Service
}

func NewTransactionHandler(engine *transaction.Service) *TransactionHandler {
	return &TransactionHandler{Engine: engine}
}

type CreateTransactionReq struct {
	ProductID    uint   `json:"product_id" validate:"required"`
	Amount       int64  `json:"amount" validate:"gte=0"` // 0 = pakai harga produk
	CustomerNo   string `json:"customer_no" validate:"required,min=4"`
	CustomerName string `json:"customer_name"`
}

// Create membuat transaksi pending lalu meneruskan order ke provider.
// Kegagalan provider tidak membatalkan transaksi yang sudah tersimpan.
func (h *TransactionHandler) Create(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req CreateTransactionReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Body request tidak valid",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Data pembelian tidak lengkap",
		})
	}

	trx, err := h.Engine.CreateTransaction(transaction.CreateInput{
		UserID:       uid,
		ProductID:    req.ProductID,
		Amount:       req.Amount,
		CustomerNo:   req.CustomerNo,
		CustomerName: req.CustomerName,
	})
	if err != nil {
		return fail(c, err)
	}

	message := "Transaksi dibuat"
	if _, err := h.Engine.Dispatch(c.Context(), trx); err != nil {
		log.Printf("transaction %s: dispatch gagal: %v", trx.TransactionID, err)
		message = "Transaksi dibuat, namun gagal diteruskan ke provider"
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    trx,
	})
}

// ListMine menampilkan transaksi milik user yang login.
func (h *TransactionHandler) ListMine(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}

	filter := transaction.ListFilter{
		UserID: &uid,
		Status: models.TransactionStatus(c.Query("status")),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 20),
	}

	items, total, err := h.Engine.List(filter)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    items,
		"total":   total,
		"page":    filter.Page,
		"limit":   filter.Limit,
	})
}

// GetDetail mencari transaksi berdasarkan transaction_id publik. Customer
// hanya boleh melihat transaksinya sendiri; admin boleh semua.
func (h *TransactionHandler) GetDetail(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}

	trx, err := h.Engine.GetByTransactionID(c.Params("trxid"))
	if err != nil {
		return fail(c, err)
	}

	if trx.UserID != uid && !isAdmin(c) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Transaksi tidak ditemukan",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    trx,
	})
}

// AdminList menampilkan semua transaksi dengan filter user dan status.
func (h *TransactionHandler) AdminList(c *fiber.Ctx) error {
	filter := transaction.ListFilter{
		Status: models.TransactionStatus(c.Query("status")),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 20),
	}
	if rawUser := c.Query("user_id"); rawUser != "" {
		id, err := uuid.Parse(rawUser)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "user_id tidak valid",
			})
		}
		filter.UserID = &id
	}

	items, total, err := h.Engine.List(filter)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    items,
		"total":   total,
		"page":    filter.Page,
		"limit":   filter.Limit,
	})
}

// AdminRefresh menarik ulang status order dari provider.
func (h *TransactionHandler) AdminRefresh(c *fiber.Ctx) error {
	trx, err := h.Engine.RefreshStatus(c.Context(), c.Params("trxid"))
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Status transaksi diperbarui",
		"data":    trx,
	})
}
