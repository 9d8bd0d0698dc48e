package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/rifkiandrian/topupin_be/internal/models"
	"github.com/rifkiandrian/topupin_be/internal/provider"
	"github.com/rifkiandrian/topupin_be/internal/services/transaction"
)

// CallbackHandler menerima notifikasi status order dari provider.
// Endpoint ini publik; keasliannya diperiksa lewat signature.
type CallbackHandler struct {
	Engine           *transaction.Service
	ProviderUsername string
	ProviderAPIKey   string
}

func NewCallbackHandler(engine *transaction.Service, username, apiKey string) *CallbackHandler {
	return &CallbackHandler{Engine: engine, ProviderUsername: username, ProviderAPIKey: apiKey}
}

type topupCallbackPayload struct {
	RefID        string `json:"ref_id"`
	ProviderRef  string `json:"provider_ref"`
	Status       string `json:"status"`
	ResponseCode string `json:"response_code"`
	SerialNumber string `json:"sn"`
	Message      string `json:"message"`
	Sign         string `json:"sign"`
}

func (h *CallbackHandler) HandleTopup(c *fiber.Ctx) error {
	var payload topupCallbackPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Payload tidak valid",
		})
	}
	if payload.RefID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "ref_id wajib diisi",
		})
	}

	// Verifikasi signature dilewati bila kredensial tidak dikonfigurasi
	// (mode mock / pengembangan lokal).
	if h.ProviderUsername != "" && h.ProviderAPIKey != "" {
		expected := provider.Signature(h.ProviderUsername, h.ProviderAPIKey, payload.RefID)
		if payload.Sign != expected {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Signature tidak valid",
			})
		}
	}

	result := provider.OrderResult{
		RefID:        payload.RefID,
		ProviderRef:  payload.ProviderRef,
		Status:       payload.Status,
		SerialNumber: payload.SerialNumber,
		Message:      payload.Message,
		ResponseCode: payload.ResponseCode,
	}

	var status models.TransactionStatus
	switch result.State() {
	case provider.StateSuccess:
		status = models.TransactionStatusSuccess
	case provider.StatePending:
		status = models.TransactionStatusProcessing
	default:
		status = models.TransactionStatusFailed
	}

	var ext *string
	if payload.ProviderRef != "" {
		ext = &payload.ProviderRef
	}

	trx, err := h.Engine.UpdateStatus(payload.RefID, status, ext, payload.SerialNumber, c.Body())
	if err != nil {
		log.Printf("callback %s: %v", payload.RefID, err)
		return fail(c, err)
	}
	if trx == nil {
		// Callback untuk transaksi yang tidak dikenal tetap di-ack agar
		// provider berhenti mengulang.
		log.Printf("callback: transaksi tidak dikenal: %s", payload.RefID)
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Transaksi tidak dikenal, diabaikan",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Status transaksi diperbarui",
	})
}
