package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/rifkiandrian/topupin_be/internal/services/referral"
)

type ReferralHandler struct {
	Referrals *referral.Service
}

func NewReferralHandler(svc *referral.Service) *ReferralHandler {
	return &ReferralHandler{Referrals: svc}
}

// Earnings merangkum komisi user yang login, dipecah paid/unpaid.
func (h *ReferralHandler) Earnings(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}

	summary, err := h.Referrals.GetUserReferralEarnings(uid)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    summary,
	})
}

// ListReferrals mendaftar user yang pernah diundang, lengkap dengan jumlah
// dan nilai transaksi sukses masing-masing.
func (h *ReferralHandler) ListReferrals(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}

	rows, err := h.Referrals.GetUserReferrals(uid)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    rows,
	})
}

// Validate mengecek kode referral sebelum registrasi. Kode tidak dikenal
// bukan error, hanya valid=false.
func (h *ReferralHandler) Validate(c *fiber.Ctx) error {
	info, err := h.Referrals.ValidateReferralCode(c.Query("code"))
	if err != nil {
		return fail(c, err)
	}

	if info == nil {
		return c.JSON(fiber.Map{
			"success": true,
			"data":    fiber.Map{"valid": false},
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"valid":         true,
			"referrer_id":   info.ID,
			"referrer_name": info.Name,
		},
	})
}

// MarkPaid menandai satu komisi sudah dibayar (aksi admin, satu arah).
func (h *ReferralHandler) MarkPaid(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "ID referral tidak valid",
		})
	}

	ref, err := h.Referrals.MarkReferralAsPaid(id)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Komisi ditandai sudah dibayar",
		"data":    ref,
	})
}
