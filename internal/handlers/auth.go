package handlers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/rifkiandrian/topupin_be/internal/models"
	"github.com/rifkiandrian/topupin_be/internal/services/referral"
	"github.com/rifkiandrian/topupin_be/internal/utils"
)

type AuthHandler struct {
	DB        *gorm.DB
	Referrals *referral.Service
	JWTSecret string
	Expires   int
}

type RegisterReq struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6"`
	Phone        string `json:"phone" validate:"omitempty,min=8"`
	ReferralCode string `json:"referral_code"` // kode milik pengundang, opsional
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Password = strings.TrimSpace(req.Password)

	if err := validate.Struct(req); err != nil {
		return validationFail(c, structErrors(err))
	}

	name := req.Name
	email := req.Email
	phone := req.Phone

	pw, err := utils.HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Gagal memproses password",
		})
	}

	// Kode referral yang tidak dikenal bukan alasan menolak registrasi;
	// user tetap dibuat tanpa pengundang.
	var referrer *referral.ReferrerInfo
	if req.ReferralCode != "" {
		referrer, err = h.Referrals.ValidateReferralCode(req.ReferralCode)
		if err != nil {
			return fail(c, err)
		}
		if referrer == nil {
			log.Printf("register: kode referral tidak dikenal: %s", req.ReferralCode)
		}
	}

	u := models.User{
		Name:     name,
		Email:    email,
		Phone:    phone,
		Password: pw,
		Role:     models.RoleCustomer,
		IsActive: true,
	}
	if referrer != nil {
		id := referrer.ID
		u.ReferredByID = &id
	}

	// Keunikan email dan kode referral ditegakkan oleh unique index;
	// bentrok kode yang baru dibuat cukup dicoba ulang dengan kode baru.
	var createErr error
	for attempt := 0; attempt < 5; attempt++ {
		u.ReferralCode = utils.GenerateReferralCode()
		createErr = h.DB.Create(&u).Error
		if createErr == nil {
			break
		}
		if !errors.Is(createErr, gorm.ErrDuplicatedKey) {
			break
		}
		var byEmail models.User
		if err := h.DB.Where("email = ?", email).First(&byEmail).Error; err == nil {
			e := FieldErrors{}
			e.Add("email", "Email sudah terdaftar")
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": "Email sudah terdaftar",
				"errors":  e,
			})
		}
	}
	if createErr != nil {
		log.Printf("register: gagal membuat user: %v", createErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Gagal register",
		})
	}

	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Gagal membuat token",
		})
	}

	setAuthCookie(c, token, h.Expires)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Register berhasil",
		"data": fiber.Map{
			"user": fiber.Map{
				"id":            u.ID,
				"name":          u.Name,
				"email":         u.Email,
				"phone":         u.Phone,
				"role":          u.Role,
				"referral_code": u.ReferralCode,
			},
		},
	})
}

type LoginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid body",
		})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)
	req.Email, req.Password = email, password

	if err := validate.Struct(req); err != nil {
		return validationFail(c, structErrors(err))
	}

	var u models.User
	err := h.DB.Where("email = ?", email).First(&u).Error
	if err != nil {
		// Pesan sengaja sama dengan password salah: jangan bocorkan
		// apakah email terdaftar.
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Email atau password salah",
		})
	}

	if !u.IsActive {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Akun tidak aktif",
		})
	}

	if !utils.CheckPassword(u.Password, password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Email atau password salah",
		})
	}

	token, err := utils.SignJWT(h.JWTSecret, u.ID.String(), string(u.Role), h.Expires)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Gagal membuat token",
		})
	}

	setAuthCookie(c, token, h.Expires)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login berhasil",
		"data": fiber.Map{
			"user": fiber.Map{
				"id":            u.ID,
				"name":          u.Name,
				"email":         u.Email,
				"role":          u.Role,
				"referral_code": u.ReferralCode,
			},
		},
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     "tp_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
	})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logout berhasil",
	})
}

// Me mengembalikan identitas sesi yang sedang login.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return err
	}

	var u models.User
	if err := h.DB.First(&u, "id = ?", uid).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "User tidak ditemukan",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":            u.ID,
			"name":          u.Name,
			"email":         u.Email,
			"role":          u.Role,
			"referral_code": u.ReferralCode,
		},
	})
}

func setAuthCookie(c *fiber.Ctx, token string, expiresMin int) {
	c.Cookie(&fiber.Cookie{
		Name:     "tp_token",
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
		MaxAge:   expiresMin * 60,
	})
}
