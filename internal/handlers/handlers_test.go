package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rifkiandrian/topupin_be/internal/middleware"
	"github.com/rifkiandrian/topupin_be/internal/models"
	"github.com/rifkiandrian/topupin_be/internal/provider"
	"github.com/rifkiandrian/topupin_be/internal/services/referral"
	"github.com/rifkiandrian/topupin_be/internal/services/transaction"
)

const testJWTSecret = "rahasia-test"

type testEnv struct {
	App    *fiber.App
	DB     *gorm.DB
	Engine *transaction.Service
}

// newTestEnv merakit app dengan wiring rute yang sama dengan cmd/api,
// memakai sqlite in-memory dan gateway mock.
func newTestEnv(t *testing.T, gw provider.Gateway, cbUsername, cbAPIKey string) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Product{}, &models.Transaction{}, &models.Referral{},
	))

	if gw == nil {
		gw = provider.NewMock()
	}

	refSvc := referral.NewService(db)
	engine := transaction.NewService(db, gw, refSvc)

	authH := &AuthHandler{DB: db, Referrals: refSvc, JWTSecret: testJWTSecret, Expires: 60}
	trxH := NewTransactionHandler(engine)
	refH := NewReferralHandler(refSvc)
	cbH := NewCallbackHandler(engine, cbUsername, cbAPIKey)

	app := fiber.New()
	api := app.Group("/api")

	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/referral/validate", refH.Validate)
	api.Post("/callback/topup", cbH.HandleTopup)

	authed := api.Group("", middleware.JWTFromCookie(testJWTSecret), middleware.AttachJWTLocals())
	authed.Get("/me", authH.Me)
	authed.Post("/transactions", trxH.Create)
	authed.Get("/transactions", trxH.ListMine)
	authed.Get("/transactions/:trxid", trxH.GetDetail)
	authed.Get("/referral/earnings", refH.Earnings)

	admin := authed.Group("/admin", middleware.RequireRoles("admin"))
	admin.Get("/transactions", trxH.AdminList)
	admin.Post("/transactions/:trxid/refresh", trxH.AdminRefresh)

	return &testEnv{App: app, DB: db, Engine: engine}
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}, cookie string) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "tp_token", Value: cookie})
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp, parsed
}

func authCookie(t *testing.T, resp *http.Response) string {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == "tp_token" && c.Value != "" {
			return c.Value
		}
	}
	t.Fatal("cookie tp_token tidak ditemukan")
	return ""
}

func registerUser(t *testing.T, env *testEnv, name, email, referralCode string) (models.User, string) {
	t.Helper()
	resp, body := doJSON(t, env.App, "POST", "/api/auth/register", fiber.Map{
		"name": name, "email": email, "password": "rahasia123",
		"referral_code": referralCode,
	}, "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, "body: %v", body)

	var u models.User
	require.NoError(t, env.DB.First(&u, "email = ?", email).Error)
	return u, authCookie(t, resp)
}

func TestRegisterLoginFlow(t *testing.T) {
	env := newTestEnv(t, nil, "", "")

	referrer, _ := registerUser(t, env, "Pengundang", "pengundang@mail.test", "")
	require.NotEmpty(t, referrer.ReferralCode)
	require.Nil(t, referrer.ReferredByID)

	// registrasi dengan kode pengundang tersambung ke pengundangnya
	buyer, _ := registerUser(t, env, "Pembeli", "pembeli@mail.test", referrer.ReferralCode)
	require.NotNil(t, buyer.ReferredByID)
	require.Equal(t, referrer.ID, *buyer.ReferredByID)
	require.NotEqual(t, referrer.ReferralCode, buyer.ReferralCode)

	resp, body := doJSON(t, env.App, "POST", "/api/auth/login", fiber.Map{
		"email": "pembeli@mail.test", "password": "rahasia123",
	}, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])

	resp, _ = doJSON(t, env.App, "POST", "/api/auth/login", fiber.Map{
		"email": "pembeli@mail.test", "password": "salah",
	}, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// email tak terdaftar diberi pesan yang sama dengan password salah
	resp, body = doJSON(t, env.App, "POST", "/api/auth/login", fiber.Map{
		"email": "hantu@mail.test", "password": "rahasia123",
	}, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Email atau password salah", body["message"])
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t, nil, "", "")

	resp, body := doJSON(t, env.App, "POST", "/api/auth/register", fiber.Map{
		"name": "", "email": "bukan-email", "password": "123",
	}, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	errs, ok := body["errors"].(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, errs, "name")
	require.Contains(t, errs, "email")
	require.Contains(t, errs, "password")
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t, nil, "", "")

	resp, body := doJSON(t, env.App, "POST", "/api/auth/login", fiber.Map{
		"email": "", "password": "",
	}, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	errs, ok := body["errors"].(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, errs, "email")
	require.Contains(t, errs, "password")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, nil, "", "")

	registerUser(t, env, "Budi", "budi@mail.test", "")

	resp, body := doJSON(t, env.App, "POST", "/api/auth/register", fiber.Map{
		"name": "Budi Kedua", "email": "budi@mail.test", "password": "rahasia123",
	}, "")
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.Equal(t, "Email sudah terdaftar", body["message"])
}

func TestRegisterUnknownReferralCodeIgnored(t *testing.T) {
	env := newTestEnv(t, nil, "", "")

	u, _ := registerUser(t, env, "Budi", "budi@mail.test", "KODEPALSU")
	require.Nil(t, u.ReferredByID)
}

func TestLoginInactiveAccount(t *testing.T) {
	env := newTestEnv(t, nil, "", "")

	u, _ := registerUser(t, env, "Budi", "budi@mail.test", "")
	require.NoError(t, env.DB.Model(&u).Update("is_active", false).Error)

	resp, body := doJSON(t, env.App, "POST", "/api/auth/login", fiber.Map{
		"email": "budi@mail.test", "password": "rahasia123",
	}, "")
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Equal(t, "Akun tidak aktif", body["message"])
}

func TestMeRequiresAuth(t *testing.T) {
	env := newTestEnv(t, nil, "", "")

	req := httptest.NewRequest("GET", "/api/me", nil)
	resp, err := env.App.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	_, cookie := registerUser(t, env, "Budi", "budi@mail.test", "")
	okResp, body := doJSON(t, env.App, "GET", "/api/me", nil, cookie)
	require.Equal(t, fiber.StatusOK, okResp.StatusCode)
	data := body["data"].(map[string]interface{})
	require.Equal(t, "budi@mail.test", data["email"])
}

func TestReferralValidateEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, "", "")

	referrer, _ := registerUser(t, env, "Pengundang", "pengundang@mail.test", "")

	resp, body := doJSON(t, env.App, "GET", "/api/referral/validate?code="+referrer.ReferralCode, nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	require.Equal(t, true, data["valid"])
	require.Equal(t, "Pengundang", data["referrer_name"])

	resp, body = doJSON(t, env.App, "GET", "/api/referral/validate?code=KODEPALSU", nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]interface{})
	require.Equal(t, false, data["valid"])
}

func seedProduct(t *testing.T, env *testEnv, sku string, price int64) models.Product {
	t.Helper()
	p := models.Product{
		SKU: sku, Name: "Produk " + sku,
		Category: models.CategoryMobileCredit,
		Price:    price, BasePrice: price - 250,
		IsActive: true, DenominationType: models.DenominationFixed,
	}
	require.NoError(t, env.DB.Create(&p).Error)
	return p
}

func TestCreateTransactionEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, "", "")

	_, cookie := registerUser(t, env, "Budi", "budi@mail.test", "")
	product := seedProduct(t, env, "TSEL5", 5500)

	resp, body := doJSON(t, env.App, "POST", "/api/transactions", fiber.Map{
		"product_id": product.ID, "customer_no": "081234567890",
	}, cookie)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, "body: %v", body)
	data := body["data"].(map[string]interface{})
	require.NotEmpty(t, data["transaction_id"])
	// mock default: order diterima provider, status jadi processing
	require.Equal(t, string(models.TransactionStatusProcessing), data["status"])

	// body kurang lengkap ditolak sebelum menyentuh engine
	resp, _ = doJSON(t, env.App, "POST", "/api/transactions", fiber.Map{
		"product_id": product.ID,
	}, cookie)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestTransactionDetailOwnership(t *testing.T) {
	env := newTestEnv(t, nil, "", "")

	_, ownerCookie := registerUser(t, env, "Pemilik", "pemilik@mail.test", "")
	_, otherCookie := registerUser(t, env, "Orang Lain", "lain@mail.test", "")
	product := seedProduct(t, env, "TSEL5", 5500)

	_, body := doJSON(t, env.App, "POST", "/api/transactions", fiber.Map{
		"product_id": product.ID, "customer_no": "081234567890",
	}, ownerCookie)
	trxID := body["data"].(map[string]interface{})["transaction_id"].(string)

	resp, _ := doJSON(t, env.App, "GET", "/api/transactions/"+trxID, nil, ownerCookie)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// transaksi orang lain disamarkan sebagai tidak ditemukan
	resp, _ = doJSON(t, env.App, "GET", "/api/transactions/"+trxID, nil, otherCookie)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	env := newTestEnv(t, nil, "", "")

	_, cookie := registerUser(t, env, "Budi", "budi@mail.test", "")

	resp, err := env.App.Test(withCookie(httptest.NewRequest("GET", "/api/admin/transactions", nil), cookie), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func withCookie(req *http.Request, cookie string) *http.Request {
	req.AddCookie(&http.Cookie{Name: "tp_token", Value: cookie})
	return req
}

func TestCallbackTopupFlow(t *testing.T) {
	const username, apiKey = "budi1234", "apikey-secret"
	env := newTestEnv(t, nil, username, apiKey)

	referrer, _ := registerUser(t, env, "Pengundang", "pengundang@mail.test", "")
	buyer, cookie := registerUser(t, env, "Pembeli", "pembeli@mail.test", referrer.ReferralCode)
	require.NotNil(t, buyer.ReferredByID)
	product := seedProduct(t, env, "TSEL10", 10000)

	_, body := doJSON(t, env.App, "POST", "/api/transactions", fiber.Map{
		"product_id": product.ID, "customer_no": "081234567890",
	}, cookie)
	trxID := body["data"].(map[string]interface{})["transaction_id"].(string)

	// signature salah ditolak
	resp, _ := doJSON(t, env.App, "POST", "/api/callback/topup", fiber.Map{
		"ref_id": trxID, "status": "Sukses", "response_code": "OK", "sign": "ngawur",
	}, "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	sign := provider.Signature(username, apiKey, trxID)
	payload := fiber.Map{
		"ref_id": trxID, "provider_ref": "DF-999", "status": "Sukses",
		"response_code": "OK", "sn": "SN-12345", "sign": sign,
	}

	resp, _ = doJSON(t, env.App, "POST", "/api/callback/topup", payload, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var trx models.Transaction
	require.NoError(t, env.DB.First(&trx, "transaction_id = ?", trxID).Error)
	require.Equal(t, models.TransactionStatusSuccess, trx.Status)
	require.Equal(t, "DF-999", *trx.ExternalTransactionID)
	require.Equal(t, "SN-12345", *trx.SerialNumber)

	// callback sukses kedua tidak menggandakan komisi
	resp, _ = doJSON(t, env.App, "POST", "/api/callback/topup", payload, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var refs []models.Referral
	require.NoError(t, env.DB.Find(&refs).Error)
	require.Len(t, refs, 1)
	require.Equal(t, referrer.ID, refs[0].ReferrerID)
	require.Equal(t, int64(500), refs[0].CommissionAmount)
}

func TestCallbackUnknownTransactionAcked(t *testing.T) {
	env := newTestEnv(t, nil, "", "")

	resp, body := doJSON(t, env.App, "POST", "/api/callback/topup", fiber.Map{
		"ref_id": "TRX-USANG", "status": "Sukses", "response_code": "OK",
	}, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])
	require.Equal(t, "Transaksi tidak dikenal, diabaikan", body["message"])
}

func TestCallbackFailedStatus(t *testing.T) {
	env := newTestEnv(t, nil, "", "")

	_, cookie := registerUser(t, env, "Budi", "budi@mail.test", "")
	product := seedProduct(t, env, "TSEL5", 5500)

	_, body := doJSON(t, env.App, "POST", "/api/transactions", fiber.Map{
		"product_id": product.ID, "customer_no": "081234567890",
	}, cookie)
	trxID := body["data"].(map[string]interface{})["transaction_id"].(string)

	resp, _ := doJSON(t, env.App, "POST", "/api/callback/topup", fiber.Map{
		"ref_id": trxID, "status": "Gagal", "response_code": "ERR",
		"message": "Nomor tujuan salah",
	}, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var trx models.Transaction
	require.NoError(t, env.DB.First(&trx, "transaction_id = ?", trxID).Error)
	require.Equal(t, models.TransactionStatusFailed, trx.Status)
}
