package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/rifkiandrian/topupin_be/internal/config"
	"github.com/rifkiandrian/topupin_be/internal/db"
	"github.com/rifkiandrian/topupin_be/internal/handlers"
	"github.com/rifkiandrian/topupin_be/internal/middleware"
	"github.com/rifkiandrian/topupin_be/internal/models"
	"github.com/rifkiandrian/topupin_be/internal/provider"
	"github.com/rifkiandrian/topupin_be/internal/services/catalog"
	"github.com/rifkiandrian/topupin_be/internal/services/referral"
	"github.com/rifkiandrian/topupin_be/internal/services/transaction"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Transaction{},
		&models.Referral{},
	); err != nil {
		log.Fatal(err)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("Redis tidak tersedia, cache dimatikan: %v", err)
			rdb = nil
		}
	}

	var gw provider.Gateway
	if cfg.ProviderMock {
		log.Println("Provider gateway berjalan dalam mode MOCK")
		gw = provider.NewMock()
	} else {
		gw = provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderUsername, cfg.ProviderAPIKey)
	}

	referralSvc := referral.NewService(gdb)
	catalogSvc := catalog.NewService(gdb, gw, rdb)
	engine := transaction.NewService(gdb, gw, referralSvc)

	authH := &handlers.AuthHandler{
		DB:        gdb,
		Referrals: referralSvc,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
	}
	googleH := &handlers.GoogleOAuthHandler{
		DB:              gdb,
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}
	productH := handlers.NewProductHandler(catalogSvc)
	trxH := handlers.NewTransactionHandler(engine)
	callbackH := handlers.NewCallbackHandler(engine, cfg.ProviderUsername, cfg.ProviderAPIKey)
	referralH := handlers.NewReferralHandler(referralSvc)
	adminH := handlers.NewAdminHandler(gdb, rdb)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://127.0.0.1:3000, http://localhost:3000",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)
	api.Get("/products", productH.List)
	api.Get("/products/:id", productH.GetDetail)
	api.Get("/referral/validate", referralH.Validate)

	// callback provider: tanpa JWT, autentikasi via signature
	api.Post("/callback/topup", callbackH.HandleTopup)

	// protected (JWT)
	protected := api.Group("/",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)

	protected.Get("/me", authH.Me)
	protected.Post("/transactions", trxH.Create)
	protected.Get("/transactions", trxH.ListMine)
	protected.Get("/transactions/:trxid", trxH.GetDetail)
	protected.Get("/referral/earnings", referralH.Earnings)
	protected.Get("/referral/referrals", referralH.ListReferrals)

	// admin only
	admin := protected.Group("/admin", middleware.RequireRoles("admin"))
	admin.Get("/transactions", trxH.AdminList)
	admin.Post("/transactions/:trxid/refresh", trxH.AdminRefresh)
	admin.Post("/products/sync", productH.Sync)
	admin.Post("/referrals/:id/paid", referralH.MarkPaid)
	admin.Get("/stats", adminH.GetStats)
	admin.Get("/revenue", adminH.GetRevenue)

	log.Fatal(app.Listen(":" + cfg.AppPort))
}
