package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/Rusu91-webdeveloper/digital-delivery/internal/cache"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/config"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/database"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/entitlement"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/handler"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/objectstore"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/queue"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/repository"
	"github.com/Rusu91-webdeveloper/digital-delivery/internal/router"
	queue_publisher "github.com/Rusu91-webdeveloper/digital-delivery/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	// Redis is optional: without it the rate limiter and response
	// cache switch off and the listing cache runs in-process.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, running without rate limit / response cache")
	}
	store := cache.Select(rdb)

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	books := repository.NewBookRepo(db)
	files := repository.NewDigitalFileRepo(db)
	items := repository.NewOrderItemRepo(db)
	downloads := repository.NewDownloadRepo(db)

	window := time.Duration(cfg.DownloadWindowDays) * 24 * time.Hour
	issuer := entitlement.NewIssuer(items, files, downloads, window)
	gate := entitlement.NewGate(downloads)
	repairer := entitlement.NewRepairer(items, issuer)
	signer := objectstore.NewSigner(cfg.SignerSecret, time.Duration(cfg.SignerTTLMin)*time.Minute)

	authH := handler.NewAuthHandler(cfg, users, tokens)
	catalogH := &handler.CatalogHandler{Books: books, Files: files}
	downloadH := handler.NewDownloadHandler(gate, downloads, signer, store)
	adminDownloadH := handler.NewAdminDownloadHandler(issuer, repairer, items, files, store)
	adminCatalogH := handler.NewAdminCatalogHandler(books, files)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, catalogH, config.LoadCacheConfig(), rdb)
	router.RegisterDownloads(e, downloadH, cfg.JWTSecret, config.LoadRateLimitConfig(), rdb)
	router.RegisterAdmin(e, adminDownloadH, adminCatalogH, cfg.JWTSecret)

	// Payment confirmations drive issuance in the background. The
	// consumer reconnects forever; a broker outage only delays
	// delivery, repair can always catch up.
	go func() {
		if err := queue.StartOrderPaidConsumer(orderPaidHandler(items, issuer, store)); err != nil {
			log.Printf("order-paid consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// orderPaidHandler issues tokens for every digital item of a paid
// order and announces each issuance on the broker. Per-item issuer
// errors are logged but do not fail the message: the order may mix
// digital and physical items, and anything missed is picked up by the
// repair pass.
func orderPaidHandler(items *repository.OrderItemRepo, issuer *entitlement.Issuer, store cache.Store) queue.Handler {
	return func(ev queue.OrderPaidEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		ids, err := items.DigitalItemIDsByOrder(ctx, ev.OrderID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			res, err := issuer.IssueForOrderItem(ctx, id)
			if err != nil {
				log.Printf("order-paid: order=%d item=%d issuance failed: %v", ev.OrderID, id, err)
				continue
			}
			if len(res.Issued) == 0 {
				continue
			}
			store.Delete(ctx, handler.ListCacheKey(ev.UserID))
			issued := queue.DownloadsIssuedEvent{
				EventID:     uuid.NewString(),
				OrderID:     ev.OrderID,
				OrderItemID: id,
				UserID:      ev.UserID,
				FileCount:   len(res.Issued),
				ExpiresAt:   res.ExpiresAt.UTC().Format(time.RFC3339),
				IssuedAt:    time.Now().UTC().Format(time.RFC3339),
			}
			if err := queue_publisher.PublishDownloadsIssued(ctx, issued); err != nil {
				log.Printf("order-paid: order=%d item=%d publish failed: %v", ev.OrderID, id, err)
			}
		}
		return nil
	}
}
