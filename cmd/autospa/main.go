package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"autospa/internal/config"
	"autospa/internal/http/handlers"
	applog "autospa/internal/log"
	"autospa/internal/notify"
	"autospa/internal/repos"
	"autospa/internal/services"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			defer f.Close()
			log.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}

	db, err := repos.Open(cfg.DBDriver, cfg.DBDSN, cfg.SeedDemo)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	store := repos.NewStore(db)

	// Notifications
	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.SendGridAPIKey != "" {
		sg, err := notify.NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFrom, "AutoSpa")
		if err != nil {
			log.Fatal(err)
		}
		mailer = sg
	} else {
		log.Printf("[notify] SENDGRID_API_KEY not set, emails are written to the log")
	}
	views, err := notify.NewViews()
	if err != nil {
		log.Fatal(err)
	}
	dispatcher := notify.NewDispatcher(notify.NewEmailNotifier(mailer, views), cfg.NotifyTimeout, 0)

	deps := handlers.NewDeps(store, cfg, dispatcher)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    1 << 20, // 1 MiB
	})

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(applog.Access(func(c *fiber.Ctx) bool { return c.Path() == "/healthz" }))
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: cfg.CORSOrigins != "*",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/healthz"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.global.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	}))

	// ---------- Routes ----------
	deps.Mount(app, handlers.Limits{
		Login: limiter.New(limiter.Config{
			Max:        5,
			Expiration: 10 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP() + "|login"
			},
			LimitReached: func(c *fiber.Ctx) error {
				applog.Security(c, "rate.login.hit", nil)
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many attempts. Please try again later."})
			},
		}),
		Availability: limiter.New(limiter.Config{
			Max:        15,
			Expiration: 30 * time.Second,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP() + "|avail"
			},
			LimitReached: func(c *fiber.Ctx) error {
				applog.Security(c, "rate.availability.hit", nil)
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
			},
		}),
		Checkout: limiter.New(limiter.Config{
			Max:        10,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP() + "|checkout"
			},
			LimitReached: func(c *fiber.Ctx) error {
				applog.Security(c, "rate.checkout.hit", nil)
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
			},
		}),
	})

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			applog.Error(c, "health.db", err, nil)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"ok": false})
		}
		return c.JSON(fiber.Map{"ok": true})
	})
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	})

	// ---------- Background work ----------
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go services.NewCartSweeper(deps.Cart, cfg.CartSweepInterval).Run(ctx)

	go func() {
		<-ctx.Done()
		log.Printf("[server] shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("[server] shutdown: %v", err)
		}
	}()

	addr := ":" + strings.TrimPrefix(cfg.Port, ":")
	if err := app.Listen(addr); err != nil {
		log.Printf("[server] listen: %v", err)
	}

	drain, cancel := context.WithTimeout(context.Background(), cfg.NotifyTimeout+5*time.Second)
	defer cancel()
	if err := dispatcher.Close(drain); err != nil {
		log.Printf("[notify] pending notifications dropped: %v", err)
	}
}
