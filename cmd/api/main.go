package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/georgemunganga/printa-garments/internal/config"
	"github.com/georgemunganga/printa-garments/internal/database"
	"github.com/georgemunganga/printa-garments/internal/domain"
	"github.com/georgemunganga/printa-garments/internal/events"
	"github.com/georgemunganga/printa-garments/internal/logger"
	"github.com/georgemunganga/printa-garments/internal/modules/auth"
	"github.com/georgemunganga/printa-garments/internal/modules/garment"
	"github.com/georgemunganga/printa-garments/internal/modules/order"
	"github.com/georgemunganga/printa-garments/internal/modules/quantity"
	"github.com/georgemunganga/printa-garments/internal/storage/memory"
	"github.com/georgemunganga/printa-garments/internal/storage/postgres"
)

func main() {
	app := &cli.App{
		Name:  "printa-garments",
		Usage: "garment tracking and order fulfilment API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "optional dotenv file"},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "apply database migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "down", Usage: "revert every migration"},
				},
				Action: runMigrations,
			},
			{
				Name:      "issue-token",
				Usage:     "sign a staff token for a scanning station or operator",
				ArgsUsage: "<subject>",
				Action:    issueToken,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("printa-garments exited")
	}
}

func setup(c *cli.Context) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func runMigrations(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	if cfg.Store != config.StorePostgres {
		return fmt.Errorf("migrate needs STORE=postgres, got %s", cfg.Store)
	}
	dir := database.Up
	if c.Bool("down") {
		dir = database.Down
	}
	if err := database.Migrate(cfg.DatabaseURL, dir); err != nil {
		return err
	}
	log.WithField("direction", dir).Info("migrations applied")
	return nil
}

func issueToken(c *cli.Context) error {
	cfg, _, err := setup(c)
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	token, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL).Issue(c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}

func serve(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Storage ─────────────────────────────────────────────
	var store domain.Store
	switch cfg.Store {
	case config.StorePostgres:
		if err := database.Migrate(cfg.DatabaseURL, database.Up); err != nil {
			return err
		}
		db, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		log.Info("connected to the database")
		store = postgres.NewStore(db)
	default:
		log.Warn("using in-memory store, data is lost on restart")
		store = memory.New()
	}

	// ── Events ──────────────────────────────────────────────
	var dispatcher domain.EventDispatcher = events.NewLogDispatcher(log)
	if cfg.AMQPURL != "" {
		rmq, err := events.NewRabbitMQ(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			return err
		}
		defer rmq.Close()
		dispatcher = rmq
		log.WithField("exchange", cfg.AMQPExchange).Info("publishing events to rabbitmq")
	}

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	orderService := order.NewService(store, dispatcher, log.WithField("module", "order"))
	garmentService := garment.NewService(store, dispatcher, log.WithField("module", "garment"), cfg.TokenAttempts)
	quantityService := quantity.NewService(store, dispatcher, log.WithField("module", "quantity"))

	router.Group(func(r chi.Router) {
		if cfg.JWTSecret != "" {
			r.Use(auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL).Middleware)
		} else {
			log.Warn("JWT_SECRET not set, API is unauthenticated")
		}
		order.NewHandler(orderService).RegisterRoutes(r)
		garment.NewHandler(garmentService).RegisterRoutes(r)
		quantity.NewHandler(quantityService).RegisterRoutes(r)
	})

	// ── Start Server ────────────────────────────────────────
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", cfg.Port).Info("printa-garments API starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
