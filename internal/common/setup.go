package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"metaverse-ledger-go/internal/database"
	"metaverse-ledger-go/internal/gateway"
	"metaverse-ledger-go/internal/hold"
	"metaverse-ledger-go/internal/journal"
	"metaverse-ledger-go/internal/ledger"
	"metaverse-ledger-go/internal/models"
	"metaverse-ledger-go/internal/registry"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// Collaborators are the platform-side implementations the services call
// out to. Nil members fall back to logging and console implementations.
type Collaborators struct {
	Delivery  hold.Delivery
	Messenger ledger.Messenger
	Notifier  ledger.Notifier
}

type Services struct {
	DbService     *database.Service
	Identities    *registry.IdentityCache
	Holds         *registry.HoldRegistry
	Subscriptions *registry.SubscriptionRegistry
	Gateway       *gateway.Gateway
	Engine        *ledger.Engine
	Machine       *hold.Machine
	Journal       *journal.Service
}

func InitializeLogger(level string) (*zap.Logger, func()) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			log.Printf("Unknown log level %q, using info\n", level)
		} else {
			cfg.Level = lvl
		}
	}

	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config, collab Collaborators) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	baseURL, err := ResolveLedgerBaseURL(cfg.Ledger)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	zap.L().Info("Using ledger environment",
		zap.String("environment", cfg.Ledger.Environment),
		zap.String("base_url", baseURL))

	gw, err := gateway.NewGateway(gateway.Config{
		BaseURL: baseURL,
		Timeout: cfg.Ledger.RequestTimeout,
	})
	if err != nil {
		dbService.Close()
		return nil, err
	}

	messenger := collab.Messenger
	if messenger == nil {
		messenger = NewConsoleMessenger(nil)
	}
	delivery := collab.Delivery
	if delivery == nil {
		delivery = LogDelivery{}
	}

	notifier := collab.Notifier
	var journalService *journal.Service
	if cfg.Journal.Enabled() {
		journalService, err = journal.NewService(ctx, cfg.Journal, notifier)
		if err != nil {
			dbService.Close()
			return nil, fmt.Errorf("unable to initialize settlement journal: %w", err)
		}
		notifier = journalService
	}

	services := &Services{
		DbService:     dbService,
		Identities:    registry.NewIdentityCache(dbService),
		Holds:         registry.NewHoldRegistry(dbService),
		Subscriptions: registry.NewSubscriptionRegistry(dbService),
		Gateway:       gw,
		Journal:       journalService,
	}

	services.Engine, err = ledger.NewEngine(ledger.Config{
		AppKey:          cfg.Ledger.AppKey,
		AppKeyAlias:     cfg.Ledger.AppKeyAlias,
		AppSecret:       cfg.Ledger.AppSecret,
		CallbackBaseURL: cfg.Server.CallbackBaseURL,
		PathPrefix:      cfg.Server.PathPrefix,
	}, ledger.Dependencies{
		Gateway:       gw,
		Identities:    services.Identities,
		Holds:         services.Holds,
		Subscriptions: services.Subscriptions,
		Balances:      dbService,
		Notifier:      notifier,
		Messenger:     messenger,
	})
	if err != nil {
		dbService.Close()
		return nil, err
	}

	services.Machine = hold.NewMachine(services.Holds, delivery)
	return services, nil
}

// InitializeDatabaseOnly initializes just the database service without the ledger
// Useful for read-only operations like listing holds
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

// Close drains in-flight ledger requests, then closes the store.
func (cs *Services) Close(ctx context.Context) {
	if cs.Engine != nil {
		if err := cs.Engine.Wait(ctx); err != nil {
			zap.L().Warn("Ledger requests still in flight at shutdown", zap.Error(err))
		}
	}
	if cs.Journal != nil {
		cs.Journal.Close()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
