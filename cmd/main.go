package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/NEDA-LABS/nedapay-service/internal/adapters/biconomy"
	"github.com/NEDA-LABS/nedapay-service/internal/adapters/paycrest"
	"github.com/NEDA-LABS/nedapay-service/internal/adapters/privy"
	"github.com/NEDA-LABS/nedapay-service/internal/api/handlers"
	"github.com/NEDA-LABS/nedapay-service/internal/api/routes"
	"github.com/NEDA-LABS/nedapay-service/internal/domain/entities"
	"github.com/NEDA-LABS/nedapay-service/internal/domain/services/authsession"
	"github.com/NEDA-LABS/nedapay-service/internal/domain/services/offramp"
	"github.com/NEDA-LABS/nedapay-service/internal/domain/services/settings"
	"github.com/NEDA-LABS/nedapay-service/internal/domain/services/wallet"
	"github.com/NEDA-LABS/nedapay-service/internal/infrastructure/cache"
	"github.com/NEDA-LABS/nedapay-service/internal/infrastructure/chain"
	"github.com/NEDA-LABS/nedapay-service/internal/infrastructure/config"
	"github.com/NEDA-LABS/nedapay-service/internal/infrastructure/database"
	"github.com/NEDA-LABS/nedapay-service/internal/infrastructure/repositories"
	"github.com/NEDA-LABS/nedapay-service/internal/workers/session_reaper"
	"github.com/NEDA-LABS/nedapay-service/pkg/graceful"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.NewLogger(cfg.Environment)
	defer log.Sync()

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	redisClient, err := cache.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", "error", err)
	}

	// External adapters.
	processor := paycrest.NewClient(paycrest.Config{
		APIKey:     cfg.Paycrest.APIKey,
		BaseURL:    cfg.Paycrest.BaseURL,
		Timeout:    time.Duration(cfg.Paycrest.Timeout) * time.Second,
		MaxRetries: cfg.Paycrest.MaxRetries,
	}, log.Named("paycrest"))

	bundler := biconomy.NewClient(biconomy.Config{
		BundlerURL:   cfg.Biconomy.BaseURL,
		PaymasterKey: cfg.Biconomy.APIKey,
		Timeout:      time.Duration(cfg.Biconomy.Timeout) * time.Second,
	}, log.Named("biconomy"))

	authProvider := privy.NewClient(privy.Config{
		AppID:     cfg.Privy.AppID,
		AppSecret: cfg.Privy.AppSecret,
		BaseURL:   cfg.Privy.BaseURL,
		Timeout:   time.Duration(cfg.Privy.Timeout) * time.Second,
	}, log.Named("privy"))

	// On-chain access.
	networks := chain.NewRegistry(cfg.Blockchain, log.Named("chain"))
	signers := chain.NewSignerRegistry()
	if cfg.Blockchain.SignerKey != "" {
		signer, err := chain.NewLocalSigner(cfg.Blockchain.SignerKey)
		if err != nil {
			log.Fatal("Failed to load signer key", "error", err)
		}
		signers.Register(signer)
	}
	tokens := chain.NewTokenService(networks, signers, log.Named("tokens"))

	var names wallet.NameResolver
	if backend, err := networks.Backend(entities.ChainBase); err == nil {
		resolver, err := chain.NewBasenameResolver(backend, log.Named("basename"))
		if err != nil {
			log.Warn("Basename resolver unavailable", "error", err)
		} else {
			names = resolver
		}
	} else {
		log.Warn("Base RPC unavailable, name lookups disabled", "error", err)
	}

	// Repositories.
	settingsRepo := repositories.NewSettingsRepository(db, log)
	apiKeyRepo := repositories.NewAPIKeyRepository(db, log)
	withdrawalRepo := repositories.NewWithdrawalRepository(db, log)

	// Domain services.
	sessions := offramp.NewSessionStore(cfg.OffRamp.SessionTTL())
	balances := offramp.NewBalanceTracker(tokens, log.Named("balances"))
	initializer := offramp.NewInitializer(biconomy.NewProvider(bundler), cfg.OffRamp.SettleDelay(), log.Named("gas"))
	resolver := offramp.NewResolver(processor, redisClient, cfg.OffRamp.CacheTTL(), log.Named("resolver"))
	offrampService := offramp.NewService(processor, balances, initializer, tokens, withdrawalRepo, log.Named("offramp"))

	walletService := wallet.NewService(authProvider, names, log.Named("wallet"))
	settingsService := settings.NewService(settingsRepo, apiKeyRepo, log.Named("settings"))
	flagService := authsession.NewService(redisClient, cfg.OffRamp.SessionTTL(), log.Named("authsession"))

	signAuthFor := func(address string) offramp.SignAuthorizationFunc {
		signer, err := signers.SignerFor(address)
		if err != nil {
			return nil
		}
		local, ok := signer.(*chain.LocalSigner)
		if !ok {
			return nil
		}
		return local.SignAuthorization
	}

	// HTTP layer.
	router := routes.SetupRoutes(cfg, log, routes.Handlers{
		Health: handlers.NewHealthHandler(db, redisClient),
		OffRamp: handlers.NewOffRampHandler(
			sessions, resolver, offrampService, balances, initializer,
			walletService, withdrawalRepo, signAuthFor, log.Named("api"),
		),
		Wallet:       handlers.NewWalletHandler(walletService, log.Named("api")),
		Settings:     handlers.NewSettingsHandler(settingsService, log.Named("api")),
		SessionFlags: handlers.NewSessionFlagHandler(flagService, log.Named("api")),
		APIKeys:      settingsService,
	})

	// Background workers.
	reaper := session_reaper.NewWorker(sessions, log.Named("reaper"))
	if err := reaper.Start(); err != nil {
		log.Fatal("Failed to start session reaper", "error", err)
	}

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Environment,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	shutdown := graceful.NewShutdownManager(server, db.DB, log)
	shutdown.Register(networks)
	shutdown.Register(redisClient)
	shutdown.Register(closerFunc(func() error { reaper.Stop(); return nil }))
	shutdown.WaitForShutdown()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
