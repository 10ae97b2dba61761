// Package main provides the main entry point for the referral membership engine
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/referly/referral-engine/app/scheduler"
	"github.com/referly/referral-engine/app/services"
	businessflow "github.com/referly/referral-engine/business_flow"
	"github.com/referly/referral-engine/config"
	"github.com/referly/referral-engine/models"
	"github.com/referly/referral-engine/repository"
)

// Application represents the main application structure
type Application struct {
	config *config.ProductionConfig

	Participants businessflow.ParticipantFlow
	Lists        businessflow.ListFlow
	Membership   businessflow.MembershipFlow
	Imports      businessflow.ImportFlow
	Repair       businessflow.OrphanRepairFlow
	Referrals    businessflow.ReferralCodeFlow

	stopFuncs []func()
}

func main() {
	log.Println("Starting referral membership engine...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Println("Engine started")

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	log.Println("Engine stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	// TranslateError lets unique index violations surface as
	// gorm.ErrDuplicatedKey, which the dedupe paths rely on
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeHookDispatcher selects the hook dispatcher based on configuration
func initializeHookDispatcher(cfg config.HookConfig) services.HookDispatcher {
	if cfg.Enabled && cfg.Endpoint != "" {
		return services.NewWebhookDispatcher(cfg.Endpoint, cfg.Timeout)
	}
	return services.NewMockHookDispatcher()
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Initialize repositories
	participantRepo := repository.NewParticipantRepository(db)
	listRepo := repository.NewParticipantListRepository(db)

	// Initialize services
	hooks := initializeHookDispatcher(cfg.Hook)

	// Initialize business flows
	membershipFlow := businessflow.NewMembershipFlow(participantRepo, listRepo)
	repairFlow := businessflow.NewOrphanRepairFlow(participantRepo, listRepo)
	participantFlow := businessflow.NewParticipantFlow(participantRepo, listRepo, membershipFlow, repairFlow)
	listFlow := businessflow.NewListFlow(listRepo, participantRepo, membershipFlow)
	importFlow := businessflow.NewImportFlow(
		participantRepo,
		listRepo,
		hooks,
		cfg.Engine.ImportChunkSize,
		cfg.Engine.ImportChunkPause,
	)
	referralFlow := businessflow.NewReferralCodeFlow(
		participantRepo,
		hooks,
		rc,
		cfg.Cache.RedisPrefix,
		cfg.Cache.DefaultTTL,
		cfg.Engine.ReferralCodeMaxAttempts,
		cfg.Engine.ReferralCodeSuffixLength,
		nil,
	)

	// Start the background orphan repair sweep
	if cfg.Scheduler.RepairEnabled {
		repairScheduler := scheduler.NewRepairScheduler(
			participantRepo,
			repairFlow,
			cfg.Scheduler.RepairInterval,
			cfg.Logging,
		)
		stop := repairScheduler.Start(context.Background())
		stopFuncs = append(stopFuncs, stop)
	}

	return &Application{
		config:       cfg,
		Participants: participantFlow,
		Lists:        listFlow,
		Membership:   membershipFlow,
		Imports:      importFlow,
		Repair:       repairFlow,
		Referrals:    referralFlow,
		stopFuncs:    stopFuncs,
	}, nil
}
