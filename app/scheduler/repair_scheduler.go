// Package scheduler
package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	businessflow "github.com/referly/referral-engine/business_flow"
	"github.com/referly/referral-engine/config"
	"github.com/referly/referral-engine/repository"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RepairScheduler periodically sweeps every tenant for orphan participants
// and assigns them to their tenant's default list. It is the background
// counterpart of the opportunistic repair triggered by read paths.
type RepairScheduler struct {
	participantRepo repository.ParticipantRepository
	repairFlow      businessflow.OrphanRepairFlow
	logger          *log.Logger
	interval        time.Duration
}

func NewRepairScheduler(
	participantRepo repository.ParticipantRepository,
	repairFlow businessflow.OrphanRepairFlow,
	interval time.Duration,
	logCfg config.LoggingConfig,
) *RepairScheduler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	s := &RepairScheduler{
		participantRepo: participantRepo,
		repairFlow:      repairFlow,
		interval:        interval,
	}
	s.initLogger(logCfg)

	return s
}

// initLogger configures a logger that writes to both stdout and a rotated file
func (s *RepairScheduler) initLogger(cfg config.LoggingConfig) {
	logPath := cfg.RepairLogFile
	if logPath == "" {
		logPath = filepath.Join("data", "repair.log")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		s.logger = log.Default()
		s.logger.Printf("repair: failed to create log directory: %v", err)
		return
	}

	rotated := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    cfg.RotateMaxSize,
		MaxAge:     cfg.RotateMaxAge,
		MaxBackups: cfg.RotateBackups,
		Compress:   cfg.RotateCompress,
	}
	mw := io.MultiWriter(os.Stdout, rotated)
	s.logger = log.New(mw, "repair ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *RepairScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *RepairScheduler) runOnce(ctx context.Context) {
	tenantIDs, err := s.participantRepo.DistinctTenantIDs(ctx)
	if err != nil {
		s.logger.Printf("repair: list tenants failed: %v", err)
		return
	}
	if len(tenantIDs) == 0 {
		return
	}

	start := time.Now()
	fixed := 0
	for _, tenantID := range tenantIDs {
		if ctx.Err() != nil {
			s.logger.Printf("repair: sweep interrupted, %d tenants remaining", len(tenantIDs))
			return
		}

		result, err := s.repairFlow.RepairOrphans(ctx, tenantID)
		if err != nil {
			s.logger.Printf("repair: tenant %d failed: %v", tenantID, err)
			continue
		}
		if result.Fixed > 0 {
			s.logger.Printf("repair: tenant %d: assigned %d orphans to list %q (%s)", tenantID, result.Fixed, result.ListName, result.ListUUID)
			fixed += result.Fixed
		}
	}

	if fixed > 0 {
		s.logger.Printf("repair: sweep finished: %d tenants scanned, %d orphans fixed in %s", len(tenantIDs), fixed, time.Since(start))
	}
}
