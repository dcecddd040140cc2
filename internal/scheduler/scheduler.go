package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"
	"github.com/robfig/cron/v3"

	"github.com/simaogato/cellar-backend/internal/domain"
)

// Vault is the subset of the vault service driven by periodic jobs
type Vault interface {
	AccruePlatformFee(ctx context.Context) (*uint256.Int, error)
	Snapshot(ctx context.Context) (*domain.VaultSnapshot, error)
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Vault    Vault
	Recorder domain.SnapshotRecorder
	Logger   *slog.Logger
	Ctx      context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, vault Vault, rec domain.SnapshotRecorder, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Vault:    vault,
		Recorder: rec,
		Logger:   logger,
		Ctx:      ctx,
	}
}

// RegisterAll registers the fee accrual and snapshot tasks.
func (s *Scheduler) RegisterAll(feeAccrualCron, snapshotCron string) error {
	if _, err := s.Cron.AddFunc(feeAccrualCron, s.accrueFees); err != nil {
		return fmt.Errorf("register fee accrual task: %w", err)
	}
	if _, err := s.Cron.AddFunc(snapshotCron, s.recordSnapshot); err != nil {
		return fmt.Errorf("register snapshot task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info("scheduler started", "jobs", len(s.Cron.Entries()))
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info("scheduler stopped")
}

// RunNow executes every task once, in registration order.
func (s *Scheduler) RunNow() {
	s.accrueFees()
	s.recordSnapshot()
}

func (s *Scheduler) accrueFees() {
	minted, err := s.Vault.AccruePlatformFee(s.Ctx)
	if err != nil {
		s.Logger.Error("platform fee accrual failed", "error", err)
		return
	}
	s.Logger.Info("platform fee accrued", "fee_shares", minted.Dec())
}

func (s *Scheduler) recordSnapshot() {
	snapshot, err := s.Vault.Snapshot(s.Ctx)
	if err != nil {
		s.Logger.Error("snapshot failed", "error", err)
		return
	}
	if s.Recorder == nil {
		return
	}
	if err := s.Recorder.RecordSnapshot(s.Ctx, snapshot); err != nil {
		s.Logger.Error("record snapshot failed", "error", err)
	}
}
