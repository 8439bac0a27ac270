package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/nvds/salesdesk/internal/billing"
	jobmetrics "github.com/nvds/salesdesk/internal/jobs"
	"github.com/nvds/salesdesk/internal/masterdata"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLoanWarmup precomputes customer loan balances into the cache.
	TaskLoanWarmup = "loans:warmup"
	// TaskSpoolCleanup removes aged receipt PDFs from the spool.
	TaskSpoolCleanup = "spool:cleanup"
)

// LoanWarmupPayload optionally narrows the warmup to specific customers.
type LoanWarmupPayload struct {
	CustomerCodes []string `json:"customer_codes,omitempty"`
}

// NewLoanWarmupTask constructs the warmup task.
func NewLoanWarmupTask(payload LoanWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLoanWarmup, data), nil
}

// CustomerLister yields the customer codes eligible for warmup.
type CustomerLister interface {
	ListCustomers(ctx context.Context, search string) ([]masterdata.Customer, error)
}

// NewLoanWarmupHandler builds the handler that refreshes the loan cache the
// billing desk reads. Running it ahead of the trading day keeps the print
// path off the loans table.
func NewLoanWarmupHandler(store billing.Store, customers CustomerLister, client *redis.Client, ttl time.Duration, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskLoanWarmup)
		var payload LoanWarmupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			_ = tracker.End(err)
			return asynq.SkipRetry
		}
		codes := payload.CustomerCodes
		if len(codes) == 0 {
			list, err := customers.ListCustomers(ctx, "")
			if err != nil {
				return tracker.End(err)
			}
			for _, c := range list {
				codes = append(codes, c.Code)
			}
		}
		if err := billing.WarmLoanBalances(ctx, store, client, ttl, codes); err != nil {
			return tracker.End(err)
		}
		logger.Info("loan cache warmed", slog.Int("customers", len(codes)))
		return tracker.End(nil)
	}
}

// SpoolCleanupPayload carries nothing today; the retention window comes
// from configuration.
type SpoolCleanupPayload struct{}

// NewSpoolCleanupTask constructs the cleanup task.
func NewSpoolCleanupTask() (*asynq.Task, error) {
	data, err := json.Marshal(SpoolCleanupPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSpoolCleanup, data), nil
}

// NewSpoolCleanupHandler removes receipt PDFs older than the retention
// window, plus any orphaned temp files from interrupted renders.
func NewSpoolCleanupHandler(dir string, retention time.Duration, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskSpoolCleanup)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return tracker.End(nil)
			}
			return tracker.End(err)
		}
		cutoff := time.Now().Add(-retention)
		removed := 0
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if !strings.HasSuffix(name, ".pdf") && !strings.HasSuffix(name, ".pdf.tmp") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, name)); err == nil {
				removed++
			}
		}
		if removed > 0 {
			logger.Info("spool cleaned", slog.Int("removed", removed))
		}
		return tracker.End(nil)
	}
}
