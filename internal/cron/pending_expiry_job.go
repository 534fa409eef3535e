package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/BhumikP/ecomm-firebase-sub000/internal/transactions"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/logger"
)

const (
	defaultPendingTTL      = time.Hour
	defaultExpiryBatchSize = 100
	pendingExpirySource    = "expiry_sweep"
	pendingExpiryReason    = "expired"
)

// PendingExpiryJobParams configure the sweep that cancels abandoned payment intents.
type PendingExpiryJobParams struct {
	Logger       *logger.Logger
	Reader       pendingTransactionReader
	Transactions transactionCloser
	TTL          time.Duration
	BatchSize    int
}

// NewPendingExpiryJob builds the job that cancels pending transactions older than the TTL.
func NewPendingExpiryJob(params PendingExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("pending transaction reader required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transaction manager required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &pendingExpiryJob{
		logg:   params.Logger,
		reader: params.Reader,
		txns:   params.Transactions,
		ttl:    ttl,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type pendingExpiryJob struct {
	logg   *logger.Logger
	reader pendingTransactionReader
	txns   transactionCloser
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *pendingExpiryJob) Name() string { return "pending-transaction-expiry" }

func (j *pendingExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.reader.ListStalePending(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query stale pending transactions: %w", err)
	}

	var errs error
	expired := 0
	for _, txn := range stale {
		result, err := j.txns.MarkTerminal(ctx, txn.ID, transactions.Outcome{
			Status: enums.TransactionStatusCancelled,
			Reason: pendingExpiryReason,
			Source: pendingExpirySource,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire transaction %s: %w", txn.ID, err))
			continue
		}
		// a late confirmation may have closed it first
		if result != nil && result.Changed {
			expired++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"scanned": len(stale),
		"expired": expired,
	})
	j.logg.Info(logCtx, "pending transaction sweep complete")
	return errs
}
