package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/BhumikP/ecomm-firebase-sub000/internal/settlement"
	pkgerrors "github.com/BhumikP/ecomm-firebase-sub000/pkg/errors"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/logger"
)

const (
	defaultReconcileAttempts  = 5
	defaultReconcileBatchSize = 100
)

// SettlementReconcileJobParams configure the retry sweep for captured payments without an order.
type SettlementReconcileJobParams struct {
	Logger      *logger.Logger
	Reader      unsettledTransactionReader
	Settler     settlement.Settler
	MaxAttempts int
	BatchSize   int
}

// NewSettlementReconcileJob builds the job that re-drives settlement for
// successful online payments that never produced an order.
func NewSettlementReconcileJob(params SettlementReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("unsettled transaction reader required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("settler required")
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultReconcileAttempts
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatchSize
	}
	return &settlementReconcileJob{
		logg:        params.Logger,
		reader:      params.Reader,
		settler:     params.Settler,
		maxAttempts: attempts,
		batch:       batch,
	}, nil
}

type settlementReconcileJob struct {
	logg        *logger.Logger
	reader      unsettledTransactionReader
	settler     settlement.Settler
	maxAttempts int
	batch       int
}

func (j *settlementReconcileJob) Name() string { return "settlement-reconcile" }

func (j *settlementReconcileJob) Run(ctx context.Context) error {
	pending, err := j.reader.ListUnsettledSuccess(ctx, j.maxAttempts, j.batch)
	if err != nil {
		return fmt.Errorf("query unsettled transactions: %w", err)
	}

	var errs error
	settled, shortages := 0, 0
	for _, txn := range pending {
		result, err := j.settler.Settle(ctx, txn.ID)
		switch {
		case err == nil:
			if result != nil && !result.Replayed {
				settled++
			}
		case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
			// refund path; the failure was already recorded and emitted
			shortages++
		default:
			errs = multierr.Append(errs, fmt.Errorf("settle transaction %s: %w", txn.ID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":            len(pending),
		"settled":            settled,
		"insufficient_stock": shortages,
		"max_attempts":       j.maxAttempts,
	})
	j.logg.Info(logCtx, "settlement reconciliation complete")
	return errs
}
