package cron

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BhumikP/ecomm-firebase-sub000/internal/transactions"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type pendingTransactionReader interface {
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Transaction, error)
}

type unsettledTransactionReader interface {
	ListUnsettledSuccess(ctx context.Context, maxAttempts, limit int) ([]models.Transaction, error)
}

type transactionCloser interface {
	MarkTerminal(ctx context.Context, id uuid.UUID, outcome transactions.Outcome) (*transactions.TerminalResult, error)
}
