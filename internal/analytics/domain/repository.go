package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	CountCustomers(ctx context.Context, db *gorm.DB) (int64, error)
	CountBills(ctx context.Context, db *gorm.DB) (int64, error)
	SumPaid(ctx context.Context, db *gorm.DB) (decimal.Decimal, error)
	SumDues(ctx context.Context, db *gorm.DB) (decimal.Decimal, error)
	RevenuePayments(ctx context.Context, db *gorm.DB, window RevenueWindow) ([]PaymentRow, error)
}
