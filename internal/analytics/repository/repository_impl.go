package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/alankar/internal/analytics/domain"
	billdomain "github.com/smallbiznis/alankar/internal/bill/domain"
	customerdomain "github.com/smallbiznis/alankar/internal/customer/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CountCustomers(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&customerdomain.Customer{}).Count(&n).Error
	return n, err
}

func (r *repo) CountBills(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&billdomain.Bill{}).Count(&n).Error
	return n, err
}

// SumPaid totals the payment ledger, never bills.total_amount.
func (r *repo) SumPaid(ctx context.Context, db *gorm.DB) (decimal.Decimal, error) {
	return sum(ctx, db.Model(&billdomain.BillPayment{}), "COALESCE(SUM(amount_paid), 0)")
}

func (r *repo) SumDues(ctx context.Context, db *gorm.DB) (decimal.Decimal, error) {
	return sum(ctx, db.Model(&billdomain.Bill{}), "COALESCE(SUM(COALESCE(balance_dues, 0)), 0)")
}

func (r *repo) RevenuePayments(ctx context.Context, db *gorm.DB, window domain.RevenueWindow) ([]domain.PaymentRow, error) {
	stmt := db.WithContext(ctx).
		Table("bill_payments").
		Select("bill_payments.payment_date, bill_payments.amount_paid").
		Joins("JOIN bills ON bills.id = bill_payments.bill_id").
		Where("bills.bill_date >= ? AND bills.bill_date < ?", window.From.UTC(), window.To.UTC())
	if len(window.ExcludedModes) > 0 {
		stmt = stmt.Where("bill_payments.payment_mode NOT IN ?", window.ExcludedModes)
	}

	var rows []domain.PaymentRow
	if err := stmt.Order("bill_payments.payment_date").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func sum(ctx context.Context, stmt *gorm.DB, expr string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	if err := stmt.WithContext(ctx).Select(expr).Row().Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
