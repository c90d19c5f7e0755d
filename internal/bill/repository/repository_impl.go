package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/alankar/internal/bill/domain"
	"github.com/smallbiznis/alankar/internal/bill/query"
	customerdomain "github.com/smallbiznis/alankar/internal/customer/domain"
	pkgdb "github.com/smallbiznis/alankar/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errCountStage = errors.New("count stage in data pipeline")

type repo struct {
	customers customerdomain.Repository
}

func Provide(customers customerdomain.Repository) domain.Repository {
	return &repo{customers: customers}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, bill *domain.Bill) error {
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(bill).Error; err != nil {
		return err
	}
	return insertLines(ctx, db, bill)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Bill, error) {
	var bill domain.Bill
	err := withLines(db.WithContext(ctx)).
		Where("id = ?", id).
		First(&bill).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

func (r *repo) FindViewByID(ctx context.Context, db *gorm.DB, id string) (*domain.BillView, error) {
	bill, err := r.FindByID(ctx, db, id)
	if err != nil || bill == nil {
		return nil, err
	}
	customer, err := r.customers.FindByID(ctx, db, bill.CustomerID)
	if err != nil {
		return nil, err
	}
	return &domain.BillView{Bill: *bill, Customer: customer}, nil
}

func (r *repo) Exists(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Bill{}).
		Where("id = ?", id).
		Count(&n).Error
	return n > 0, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, bill *domain.Bill, replaceItems, replacePayments bool) error {
	err := db.WithContext(ctx).
		Model(&domain.Bill{}).
		Where("id = ?", bill.ID).
		Updates(map[string]any{
			"customer_id":  bill.CustomerID,
			"total_amount": bill.TotalAmount,
			"balance_dues": bill.BalanceDues,
			"bill_date":    bill.BillDate,
			"updated_at":   bill.UpdatedAt,
		}).Error
	if err != nil {
		return err
	}

	if replaceItems {
		if err := db.WithContext(ctx).Where("bill_id = ?", bill.ID).Delete(&domain.BillItem{}).Error; err != nil {
			return err
		}
		if len(bill.Items) > 0 {
			if err := db.WithContext(ctx).Create(&bill.Items).Error; err != nil {
				return err
			}
		}
	}
	if replacePayments {
		if err := db.WithContext(ctx).Where("bill_id = ?", bill.ID).Delete(&domain.BillPayment{}).Error; err != nil {
			return err
		}
		if len(bill.Payments) > 0 {
			if err := db.WithContext(ctx).Create(&bill.Payments).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id string) error {
	if err := db.WithContext(ctx).Where("bill_id = ?", id).Delete(&domain.BillItem{}).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Where("bill_id = ?", id).Delete(&domain.BillPayment{}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Bill{}).Error
}

func (r *repo) DeleteByCustomerID(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (int64, error) {
	owned := db.Model(&domain.Bill{}).Select("id").Where("customer_id = ?", customerID)

	if err := db.WithContext(ctx).Where("bill_id IN (?)", owned).Delete(&domain.BillItem{}).Error; err != nil {
		return 0, err
	}
	if err := db.WithContext(ctx).Where("bill_id IN (?)", owned).Delete(&domain.BillPayment{}).Error; err != nil {
		return 0, err
	}
	res := db.WithContext(ctx).Where("customer_id = ?", customerID).Delete(&domain.Bill{})
	return res.RowsAffected, res.Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, stages []query.Stage) ([]domain.BillView, error) {
	stmt, counting := interpret(db.WithContext(ctx).Model(&domain.Bill{}).Select("bills.*"), stages)
	if counting {
		return nil, errCountStage
	}

	var bills []domain.Bill
	if err := withLines(stmt).Find(&bills).Error; err != nil {
		return nil, err
	}
	return r.attachCustomers(ctx, db, bills)
}

func (r *repo) Count(ctx context.Context, db *gorm.DB, stages []query.Stage) (int64, error) {
	stmt, _ := interpret(db.WithContext(ctx).Model(&domain.Bill{}), stages)
	var total int64
	err := stmt.Count(&total).Error
	return total, err
}

func (r *repo) StatsByCustomer(ctx context.Context, db *gorm.DB, customerIDs []snowflake.ID) (map[snowflake.ID]domain.CustomerStats, error) {
	stats := make(map[snowflake.ID]domain.CustomerStats, len(customerIDs))
	if len(customerIDs) == 0 {
		return stats, nil
	}

	var rows []struct {
		CustomerID snowflake.ID
		TotalBills int64
		TotalDues  decimal.Decimal
	}
	err := db.WithContext(ctx).
		Model(&domain.Bill{}).
		Select("customer_id, COUNT(*) AS total_bills, COALESCE(SUM(COALESCE(balance_dues, 0)), 0) AS total_dues").
		Where("customer_id IN ?", customerIDs).
		Group("customer_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		stats[row.CustomerID] = domain.CustomerStats{
			CustomerID: row.CustomerID,
			TotalBills: row.TotalBills,
			TotalDues:  row.TotalDues,
		}
	}
	return stats, nil
}

// interpret applies each stage in order. The second result is true when the
// list ends in a count.
func interpret(stmt *gorm.DB, stages []query.Stage) (*gorm.DB, bool) {
	counting := false
	for _, stage := range stages {
		switch stage.Kind {
		case query.KindJoin:
			if stage.Join.Required {
				stmt = stmt.Joins("JOIN customers ON customers.id = bills.customer_id")
			} else {
				stmt = stmt.Joins("LEFT JOIN customers ON customers.id = bills.customer_id")
			}
		case query.KindDateRangeFilter:
			if stage.DateRange.From != nil {
				stmt = stmt.Where("bills.created_at >= ?", stage.DateRange.From.UTC())
			}
			if stage.DateRange.To != nil {
				stmt = stmt.Where("bills.created_at <= ?", stage.DateRange.To.UTC())
			}
		case query.KindTextSearchFilter:
			stmt = applyTextSearch(stmt, stage.Text)
		case query.KindSort:
			stmt = stmt.Order("bills.created_at desc, bills.id desc")
		case query.KindSkip:
			if stage.Skip > 0 {
				stmt = stmt.Offset(stage.Skip)
			}
		case query.KindLimit:
			stmt = stmt.Limit(stage.Limit)
		case query.KindCount:
			counting = true
		}
	}
	return stmt, counting
}

func applyTextSearch(stmt *gorm.DB, text query.TextSearch) *gorm.DB {
	pattern := "%" + pkgdb.EscapeLike(strings.ToLower(text.Term)) + "%"
	conds := []string{
		"LOWER(customers.name) LIKE ? ESCAPE '!'",
		"LOWER(COALESCE(customers.address, '')) LIKE ? ESCAPE '!'",
	}
	args := []any{pattern, pattern}
	if text.PhonePrefix {
		conds = append(conds, "EXISTS (SELECT 1 FROM customer_phones cp WHERE cp.customer_id = customers.id AND cp.phone LIKE ? ESCAPE '!')")
		args = append(args, pkgdb.EscapeLike(text.Term)+"%")
	}
	return stmt.Where("("+strings.Join(conds, " OR ")+")", args...)
}

func (r *repo) attachCustomers(ctx context.Context, db *gorm.DB, bills []domain.Bill) ([]domain.BillView, error) {
	views := make([]domain.BillView, 0, len(bills))
	if len(bills) == 0 {
		return views, nil
	}

	seen := make(map[snowflake.ID]struct{}, len(bills))
	ids := make([]snowflake.ID, 0, len(bills))
	for _, b := range bills {
		if _, ok := seen[b.CustomerID]; ok {
			continue
		}
		seen[b.CustomerID] = struct{}{}
		ids = append(ids, b.CustomerID)
	}

	customers, err := r.customers.FindByIDs(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[snowflake.ID]*customerdomain.Customer, len(customers))
	for i := range customers {
		byID[customers[i].ID] = &customers[i]
	}

	for _, b := range bills {
		views = append(views, domain.BillView{Bill: b, Customer: byID[b.CustomerID]})
	}
	return views, nil
}

func withLines(stmt *gorm.DB) *gorm.DB {
	return stmt.
		Preload("Items", orderByPosition).
		Preload("Payments", orderByPosition)
}

func insertLines(ctx context.Context, db *gorm.DB, bill *domain.Bill) error {
	if len(bill.Items) > 0 {
		if err := db.WithContext(ctx).Create(&bill.Items).Error; err != nil {
			return err
		}
	}
	if len(bill.Payments) > 0 {
		if err := db.WithContext(ctx).Create(&bill.Payments).Error; err != nil {
			return err
		}
	}
	return nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}
