package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/alankar/internal/customer/domain"
	pkgdb "github.com/smallbiznis/alankar/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(customer).Error; err != nil {
		return err
	}
	return insertPhones(ctx, db, customer.Phones)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).
		Preload("Phones", orderByPosition).
		Where("id = ?", id).
		First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Customer, error) {
	if len(ids) == 0 {
		return []domain.Customer{}, nil
	}
	var customers []domain.Customer
	err := db.WithContext(ctx).
		Preload("Phones", orderByPosition).
		Where("id IN ?", ids).
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, customer *domain.Customer, replacePhones bool) error {
	err := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("id = ?", customer.ID).
		Updates(map[string]any{
			"name":       customer.Name,
			"address":    customer.Address,
			"updated_at": customer.UpdatedAt,
		}).Error
	if err != nil {
		return err
	}
	if !replacePhones {
		return nil
	}
	if err := db.WithContext(ctx).
		Where("customer_id = ?", customer.ID).
		Delete(&domain.CustomerPhone{}).Error; err != nil {
		return err
	}
	return insertPhones(ctx, db, customer.Phones)
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if err := db.WithContext(ctx).
		Where("customer_id = ?", id).
		Delete(&domain.CustomerPhone{}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.Customer{}).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListCustomerFilter) ([]domain.Customer, error) {
	var customers []domain.Customer
	stmt := applyFilter(db.WithContext(ctx).Model(&domain.Customer{}), filter).
		Preload("Phones", orderByPosition).
		Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		stmt = stmt.Offset(filter.Offset)
	}
	if err := stmt.Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB, filter domain.ListCustomerFilter) (int64, error) {
	var total int64
	err := applyFilter(db.WithContext(ctx).Model(&domain.Customer{}), filter).
		Count(&total).Error
	return total, err
}

func applyFilter(stmt *gorm.DB, filter domain.ListCustomerFilter) *gorm.DB {
	term := strings.TrimSpace(filter.Query)
	if term == "" {
		return stmt
	}
	pattern := "%" + pkgdb.EscapeLike(strings.ToLower(term)) + "%"
	return stmt.Where(
		`LOWER(customers.name) LIKE ? ESCAPE '!'
		 OR LOWER(COALESCE(customers.address, '')) LIKE ? ESCAPE '!'
		 OR EXISTS (SELECT 1 FROM customer_phones cp WHERE cp.customer_id = customers.id AND LOWER(cp.phone) LIKE ? ESCAPE '!')`,
		pattern, pattern, pattern,
	)
}

func insertPhones(ctx context.Context, db *gorm.DB, phones []domain.CustomerPhone) error {
	if len(phones) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&phones).Error
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}
