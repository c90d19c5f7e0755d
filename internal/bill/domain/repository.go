package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/alankar/internal/bill/query"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, bill *Bill) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Bill, error)
	// FindViewByID tolerates a missing customer.
	FindViewByID(ctx context.Context, db *gorm.DB, id string) (*BillView, error)
	Exists(ctx context.Context, db *gorm.DB, id string) (bool, error)
	Update(ctx context.Context, db *gorm.DB, bill *Bill, replaceItems, replacePayments bool) error
	Delete(ctx context.Context, db *gorm.DB, id string) error
	DeleteByCustomerID(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (int64, error)

	// Find and Count interpret a stage list produced by the query package.
	Find(ctx context.Context, db *gorm.DB, stages []query.Stage) ([]BillView, error)
	Count(ctx context.Context, db *gorm.DB, stages []query.Stage) (int64, error)

	StatsByCustomer(ctx context.Context, db *gorm.DB, customerIDs []snowflake.ID) (map[snowflake.ID]CustomerStats, error)
}
