package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/alankar/pkg/db/pagination"
)

type ListCustomerRequest struct {
	Query string
	Page  int
	Limit int
}

type ListCustomerFilter struct {
	Query  string
	Offset int
	Limit  int
}

type CreateCustomerRequest struct {
	Name    string   `json:"name"`
	Phone   []string `json:"phone"`
	Address *string  `json:"address"`
}

// UpdateCustomerRequest applies only the fields that are present.
type UpdateCustomerRequest struct {
	Name    *string   `json:"name"`
	Phone   *[]string `json:"phone"`
	Address *string   `json:"address"`
}

type DeleteCustomerResult struct {
	Customer     Customer
	DeletedBills int64
}

type Service interface {
	Create(ctx context.Context, req CreateCustomerRequest) (Customer, error)
	GetByID(ctx context.Context, id string) (Customer, error)
	Update(ctx context.Context, id string, req UpdateCustomerRequest) (Customer, error)
	Delete(ctx context.Context, id string) (DeleteCustomerResult, error)
	List(ctx context.Context, req ListCustomerRequest) (pagination.Page[CustomerWithStats], error)
}

var (
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidPhone = errors.New("invalid_phone")
	ErrInvalidID    = errors.New("invalid_id")
	ErrInvalidQuery = errors.New("invalid_query")
	ErrNotFound     = errors.New("not_found")
)
