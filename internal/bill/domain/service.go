package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/alankar/pkg/db/pagination"
)

type BillItemInput struct {
	Name             string              `json:"name"`
	WeightInGrams    decimal.Decimal     `json:"weightInGrams"`
	RatePer10g       decimal.Decimal     `json:"ratePer10g"`
	MakingCharge     decimal.Decimal     `json:"makingCharge"`
	MakingChargeType MakingChargeType    `json:"makingChargeType"`
	Discount         decimal.NullDecimal `json:"discount"`
	TotalPrice       decimal.Decimal     `json:"totalPrice"`
}

type BillPaymentInput struct {
	AmountPaid  decimal.Decimal `json:"amountPaid"`
	PaymentMode PaymentMode     `json:"paymentMode"`
	PaymentDate string          `json:"paymentDate"`
	ReferenceID *string         `json:"referenceId"`
}

type CreateBillRequest struct {
	CustomerID  string              `json:"customerId"`
	Items       []BillItemInput     `json:"items"`
	Payments    []BillPaymentInput  `json:"payments"`
	TotalAmount decimal.NullDecimal `json:"totalAmount"`
	BalanceDues decimal.NullDecimal `json:"balanceDues"`
	BillDate    string              `json:"billDate"`
}

// UpdateBillRequest applies only the fields that are present. Items and
// payments are replaced as a whole.
type UpdateBillRequest struct {
	CustomerID  *string             `json:"customerId"`
	Items       *[]BillItemInput    `json:"items"`
	Payments    *[]BillPaymentInput `json:"payments"`
	TotalAmount *decimal.Decimal    `json:"totalAmount"`
	BalanceDues *decimal.Decimal    `json:"balanceDues"`
	BillDate    *string             `json:"billDate"`
}

type SearchBillRequest struct {
	Term      string
	StartDate *time.Time
	EndDate   *time.Time
	ID        string
	Page      int
	Limit     int
}

type ListBillRequest struct {
	Page  int
	Limit int
}

type Service interface {
	Create(ctx context.Context, req CreateBillRequest) (Bill, error)
	GetByID(ctx context.Context, id string) (BillView, error)
	Update(ctx context.Context, id string, req UpdateBillRequest) (Bill, error)
	Delete(ctx context.Context, id string) (Bill, error)
	Search(ctx context.Context, req SearchBillRequest) (pagination.Page[BillView], error)
	List(ctx context.Context, req ListBillRequest) (pagination.Page[BillView], error)
}

var (
	ErrInvalidID               = errors.New("invalid_id")
	ErrInvalidCustomer         = errors.New("invalid_customer")
	ErrInvalidBillDate         = errors.New("invalid_bill_date")
	ErrInvalidItem             = errors.New("invalid_item")
	ErrInvalidMakingChargeType = errors.New("invalid_making_charge_type")
	ErrInvalidPaymentMode      = errors.New("invalid_payment_mode")
	ErrInvalidPaymentDate      = errors.New("invalid_payment_date")
	ErrNotFound                = errors.New("not_found")
	// ErrIdentifierExhausted means every generated id collided; nothing was written.
	ErrIdentifierExhausted = errors.New("identifier_exhausted")
	// ErrDuplicateID means the insert lost a race on the generated id and can be retried.
	ErrDuplicateID = errors.New("duplicate_id")
)
