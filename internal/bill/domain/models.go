package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/alankar/internal/customer/domain"
	"github.com/shopspring/decimal"
)

type MakingChargeType string

const (
	MakingChargeFixed      MakingChargeType = "FIXED"
	MakingChargePerGram    MakingChargeType = "PER_GRAM"
	MakingChargePercentage MakingChargeType = "PERCENTAGE"
)

func (t MakingChargeType) Valid() bool {
	switch t {
	case MakingChargeFixed, MakingChargePerGram, MakingChargePercentage:
		return true
	}
	return false
}

type PaymentMode string

const (
	PaymentModeCash   PaymentMode = "CASH"
	PaymentModeOnline PaymentMode = "ONLINE"
	// PaymentModeDiscount records a concession on the ledger; it is not revenue.
	PaymentModeDiscount PaymentMode = "DISCOUNT"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentModeCash, PaymentModeOnline, PaymentModeDiscount:
		return true
	}
	return false
}

type Bill struct {
	ID          string              `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CustomerID  snowflake.ID        `gorm:"not null;index" json:"customerId"`
	Items       []BillItem          `gorm:"foreignKey:BillID" json:"items"`
	Payments    []BillPayment       `gorm:"foreignKey:BillID" json:"payments"`
	TotalAmount decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"totalAmount"`
	BalanceDues decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"balanceDues"`
	BillDate    time.Time           `gorm:"not null" json:"billDate"`
	CreatedAt   time.Time           `gorm:"not null;index" json:"createdAt"`
	UpdatedAt   time.Time           `gorm:"not null" json:"updatedAt"`
}

type BillItem struct {
	BillID           string              `gorm:"primaryKey;type:varchar(64)" json:"-"`
	Position         int                 `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Name             string              `gorm:"not null" json:"name"`
	WeightInGrams    decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"weightInGrams"`
	RatePer10g       decimal.Decimal     `gorm:"column:rate_per_10g;type:decimal(20,4);not null" json:"ratePer10g"`
	MakingCharge     decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"makingCharge"`
	MakingChargeType MakingChargeType    `gorm:"type:varchar(16);not null" json:"makingChargeType"`
	Discount         decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"discount"`
	TotalPrice       decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"totalPrice"`
}

type BillPayment struct {
	BillID      string          `gorm:"primaryKey;type:varchar(64)" json:"-"`
	Position    int             `gorm:"primaryKey;autoIncrement:false" json:"-"`
	AmountPaid  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amountPaid"`
	PaymentMode PaymentMode     `gorm:"type:varchar(16);not null" json:"paymentMode"`
	PaymentDate time.Time       `gorm:"not null;index" json:"paymentDate"`
	ReferenceID *string         `json:"referenceId,omitempty"`
}

// BillView is a bill joined with its customer. Customer is nil when the
// reference does not resolve.
type BillView struct {
	Bill
	Customer *customerdomain.Customer `json:"customer"`
}

// CustomerStats aggregates the bills that reference one customer.
type CustomerStats struct {
	CustomerID snowflake.ID
	TotalBills int64
	TotalDues  decimal.Decimal
}

// SetLines numbers items and payments in order and ties them to the bill.
func (b *Bill) SetLines(items []BillItem, payments []BillPayment) {
	b.Items = make([]BillItem, len(items))
	for i, item := range items {
		item.BillID = b.ID
		item.Position = i
		b.Items[i] = item
	}
	b.Payments = make([]BillPayment, len(payments))
	for i, payment := range payments {
		payment.BillID = b.ID
		payment.Position = i
		b.Payments[i] = payment
	}
}
