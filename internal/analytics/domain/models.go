package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RevenuePoint is one calendar day of qualifying payments.
type RevenuePoint struct {
	Date       string `json:"date"`
	DailyTotal string `json:"dailyTotal"`
}

// Summary renders money as integer-rounded text; counts stay numeric.
type Summary struct {
	TotalCustomers  int64          `json:"totalCustomers"`
	TotalBills      int64          `json:"totalBills"`
	TotalPaidAmount string         `json:"totalPaidAmount"`
	TotalDues       string         `json:"totalDues"`
	SalesRevenue    []RevenuePoint `json:"salesRevenue"`
}

type PaymentRow struct {
	PaymentDate time.Time
	AmountPaid  decimal.Decimal
}

// RevenueWindow selects bills with From <= bill_date < To.
type RevenueWindow struct {
	From          time.Time
	To            time.Time
	ExcludedModes []string
}
