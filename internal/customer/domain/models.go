package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Customer struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"not null" json:"name"`
	Phones    []CustomerPhone `gorm:"foreignKey:CustomerID" json:"-"`
	Phone     []string        `gorm:"-" json:"phone"`
	Address   *string         `json:"address"`
	CreatedAt time.Time       `gorm:"not null;index" json:"createdAt"`
	UpdatedAt time.Time       `gorm:"not null" json:"updatedAt"`
}

// CustomerPhone keeps the caller's ordering through Position.
type CustomerPhone struct {
	CustomerID snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	Position   int          `gorm:"primaryKey;autoIncrement:false"`
	Phone      string       `gorm:"not null;index"`
}

func (c *Customer) SetPhoneNumbers(numbers []string) {
	c.Phone = make([]string, 0, len(numbers))
	c.Phones = make([]CustomerPhone, 0, len(numbers))
	for _, n := range numbers {
		c.Phone = append(c.Phone, n)
		c.Phones = append(c.Phones, CustomerPhone{
			CustomerID: c.ID,
			Position:   len(c.Phones),
			Phone:      n,
		})
	}
}

// AfterFind mirrors preloaded phone rows into the JSON field.
func (c *Customer) AfterFind(tx *gorm.DB) error {
	c.syncPhoneNumbers()
	return nil
}

func (c *Customer) syncPhoneNumbers() {
	c.Phone = make([]string, 0, len(c.Phones))
	for _, p := range c.Phones {
		c.Phone = append(c.Phone, p.Phone)
	}
}

// CustomerWithStats is a customer decorated with its bill aggregates.
type CustomerWithStats struct {
	Customer
	TotalBills int64  `json:"totalBills"`
	TotalDues  string `json:"totalDues"`
}
