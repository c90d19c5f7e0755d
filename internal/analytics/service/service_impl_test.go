package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/alankar/internal/analytics/domain"
	"github.com/smallbiznis/alankar/internal/analytics/repository"
	billdomain "github.com/smallbiznis/alankar/internal/bill/domain"
	billrepo "github.com/smallbiznis/alankar/internal/bill/repository"
	billservice "github.com/smallbiznis/alankar/internal/bill/service"
	"github.com/smallbiznis/alankar/internal/clock"
	"github.com/smallbiznis/alankar/internal/config"
	customerdomain "github.com/smallbiznis/alankar/internal/customer/domain"
	customerrepo "github.com/smallbiznis/alankar/internal/customer/repository"
	customerservice "github.com/smallbiznis/alankar/internal/customer/service"
	"github.com/smallbiznis/alankar/internal/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

type fixture struct {
	db    *gorm.DB
	clock *clock.FakeClock
	bills billdomain.Repository
	svc   domain.Service
}

func newFixture(t *testing.T, cache domain.Cache) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	fc := clock.NewFakeClock(testNow)
	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		Repo:      repository.Provide(),
		Clock:     fc,
		Reporting: config.NewStaticReportingConfigHolder(config.DefaultReportingConfig()),
		Cache:     cache,
	})
	return &fixture{
		db:    db,
		clock: fc,
		bills: billrepo.Provide(customerrepo.Provide()),
		svc:   svc,
	}
}

type payment struct {
	amount int64
	mode   billdomain.PaymentMode
	at     time.Time
}

func (f *fixture) addBill(t *testing.T, id string, billDate time.Time, dues *int64, payments ...payment) {
	t.Helper()
	b := billdomain.Bill{
		ID:         id,
		CustomerID: snowflake.ID(1),
		BillDate:   billDate,
		CreatedAt:  billDate,
		UpdatedAt:  billDate,
	}
	if dues != nil {
		b.BalanceDues = decimal.NewNullDecimal(decimal.NewFromInt(*dues))
	}
	lines := make([]billdomain.BillPayment, 0, len(payments))
	for _, p := range payments {
		lines = append(lines, billdomain.BillPayment{
			AmountPaid:  decimal.NewFromInt(p.amount),
			PaymentMode: p.mode,
			PaymentDate: p.at,
		})
	}
	b.SetLines(nil, lines)
	require.NoError(t, f.bills.Insert(context.Background(), f.db, &b))
}

func int64p(v int64) *int64 { return &v }

func day(d int) time.Time {
	return time.Date(2024, 3, d, 9, 0, 0, 0, time.UTC)
}

func TestSummaryEmptyStore(t *testing.T) {
	f := newFixture(t, nil)

	summary, err := f.svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.TotalCustomers)
	assert.Zero(t, summary.TotalBills)
	assert.Equal(t, "0", summary.TotalPaidAmount)
	assert.Equal(t, "0", summary.TotalDues)
	assert.NotNil(t, summary.SalesRevenue)
	assert.Empty(t, summary.SalesRevenue)
}

func TestSummaryAshaExample(t *testing.T) {
	db := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(testNow)

	customers := customerrepo.Provide()
	bills := billrepo.Provide(customers)
	customerSvc := customerservice.New(customerservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Repo: customers, Bills: bills, Clock: fc,
	})
	billSvc := billservice.New(billservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Repo: bills, Clock: fc,
		Config: config.Config{BillIDMode: config.BillIDModeHuman, BillIDPrefix: "KA"},
	})
	svc := New(Params{DB: db, Log: zap.NewNop(), Repo: repository.Provide(), Clock: fc})

	asha, err := customerSvc.Create(context.Background(), customerdomain.CreateCustomerRequest{
		Name:  "Asha",
		Phone: []string{"9876543210"},
	})
	require.NoError(t, err)

	today := testNow.Format("2006-01-02")
	_, err = billSvc.Create(context.Background(), billdomain.CreateBillRequest{
		CustomerID: asha.ID.String(),
		BillDate:   today,
		Payments: []billdomain.BillPaymentInput{{
			AmountPaid:  decimal.NewFromInt(5000),
			PaymentMode: billdomain.PaymentModeCash,
			PaymentDate: today,
		}},
	})
	require.NoError(t, err)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, summary.TotalCustomers)
	assert.EqualValues(t, 1, summary.TotalBills)
	assert.Equal(t, "5000", summary.TotalPaidAmount)
	assert.Equal(t, "0", summary.TotalDues)
	assert.Equal(t, []domain.RevenuePoint{{Date: today, DailyTotal: "5000"}}, summary.SalesRevenue)
}

func TestSummaryRevenueSparseAscending(t *testing.T) {
	f := newFixture(t, nil)

	// payments dated on days other than the bill date bucket by payment day
	f.addBill(t, "KA-0000000001", day(10), int64p(250),
		payment{1000, billdomain.PaymentModeCash, day(12)},
		payment{500, billdomain.PaymentModeOnline, day(10)},
	)
	f.addBill(t, "KA-0000000002", day(12), nil,
		payment{300, billdomain.PaymentModeOnline, day(12).Add(5 * time.Hour)},
		payment{999, billdomain.PaymentModeDiscount, day(12)},
	)
	f.addBill(t, "KA-0000000003", day(2), int64p(1000),
		payment{40, billdomain.PaymentModeCash, day(2)},
	)
	// bill date outside the trailing window: counted in totals only
	f.addBill(t, "KA-0000000004", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), nil,
		payment{7000, billdomain.PaymentModeCash, day(14)},
	)
	// no payments at all
	f.addBill(t, "KA-0000000005", day(14), int64p(5))

	summary, err := f.svc.Summary(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 5, summary.TotalBills)
	assert.Equal(t, "9839", summary.TotalPaidAmount)
	assert.Equal(t, "1255", summary.TotalDues)
	assert.Equal(t, []domain.RevenuePoint{
		{Date: "2024-03-02", DailyTotal: "40"},
		{Date: "2024-03-10", DailyTotal: "500"},
		{Date: "2024-03-12", DailyTotal: "1300"},
	}, summary.SalesRevenue)

	for i := 1; i < len(summary.SalesRevenue); i++ {
		assert.Less(t, summary.SalesRevenue[i-1].Date, summary.SalesRevenue[i].Date)
	}
}

func TestSummaryWindowBoundaries(t *testing.T) {
	f := newFixture(t, nil)

	startOfWindow := time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC)
	f.addBill(t, "KA-00000000a1", startOfWindow, nil, payment{10, billdomain.PaymentModeCash, startOfWindow})
	f.addBill(t, "KA-00000000a2", startOfWindow.Add(-time.Second), nil, payment{20, billdomain.PaymentModeCash, startOfWindow})
	endOfToday := time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC)
	f.addBill(t, "KA-00000000a3", endOfToday, nil, payment{30, billdomain.PaymentModeCash, endOfToday})
	f.addBill(t, "KA-00000000a4", endOfToday.Add(time.Second), nil, payment{40, billdomain.PaymentModeCash, endOfToday})

	summary, err := f.svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.RevenuePoint{
		{Date: "2024-02-14", DailyTotal: "10"},
		{Date: "2024-03-15", DailyTotal: "30"},
	}, summary.SalesRevenue)
}

func TestSummaryRoundsMoney(t *testing.T) {
	f := newFixture(t, nil)
	b := billdomain.Bill{
		ID:          "KA-00000000b1",
		CustomerID:  1,
		BalanceDues: decimal.NewNullDecimal(decimal.RequireFromString("10.5")),
		BillDate:    day(14),
		CreatedAt:   day(14),
		UpdatedAt:   day(14),
	}
	b.SetLines(nil, []billdomain.BillPayment{
		{AmountPaid: decimal.RequireFromString("99.4"), PaymentMode: billdomain.PaymentModeCash, PaymentDate: day(14)},
	})
	require.NoError(t, f.bills.Insert(context.Background(), f.db, &b))

	summary, err := f.svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "99", summary.TotalPaidAmount)
	assert.Equal(t, "11", summary.TotalDues)
	assert.Equal(t, "99", summary.SalesRevenue[0].DailyTotal)
}

func TestRevenueWindowTimezone(t *testing.T) {
	cfg := config.DefaultReportingConfig()
	cfg.Timezone = "Asia/Kolkata"
	loc := cfg.Location()

	// 20:00 UTC on the 15th is already the 16th in Kolkata
	w := RevenueWindow(time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC), cfg)
	assert.True(t, time.Date(2024, 2, 15, 0, 0, 0, 0, loc).Equal(w.From), w.From)
	assert.True(t, time.Date(2024, 3, 17, 0, 0, 0, 0, loc).Equal(w.To), w.To)
	assert.Equal(t, []string{"DISCOUNT"}, w.ExcludedModes)
}

func TestBucketByDayUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	points := BucketByDay([]domain.PaymentRow{
		{PaymentDate: time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC), AmountPaid: decimal.NewFromInt(5)},
		{PaymentDate: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), AmountPaid: decimal.NewFromInt(7)},
	}, loc)
	assert.Equal(t, []domain.RevenuePoint{
		{Date: "2024-03-15", DailyTotal: "7"},
		{Date: "2024-03-16", DailyTotal: "5"},
	}, points)
}

type cacheMock struct {
	mock.Mock
}

func (m *cacheMock) Get(ctx context.Context, key string) (*domain.Summary, error) {
	args := m.Called(ctx, key)
	res := args.Get(0)
	if res == nil {
		return nil, args.Error(1)
	}
	return res.(*domain.Summary), args.Error(1)
}

func (m *cacheMock) Set(ctx context.Context, key string, summary domain.Summary) error {
	return m.Called(ctx, key, summary).Error(0)
}

func TestSummaryServedFromCache(t *testing.T) {
	c := &cacheMock{}
	cached := &domain.Summary{TotalBills: 42, TotalPaidAmount: "1", TotalDues: "2", SalesRevenue: []domain.RevenuePoint{}}
	c.On("Get", mock.Anything, "analytics:summary:2024-03-15").Return(cached, nil)
	f := newFixture(t, c)

	summary, err := f.svc.Summary(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 42, summary.TotalBills)
	c.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
}

func TestSummaryMissPopulatesCache(t *testing.T) {
	c := &cacheMock{}
	c.On("Get", mock.Anything, "analytics:summary:2024-03-15").Return(nil, nil)
	c.On("Set", mock.Anything, "analytics:summary:2024-03-15", mock.AnythingOfType("domain.Summary")).Return(nil)
	f := newFixture(t, c)

	_, err := f.svc.Summary(context.Background())
	require.NoError(t, err)
	c.AssertExpectations(t)
}

func TestSummaryCacheFailureFallsBackToStore(t *testing.T) {
	c := &cacheMock{}
	c.On("Get", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))
	c.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))
	f := newFixture(t, c)

	summary, err := f.svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0", summary.TotalPaidAmount)
}

type failingRepo struct {
	domain.Repository
}

func (r *failingRepo) SumDues(context.Context, *gorm.DB) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("store unavailable")
}

func TestSummaryPropagatesBranchFailure(t *testing.T) {
	db := dbtest.Open(t)
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Repo:  &failingRepo{Repository: repository.Provide()},
		Clock: clock.NewFakeClock(testNow),
	})

	_, err := svc.Summary(context.Background())
	assert.EqualError(t, err, "store unavailable")
}
