package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/alankar/internal/analytics/cache"
	"github.com/smallbiznis/alankar/internal/analytics/domain"
	"github.com/smallbiznis/alankar/internal/clock"
	"github.com/smallbiznis/alankar/internal/config"
	"github.com/smallbiznis/alankar/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const dayLayout = "2006-01-02"

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Repo      domain.Repository
	Clock     clock.Clock
	Reporting *config.ReportingConfigHolder
	Cache     domain.Cache     `optional:"true"`
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	clock     clock.Clock
	reporting *config.ReportingConfigHolder
	cache     domain.Cache
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	s := &Service{
		db:        p.DB,
		log:       p.Log.Named("analytics.service"),
		repo:      p.Repo,
		clock:     p.Clock,
		reporting: p.Reporting,
		cache:     p.Cache,
		metrics:   p.Metrics,
	}
	if s.clock == nil {
		s.clock = clock.NewSystemClock()
	}
	if s.reporting == nil {
		s.reporting = config.NewStaticReportingConfigHolder(config.DefaultReportingConfig())
	}
	return s
}

func (s *Service) Summary(ctx context.Context) (domain.Summary, error) {
	started := time.Now()
	cfg := s.reporting.Get()
	now := s.clock.Now().In(cfg.Location())
	key := cache.SummaryKey(now.Format(dayLayout))

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("summary cache read failed", zap.Error(err))
		} else if cached != nil {
			s.metrics.RecordSummary(ctx, "cache", time.Since(started))
			return *cached, nil
		}
	}

	summary, err := s.compute(ctx, now, cfg)
	if err != nil {
		return domain.Summary{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary); err != nil {
			s.log.Warn("summary cache write failed", zap.Error(err))
		}
	}
	s.metrics.RecordSummary(ctx, "store", time.Since(started))
	return summary, nil
}

// compute fans the independent aggregates out and joins them.
func (s *Service) compute(ctx context.Context, now time.Time, cfg config.ReportingConfig) (domain.Summary, error) {
	var (
		customers, bills int64
		paid, dues       decimal.Decimal
		rows             []domain.PaymentRow
	)

	window := RevenueWindow(now, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		customers, err = s.repo.CountCustomers(gctx, s.db)
		return err
	})
	g.Go(func() error {
		var err error
		bills, err = s.repo.CountBills(gctx, s.db)
		return err
	})
	g.Go(func() error {
		var err error
		paid, err = s.repo.SumPaid(gctx, s.db)
		return err
	})
	g.Go(func() error {
		var err error
		dues, err = s.repo.SumDues(gctx, s.db)
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = s.repo.RevenuePayments(gctx, s.db, window)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Summary{}, err
	}

	return domain.Summary{
		TotalCustomers:  customers,
		TotalBills:      bills,
		TotalPaidAmount: roundText(paid),
		TotalDues:       roundText(dues),
		SalesRevenue:    BucketByDay(rows, cfg.Location()),
	}, nil
}

// RevenueWindow covers whole days from windowDays before now through the
// end of now's day, in the reporting timezone.
func RevenueWindow(now time.Time, cfg config.ReportingConfig) domain.RevenueWindow {
	loc := cfg.Location()
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	excluded := make([]string, len(cfg.ExcludedPaymentModes))
	copy(excluded, cfg.ExcludedPaymentModes)

	return domain.RevenueWindow{
		From:          today.AddDate(0, 0, -cfg.RevenueWindowDays),
		To:            today.AddDate(0, 0, 1),
		ExcludedModes: excluded,
	}
}

// BucketByDay sums payments per calendar day of the payment date. Days with
// no payments are absent and the result is ascending.
func BucketByDay(rows []domain.PaymentRow, loc *time.Location) []domain.RevenuePoint {
	totals := make(map[string]decimal.Decimal)
	for _, row := range rows {
		day := row.PaymentDate.In(loc).Format(dayLayout)
		totals[day] = totals[day].Add(row.AmountPaid)
	}

	days := make([]string, 0, len(totals))
	for day := range totals {
		days = append(days, day)
	}
	sort.Strings(days)

	points := make([]domain.RevenuePoint, 0, len(days))
	for _, day := range days {
		points = append(points, domain.RevenuePoint{Date: day, DailyTotal: roundText(totals[day])})
	}
	return points
}

func roundText(d decimal.Decimal) string {
	return d.Round(0).String()
}
