package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/alankar/internal/bill/domain"
	"github.com/smallbiznis/alankar/internal/bill/identifier"
	"github.com/smallbiznis/alankar/internal/bill/query"
	"github.com/smallbiznis/alankar/internal/clock"
	"github.com/smallbiznis/alankar/internal/config"
	"github.com/smallbiznis/alankar/internal/observability/metrics"
	pkgdb "github.com/smallbiznis/alankar/pkg/db"
	"github.com/smallbiznis/alankar/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Config  config.Config
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	clock   clock.Clock
	metrics *metrics.Metrics
	idMode  string
	ids     *identifier.Generator
}

func New(p Params) domain.Service {
	s := &Service{
		db:      p.DB,
		log:     p.Log.Named("bill.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		metrics: p.Metrics,
		idMode:  p.Config.BillIDMode,
	}
	if s.clock == nil {
		s.clock = clock.NewSystemClock()
	}
	if s.idMode == "" {
		s.idMode = config.BillIDModeHuman
	}

	opts := []identifier.Option{}
	if p.Metrics != nil {
		opts = append(opts, identifier.WithObserver(p.Metrics))
	}
	s.ids = identifier.New(p.Config.BillIDPrefix, identifier.CheckerFunc(func(ctx context.Context, id string) (bool, error) {
		return s.repo.Exists(ctx, s.db, id)
	}), opts...)

	return s
}

func (s *Service) Create(ctx context.Context, req domain.CreateBillRequest) (domain.Bill, error) {
	customerID, err := parseCustomerID(req.CustomerID)
	if err != nil {
		return domain.Bill{}, err
	}

	billDate, ok := domain.ParseDate(req.BillDate)
	if !ok {
		return domain.Bill{}, domain.ErrInvalidBillDate
	}

	items, err := buildItems(req.Items)
	if err != nil {
		return domain.Bill{}, err
	}
	payments, err := buildPayments(req.Payments)
	if err != nil {
		return domain.Bill{}, err
	}

	id, err := s.nextID(ctx)
	if err != nil {
		return domain.Bill{}, err
	}

	now := s.clock.Now().UTC()
	bill := domain.Bill{
		ID:          id,
		CustomerID:  customerID,
		TotalAmount: req.TotalAmount,
		BalanceDues: req.BalanceDues,
		BillDate:    billDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	bill.SetLines(items, payments)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Insert(ctx, tx, &bill)
	})
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			s.log.Warn("bill id taken between check and insert", zap.String("bill_id", id))
			return domain.Bill{}, domain.ErrDuplicateID
		}
		return domain.Bill{}, err
	}

	s.metrics.RecordBillCreated(ctx, s.idMode)
	return bill, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.BillView, error) {
	id = strings.TrimSpace(id)
	if !identifier.Valid(id) {
		return domain.BillView{}, domain.ErrInvalidID
	}

	view, err := s.repo.FindViewByID(ctx, s.db, id)
	if err != nil {
		return domain.BillView{}, err
	}
	if view == nil {
		return domain.BillView{}, domain.ErrNotFound
	}
	return *view, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateBillRequest) (domain.Bill, error) {
	id = strings.TrimSpace(id)
	if !identifier.Valid(id) {
		return domain.Bill{}, domain.ErrInvalidID
	}

	var updated domain.Bill
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bill, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if bill == nil {
			return domain.ErrNotFound
		}

		if req.CustomerID != nil {
			customerID, err := parseCustomerID(*req.CustomerID)
			if err != nil {
				return err
			}
			bill.CustomerID = customerID
		}
		if req.BillDate != nil {
			billDate, ok := domain.ParseDate(*req.BillDate)
			if !ok {
				return domain.ErrInvalidBillDate
			}
			bill.BillDate = billDate
		}
		if req.TotalAmount != nil {
			bill.TotalAmount.Decimal = *req.TotalAmount
			bill.TotalAmount.Valid = true
		}
		if req.BalanceDues != nil {
			bill.BalanceDues.Decimal = *req.BalanceDues
			bill.BalanceDues.Valid = true
		}

		items, payments := bill.Items, bill.Payments
		if req.Items != nil {
			if items, err = buildItems(*req.Items); err != nil {
				return err
			}
		}
		if req.Payments != nil {
			if payments, err = buildPayments(*req.Payments); err != nil {
				return err
			}
		}
		bill.SetLines(items, payments)
		bill.UpdatedAt = s.clock.Now().UTC()

		if err := s.repo.Update(ctx, tx, bill, req.Items != nil, req.Payments != nil); err != nil {
			return err
		}
		updated = *bill
		return nil
	})
	if err != nil {
		return domain.Bill{}, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) (domain.Bill, error) {
	id = strings.TrimSpace(id)
	if !identifier.Valid(id) {
		return domain.Bill{}, domain.ErrInvalidID
	}

	var deleted domain.Bill
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bill, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if bill == nil {
			return domain.ErrNotFound
		}
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return err
		}
		deleted = *bill
		return nil
	})
	if err != nil {
		return domain.Bill{}, err
	}
	return deleted, nil
}

func (s *Service) Search(ctx context.Context, req domain.SearchBillRequest) (pagination.Page[domain.BillView], error) {
	return s.search(ctx, query.Criteria{
		Term:      req.Term,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		ID:        req.ID,
		Page:      req.Page,
		Limit:     req.Limit,
	})
}

// List pages through every bill, keeping those whose customer is gone.
func (s *Service) List(ctx context.Context, req domain.ListBillRequest) (pagination.Page[domain.BillView], error) {
	return s.search(ctx, query.Criteria{
		Page:           req.Page,
		Limit:          req.Limit,
		IncludeOrphans: true,
	})
}

func (s *Service) search(ctx context.Context, criteria query.Criteria) (pagination.Page[domain.BillView], error) {
	criteria = criteria.Normalize()
	if criteria.PointLookup() {
		return s.lookup(ctx, criteria.ID)
	}

	var (
		views []domain.BillView
		total int64
	)
	// count and data are separate reads; they may observe different snapshots
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		views, err = s.repo.Find(gctx, s.db, query.Build(criteria))
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx, s.db, query.BuildCount(criteria))
		return err
	})
	if err := g.Wait(); err != nil {
		return pagination.Page[domain.BillView]{}, err
	}

	s.metrics.RecordSearch(ctx, "filter", total)
	return pagination.NewPage(views, criteria.Page, criteria.Limit, total), nil
}

// lookup ignores every other criterion and answers with a one-row page.
func (s *Service) lookup(ctx context.Context, id string) (pagination.Page[domain.BillView], error) {
	if !identifier.Valid(id) {
		return pagination.Page[domain.BillView]{}, domain.ErrInvalidID
	}

	view, err := s.repo.FindViewByID(ctx, s.db, id)
	if err != nil {
		return pagination.Page[domain.BillView]{}, err
	}

	views := []domain.BillView{}
	if view != nil {
		views = append(views, *view)
	}
	total := int64(len(views))
	s.metrics.RecordSearch(ctx, "id", total)
	return pagination.NewPage(views, 1, 1, total), nil
}

func (s *Service) nextID(ctx context.Context) (string, error) {
	if s.idMode == config.BillIDModeSnowflake {
		return s.genID.Generate().String(), nil
	}

	id, err := s.ids.Generate(ctx)
	if errors.Is(err, identifier.ErrExhausted) {
		s.log.Warn("bill id generation exhausted", zap.Int("attempts", identifier.MaxAttempts))
		return "", domain.ErrIdentifierExhausted
	}
	return id, err
}

func parseCustomerID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidCustomer
	}
	return id, nil
}

func buildItems(inputs []domain.BillItemInput) ([]domain.BillItem, error) {
	items := make([]domain.BillItem, 0, len(inputs))
	for _, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, domain.ErrInvalidItem
		}
		if !in.MakingChargeType.Valid() {
			return nil, domain.ErrInvalidMakingChargeType
		}
		items = append(items, domain.BillItem{
			Name:             name,
			WeightInGrams:    in.WeightInGrams,
			RatePer10g:       in.RatePer10g,
			MakingCharge:     in.MakingCharge,
			MakingChargeType: in.MakingChargeType,
			Discount:         in.Discount,
			TotalPrice:       in.TotalPrice,
		})
	}
	return items, nil
}

func buildPayments(inputs []domain.BillPaymentInput) ([]domain.BillPayment, error) {
	payments := make([]domain.BillPayment, 0, len(inputs))
	for _, in := range inputs {
		if !in.PaymentMode.Valid() {
			return nil, domain.ErrInvalidPaymentMode
		}
		paidAt, ok := domain.ParseDate(in.PaymentDate)
		if !ok {
			return nil, domain.ErrInvalidPaymentDate
		}
		payments = append(payments, domain.BillPayment{
			AmountPaid:  in.AmountPaid,
			PaymentMode: in.PaymentMode,
			PaymentDate: paidAt,
			ReferenceID: in.ReferenceID,
		})
	}
	return payments, nil
}
