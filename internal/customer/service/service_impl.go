package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	billdomain "github.com/smallbiznis/alankar/internal/bill/domain"
	"github.com/smallbiznis/alankar/internal/clock"
	"github.com/smallbiznis/alankar/internal/customer/domain"
	"github.com/smallbiznis/alankar/internal/observability/metrics"
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
	Bills   billdomain.Repository
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	bills   billdomain.Repository
	clock   clock.Clock
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	s := &Service{
		db:      p.DB,
		log:     p.Log.Named("customer.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		bills:   p.Bills,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
	if s.clock == nil {
		s.clock = clock.NewSystemClock()
	}
	return s
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, domain.ErrInvalidName
	}

	phones, err := normalizePhones(req.Phone)
	if err != nil {
		return domain.Customer{}, err
	}

	now := s.clock.Now().UTC()
	customer := domain.Customer{
		ID:        s.genID.Generate(),
		Name:      name,
		Address:   normalizeAddress(req.Address),
		CreatedAt: now,
		UpdatedAt: now,
	}
	customer.SetPhoneNumbers(phones)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Insert(ctx, tx, &customer)
	})
	if err != nil {
		return domain.Customer{}, err
	}

	return customer, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Customer, error) {
	customerID, err := s.parseID(id)
	if err != nil {
		return domain.Customer{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateCustomerRequest) (domain.Customer, error) {
	customerID, err := s.parseID(id)
	if err != nil {
		return domain.Customer{}, err
	}

	var updated domain.Customer
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.repo.FindByID(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return domain.ErrNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			customer.Name = name
		}
		if req.Address != nil {
			customer.Address = normalizeAddress(req.Address)
		}
		if req.Phone != nil {
			phones, err := normalizePhones(*req.Phone)
			if err != nil {
				return err
			}
			customer.SetPhoneNumbers(phones)
		}
		customer.UpdatedAt = s.clock.Now().UTC()

		if err := s.repo.Update(ctx, tx, customer, req.Phone != nil); err != nil {
			return err
		}
		updated = *customer
		return nil
	})
	if err != nil {
		return domain.Customer{}, err
	}

	return updated, nil
}

// Delete removes the customer, then the bills that reference it. The two
// steps are not atomic: a failure in between leaves orphaned bills, which
// every read path tolerates.
func (s *Service) Delete(ctx context.Context, id string) (domain.DeleteCustomerResult, error) {
	customerID, err := s.parseID(id)
	if err != nil {
		return domain.DeleteCustomerResult{}, err
	}

	var deleted domain.Customer
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.repo.FindByID(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return domain.ErrNotFound
		}
		if err := s.repo.Delete(ctx, tx, customerID); err != nil {
			return err
		}
		deleted = *customer
		return nil
	})
	if err != nil {
		return domain.DeleteCustomerResult{}, err
	}

	var removed int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removed, err = s.bills.DeleteByCustomerID(ctx, tx, customerID)
		return err
	})
	if err != nil {
		s.log.Error("customer deleted but bill cleanup failed",
			zap.String("customer_id", customerID.String()),
			zap.Error(err),
		)
		return domain.DeleteCustomerResult{}, err
	}

	s.metrics.RecordCustomerDeleted(ctx, removed)
	return domain.DeleteCustomerResult{Customer: deleted, DeletedBills: removed}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (pagination.Page[domain.CustomerWithStats], error) {
	page := pagination.PageOrDefault(req.Page)
	limit := pagination.LimitOrDefault(req.Limit)
	filter := domain.ListCustomerFilter{
		Query:  strings.TrimSpace(req.Query),
		Offset: pagination.Offset(page, limit),
		Limit:  limit,
	}

	var (
		customers []domain.Customer
		total     int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		customers, err = s.repo.List(gctx, s.db, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx, s.db, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return pagination.Page[domain.CustomerWithStats]{}, err
	}

	ids := make([]snowflake.ID, 0, len(customers))
	for _, c := range customers {
		ids = append(ids, c.ID)
	}
	stats, err := s.bills.StatsByCustomer(ctx, s.db, ids)
	if err != nil {
		return pagination.Page[domain.CustomerWithStats]{}, err
	}

	items := make([]domain.CustomerWithStats, 0, len(customers))
	for _, c := range customers {
		st := stats[c.ID]
		items = append(items, domain.CustomerWithStats{
			Customer:   c,
			TotalBills: st.TotalBills,
			TotalDues:  roundText(st.TotalDues),
		})
	}

	return pagination.NewPage(items, page, limit, total), nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func normalizePhones(phones []string) ([]string, error) {
	out := make([]string, 0, len(phones))
	for _, p := range phones {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, domain.ErrInvalidPhone
		}
		out = append(out, p)
	}
	return out, nil
}

func normalizeAddress(address *string) *string {
	if address == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*address)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func roundText(d decimal.Decimal) string {
	return d.Round(0).String()
}
