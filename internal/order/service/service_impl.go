package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/actorcontext"
	auditdomain "github.com/smallbiznis/qatech/internal/audit/domain"
	"github.com/smallbiznis/qatech/internal/clock"
	"github.com/smallbiznis/qatech/internal/config"
	obsmetrics "github.com/smallbiznis/qatech/internal/observability/metrics"
	"github.com/smallbiznis/qatech/internal/order/domain"
	productdomain "github.com/smallbiznis/qatech/internal/product/domain"
	"github.com/smallbiznis/qatech/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const createdNote = "Đơn hàng được tạo"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	ProductRepo productdomain.Repository
	AuditSvc    auditdomain.Service      `optional:"true"`
	Renderer    domain.InvoiceRenderer   `optional:"true"`
	Storefront  *config.StorefrontHolder `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics      `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	productRepo productdomain.Repository
	auditSvc    auditdomain.Service
	renderer    domain.InvoiceRenderer
	storefront  *config.StorefrontHolder
	obsMetrics  *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("order.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		productRepo: p.ProductRepo,
		auditSvc:    p.AuditSvc,
		renderer:    p.Renderer,
		storefront:  p.Storefront,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Order, error) {
	if err := validateCreate(&req); err != nil {
		return domain.Order{}, err
	}

	now := s.clock.Now()
	order := domain.Order{
		ID:              s.genID.Generate(),
		UserID:          req.UserID,
		OrderCode:       GenerateOrderCode(now.UnixMilli(), rand.IntN(1000)),
		Status:          domain.StatusPending,
		PaymentStatus:   domain.PaymentUnpaid,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: datatypes.NewJSONType(req.ShippingAddress),
		Phone:           req.ShippingAddress.Phone,
		Note:            strings.TrimSpace(req.Note),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := make([]domain.LineItem, 0, len(req.Items))
		var total int64
		for _, item := range req.Items {
			product, err := s.productRepo.FindByID(ctx, tx, item.ProductID)
			if err != nil {
				return err
			}
			if product == nil {
				return fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.ProductID)
			}

			if err := s.productRepo.DecrementStock(ctx, tx, product.ID, item.Quantity); err != nil {
				if errors.Is(err, productdomain.ErrInsufficientStock) {
					return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, product.Name)
				}
				return err
			}

			name := strings.TrimSpace(item.Name)
			if name == "" {
				name = product.Name
			}
			items = append(items, domain.LineItem{
				ProductID: product.ID,
				Name:      name,
				Price:     item.Price,
				Quantity:  item.Quantity,
				Image:     strings.TrimSpace(item.Image),
			})
			total += item.Price * int64(item.Quantity)
		}

		order.Items = datatypes.JSONSlice[domain.LineItem](items)
		order.TotalAmount = total
		if err := s.repo.Insert(ctx, tx, &order); err != nil {
			return err
		}
		return s.appendHistory(ctx, tx, order.ID, domain.StatusPending, "system", createdNote, now)
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.obsMetrics.RecordOrderCreated(ctx, string(order.PaymentMethod))
	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_code", order.OrderCode),
		zap.Int64("total_amount", order.TotalAmount),
	)
	return s.withHistory(ctx, s.db, order)
}

func (s *Service) ListForUser(ctx context.Context, req domain.ListForUserRequest) (domain.ListResponse, error) {
	status := strings.TrimSpace(req.Status)
	if status != "" && !knownStatus(domain.Status(status)) {
		return domain.ListResponse{}, domain.ErrInvalidStatus
	}
	userID := req.UserID
	return s.list(ctx, domain.ListFilter{
		UserID: &userID,
		Status: status,
	}, req.Page, req.Limit)
}

func (s *Service) Get(ctx context.Context, orderID snowflake.ID, actor actorcontext.Actor) (domain.Order, error) {
	order, err := s.load(ctx, s.db, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != actor.UserID && !actor.IsStaff() {
		return domain.Order{}, domain.ErrForbidden
	}
	return s.withHistory(ctx, s.db, *order)
}

func (s *Service) ListAll(ctx context.Context, req domain.ListAllRequest) (domain.ListAllResponse, error) {
	if v := strings.TrimSpace(req.Status); v != "" && !knownStatus(domain.Status(v)) {
		return domain.ListAllResponse{}, domain.ErrInvalidStatus
	}
	if v := strings.TrimSpace(req.PaymentMethod); v != "" && !domain.PaymentMethod(v).Valid() {
		return domain.ListAllResponse{}, domain.ErrInvalidPayment
	}

	sortBy := strings.TrimSpace(req.SortBy)
	switch sortBy {
	case "createdAt":
		sortBy = "created_at"
	case "totalAmount":
		sortBy = "total_amount"
	}

	resp, err := s.list(ctx, domain.ListFilter{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		PaymentMethod: req.PaymentMethod,
		DateFrom:      req.DateFrom,
		DateTo:        req.DateTo,
		Search:        req.Search,
		SortBy:        sortBy,
		Order:         req.Order,
	}, req.Page, req.Limit)
	if err != nil {
		return domain.ListAllResponse{}, err
	}

	byStatus, total, err := s.countByStatus(ctx)
	if err != nil {
		return domain.ListAllResponse{}, err
	}
	revenue, err := s.repo.SumRevenue(ctx, s.db, domain.PaymentPaid)
	if err != nil {
		return domain.ListAllResponse{}, err
	}

	return domain.ListAllResponse{
		ListResponse: resp,
		Summary: domain.Summary{
			ByStatus:     byStatus,
			TotalOrders:  total,
			TotalRevenue: revenue,
		},
	}, nil
}

func (s *Service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (domain.Order, error) {
	target, ok := req.Status.Rank()
	if !ok {
		return domain.Order{}, domain.ErrInvalidStatus
	}
	updatedBy := strings.TrimSpace(req.UpdatedBy)
	if updatedBy == "" {
		updatedBy = "staff"
	}

	var (
		updated  domain.Order
		previous domain.Status
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.loadForUpdate(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		if order.Status == domain.StatusCancelled {
			return domain.ErrOrderCancelled
		}
		current, _ := order.Status.Rank()
		if target < current {
			return domain.ErrStatusRegression
		}
		previous = order.Status

		now := s.clock.Now()
		fields := map[string]any{}
		if req.Status != order.Status {
			fields["status"] = req.Status
		}
		if req.Status == domain.StatusPaid && order.PaymentStatus != domain.PaymentPaid {
			fields["payment_status"] = domain.PaymentPaid
			if order.PaidAt == nil {
				fields["paid_at"] = now
			}
		}
		if len(fields) > 0 {
			fields["updated_at"] = now
			if err := s.repo.UpdateFields(ctx, tx, order.ID, fields); err != nil {
				return err
			}
		}
		if err := s.appendHistory(ctx, tx, order.ID, req.Status, updatedBy, strings.TrimSpace(req.Note), now); err != nil {
			return err
		}

		reloaded, err := s.load(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		updated, err = s.withHistory(ctx, tx, *reloaded)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.audit(ctx, auditdomain.ActionOrderStatusUpdated, updated.ID, map[string]any{
		"from":       string(previous),
		"to":         string(req.Status),
		"updated_by": updatedBy,
	})
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, req domain.CancelRequest) (domain.Order, error) {
	reason := strings.TrimSpace(req.Reason)

	var cancelled domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.loadForUpdate(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		if order.UserID != req.UserID {
			return domain.ErrForbidden
		}
		if order.Status != domain.StatusPending && order.Status != domain.StatusPaid {
			return domain.ErrOrderNotCancellable
		}

		for _, item := range order.Items {
			if err := s.productRepo.RestoreStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		cancelledBy := req.UserID
		if err := s.repo.UpdateFields(ctx, tx, order.ID, map[string]any{
			"status":        domain.StatusCancelled,
			"cancel_reason": reason,
			"cancelled_at":  now,
			"cancelled_by":  cancelledBy,
			"updated_at":    now,
		}); err != nil {
			return err
		}
		if err := s.appendHistory(ctx, tx, order.ID, domain.StatusCancelled, "user:"+req.UserID.String(), reason, now); err != nil {
			return err
		}

		reloaded, err := s.load(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		cancelled, err = s.withHistory(ctx, tx, *reloaded)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.obsMetrics.RecordOrderCancelled(ctx, "user")
	return cancelled, nil
}

func (s *Service) Statistics(ctx context.Context) (domain.Statistics, error) {
	byStatus, total, err := s.countByStatus(ctx)
	if err != nil {
		return domain.Statistics{}, err
	}
	revenue, err := s.repo.SumRevenue(ctx, s.db, domain.PaymentPaid)
	if err != nil {
		return domain.Statistics{}, err
	}
	methods, err := s.repo.SummaryByPaymentMethod(ctx, s.db)
	if err != nil {
		return domain.Statistics{}, err
	}

	byMethod := make(map[domain.PaymentMethod]domain.MethodSummary, len(methods))
	for _, m := range methods {
		byMethod[m.PaymentMethod] = m
	}

	stats := domain.Statistics{
		TotalOrders:     total,
		TotalRevenue:    revenue,
		ByStatus:        byStatus,
		ByPaymentMethod: byMethod,
	}
	if total > 0 {
		stats.AverageOrderValue = revenue / total
		rate := float64(byStatus[domain.StatusDelivered]) / float64(total) * 100
		stats.CompletionRate = math.Round(rate*100) / 100
	}
	return stats, nil
}

func (s *Service) Invoice(ctx context.Context, orderID snowflake.ID, actor actorcontext.Actor) (io.Reader, domain.Order, error) {
	if s.renderer == nil {
		return nil, domain.Order{}, domain.ErrInvoiceUnavailable
	}
	order, err := s.Get(ctx, orderID, actor)
	if err != nil {
		return nil, domain.Order{}, err
	}
	doc, err := s.renderer.RenderOrderInvoice(ctx, order)
	if err != nil {
		return nil, domain.Order{}, err
	}
	return doc, order, nil
}

func (s *Service) list(ctx context.Context, filter domain.ListFilter, pageNum, limit int) (domain.ListResponse, error) {
	settings := s.storefront.Get()
	page := pagination.Page{Page: pageNum, Limit: limit}.Normalize(settings.DefaultPageSize, settings.MaxPageSize)
	filter.Limit = page.Limit
	filter.Offset = page.Offset()

	orders, total, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	totalPages := pagination.TotalPages(total, page.Limit)
	return domain.ListResponse{
		Orders: orders,
		Pagination: domain.Pagination{
			CurrentPage: page.Page,
			TotalPages:  totalPages,
			TotalOrders: total,
			HasMore:     page.Page < totalPages,
		},
	}, nil
}

func (s *Service) countByStatus(ctx context.Context) (map[domain.Status]int64, int64, error) {
	rows, err := s.repo.CountByStatus(ctx, s.db)
	if err != nil {
		return nil, 0, err
	}
	byStatus := make(map[domain.Status]int64, len(domain.AllStatuses))
	for _, status := range domain.AllStatuses {
		byStatus[status] = 0
	}
	var total int64
	for _, row := range rows {
		byStatus[row.Status] = row.Count
		total += row.Count
	}
	return byStatus, total, nil
}

func (s *Service) load(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	order, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *Service) loadForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	order, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *Service) withHistory(ctx context.Context, tx *gorm.DB, order domain.Order) (domain.Order, error) {
	history, err := s.repo.ListStatus(ctx, tx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.StatusHistory = history
	return order, nil
}

func (s *Service) appendHistory(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, status domain.Status, updatedBy, note string, at time.Time) error {
	return s.repo.InsertStatus(ctx, tx, &domain.StatusEntry{
		ID:        s.genID.Generate(),
		OrderID:   orderID,
		Status:    status,
		UpdatedBy: updatedBy,
		Note:      note,
		CreatedAt: at,
	})
}

func (s *Service) audit(ctx context.Context, action string, orderID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	actorType := string(auditdomain.ActorTypeSystem)
	var actorID *string
	if actor, ok := actorcontext.ActorFromContext(ctx); ok {
		actorType = string(auditdomain.ActorTypeUser)
		id := actor.UserID.String()
		actorID = &id
	}
	targetID := orderID.String()
	if err := s.auditSvc.AuditLog(ctx, actorType, actorID, action, "order", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func validateCreate(req *domain.CreateRequest) error {
	if len(req.Items) == 0 {
		return domain.ErrInvalidItems
	}
	for _, item := range req.Items {
		if item.ProductID == 0 {
			return domain.ErrInvalidItems
		}
		if item.Quantity < 1 {
			return domain.ErrInvalidQuantity
		}
		if item.Price < 0 {
			return domain.ErrInvalidPrice
		}
	}

	addr := &req.ShippingAddress
	addr.FullName = strings.TrimSpace(addr.FullName)
	addr.Phone = strings.TrimSpace(addr.Phone)
	addr.Address = strings.TrimSpace(addr.Address)
	addr.Ward = strings.TrimSpace(addr.Ward)
	addr.District = strings.TrimSpace(addr.District)
	addr.City = strings.TrimSpace(addr.City)
	if addr.FullName == "" || addr.Phone == "" || addr.Address == "" {
		return domain.ErrInvalidShipping
	}

	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodCOD
	}
	if !req.PaymentMethod.Valid() {
		return domain.ErrInvalidPayment
	}
	return nil
}

func knownStatus(status domain.Status) bool {
	for _, candidate := range domain.AllStatuses {
		if candidate == status {
			return true
		}
	}
	return false
}

// GenerateOrderCode formats ORD<unixMillis><suffix>, suffix in 000-999.
func GenerateOrderCode(unixMillis int64, suffix int) string {
	return fmt.Sprintf("ORD%d%03d", unixMillis, suffix%1000)
}
