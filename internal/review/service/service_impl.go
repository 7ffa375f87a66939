package service

import (
	"context"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/actorcontext"
	"github.com/smallbiznis/qatech/internal/clock"
	"github.com/smallbiznis/qatech/internal/config"
	orderdomain "github.com/smallbiznis/qatech/internal/order/domain"
	productdomain "github.com/smallbiznis/qatech/internal/product/domain"
	"github.com/smallbiznis/qatech/internal/review/domain"
	"github.com/smallbiznis/qatech/pkg/db"
	"github.com/smallbiznis/qatech/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	ProductRepo productdomain.Repository
	OrderRepo   orderdomain.Repository
	Storefront  *config.StorefrontHolder `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	productRepo productdomain.Repository
	orderRepo   orderdomain.Repository
	storefront  *config.StorefrontHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("review.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		productRepo: p.ProductRepo,
		orderRepo:   p.OrderRepo,
		storefront:  p.Storefront,
	}
}

func (s *Service) ListForProduct(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	if req.ProductID == 0 {
		return domain.ListResponse{}, domain.ErrInvalidID
	}

	counts, err := s.repo.CountByRating(ctx, s.db, req.ProductID)
	if err != nil {
		return domain.ListResponse{}, err
	}
	stats := buildStats(counts)

	settings := s.storefront.Get()
	page := pagination.Page{Page: req.Page, Limit: req.Limit}.Normalize(settings.DefaultPageSize, settings.MaxPageSize)
	reviews, err := s.repo.ListByProduct(ctx, s.db, req.ProductID, page.Limit, page.Offset())
	if err != nil {
		return domain.ListResponse{}, err
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}

	totalPages := pagination.TotalPages(stats.TotalReviews, page.Limit)
	return domain.ListResponse{
		Reviews: reviews,
		Stats:   stats,
		Pagination: domain.Pagination{
			CurrentPage:  page.Page,
			TotalPages:   totalPages,
			TotalReviews: stats.TotalReviews,
			HasMore:      page.Page < totalPages,
		},
	}, nil
}

func (s *Service) CheckPurchase(ctx context.Context, userID, productID snowflake.ID) (domain.PurchaseCheck, error) {
	if productID == 0 {
		return domain.PurchaseCheck{}, domain.ErrInvalidID
	}
	purchased, err := s.hasPurchased(ctx, userID, productID)
	if err != nil {
		return domain.PurchaseCheck{}, err
	}
	existing, err := s.repo.FindByUserProduct(ctx, s.db, userID, productID)
	if err != nil {
		return domain.PurchaseCheck{}, err
	}
	return domain.PurchaseCheck{
		HasPurchased: purchased,
		HasReviewed:  existing != nil,
		CanReview:    purchased && existing == nil,
	}, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Review, error) {
	if req.ProductID == 0 {
		return domain.Review{}, domain.ErrInvalidID
	}
	if req.Rating < domain.MinRating || req.Rating > domain.MaxRating {
		return domain.Review{}, domain.ErrInvalidRating
	}
	comment := strings.TrimSpace(req.Comment)
	if comment == "" {
		return domain.Review{}, domain.ErrInvalidComment
	}

	product, err := s.productRepo.FindByID(ctx, s.db, req.ProductID)
	if err != nil {
		return domain.Review{}, err
	}
	if product == nil {
		return domain.Review{}, domain.ErrProductNotFound
	}

	existing, err := s.repo.FindByUserProduct(ctx, s.db, req.UserID, req.ProductID)
	if err != nil {
		return domain.Review{}, err
	}
	if existing != nil {
		return domain.Review{}, domain.ErrAlreadyReviewed
	}

	purchased, err := s.hasPurchased(ctx, req.UserID, req.ProductID)
	if err != nil {
		return domain.Review{}, err
	}
	if !purchased {
		return domain.Review{}, domain.ErrNotPurchased
	}

	now := s.clock.Now()
	review := domain.Review{
		ID:        s.genID.Generate(),
		ProductID: req.ProductID,
		UserID:    req.UserID,
		Rating:    req.Rating,
		Comment:   comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, &review); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Review{}, domain.ErrAlreadyReviewed
		}
		return domain.Review{}, err
	}

	s.log.Info("review created",
		zap.String("review_id", review.ID.String()),
		zap.String("product_id", review.ProductID.String()),
		zap.Int("rating", review.Rating),
	)
	return s.load(ctx, review.ID)
}

func (s *Service) Reply(ctx context.Context, req domain.ReplyRequest) (domain.Review, error) {
	reply := strings.TrimSpace(req.Reply)
	if reply == "" {
		return domain.Review{}, domain.ErrInvalidReply
	}
	if _, err := s.load(ctx, req.ReviewID); err != nil {
		return domain.Review{}, err
	}
	if err := s.repo.UpdateReply(ctx, s.db, req.ReviewID, reply, req.StaffID, s.clock.Now()); err != nil {
		return domain.Review{}, err
	}
	return s.load(ctx, req.ReviewID)
}

func (s *Service) Delete(ctx context.Context, reviewID snowflake.ID, actor actorcontext.Actor) error {
	review, err := s.load(ctx, reviewID)
	if err != nil {
		return err
	}
	if review.UserID != actor.UserID && !actor.IsStaff() {
		return domain.ErrForbidden
	}
	return s.repo.Delete(ctx, s.db, review.ID)
}

// hasPurchased scans the line items of the user's delivered orders.
func (s *Service) hasPurchased(ctx context.Context, userID, productID snowflake.ID) (bool, error) {
	orders, err := s.orderRepo.ListDeliveredByUser(ctx, s.db, userID)
	if err != nil {
		return false, err
	}
	for _, order := range orders {
		for _, item := range order.Items {
			if item.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Service) load(ctx context.Context, id snowflake.ID) (domain.Review, error) {
	if id == 0 {
		return domain.Review{}, domain.ErrInvalidID
	}
	review, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Review{}, err
	}
	if review == nil {
		return domain.Review{}, domain.ErrNotFound
	}
	return *review, nil
}

func buildStats(counts []domain.RatingCount) domain.Stats {
	stats := domain.Stats{Distribution: map[int]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	var sum int64
	for _, c := range counts {
		if c.Rating < domain.MinRating || c.Rating > domain.MaxRating {
			continue
		}
		stats.Distribution[c.Rating] = c.Count
		stats.TotalReviews += c.Count
		sum += int64(c.Rating) * c.Count
	}
	if stats.TotalReviews > 0 {
		avg := float64(sum) / float64(stats.TotalReviews)
		stats.AverageRating = math.Round(avg*10) / 10
	}
	return stats
}
