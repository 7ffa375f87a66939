package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/cart/domain"
	productdomain "github.com/smallbiznis/qatech/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Store       domain.Store
	ProductRepo productdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	store       domain.Store
	productRepo productdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("cart.service"),
		store:       p.Store,
		productRepo: p.ProductRepo,
	}
}

func (s *Service) Get(ctx context.Context, key string) (domain.View, error) {
	cart, err := s.load(ctx, key)
	if err != nil {
		return domain.View{}, err
	}
	return s.render(ctx, cart)
}

func (s *Service) Add(ctx context.Context, key string, productID snowflake.ID, qty int) (domain.View, error) {
	cart, err := s.load(ctx, key)
	if err != nil {
		return domain.View{}, err
	}
	if err := s.add(ctx, &cart, productID, qty); err != nil {
		return domain.View{}, err
	}
	if err := s.store.Save(ctx, cart, domain.TTL); err != nil {
		return domain.View{}, err
	}
	return s.render(ctx, cart)
}

// AddMultiple applies each item independently and reports per-item failures.
func (s *Service) AddMultiple(ctx context.Context, key string, items []domain.AddItem) (domain.View, []domain.ItemError, error) {
	cart, err := s.load(ctx, key)
	if err != nil {
		return domain.View{}, nil, err
	}

	failures := []domain.ItemError{}
	for _, item := range items {
		if err := s.add(ctx, &cart, item.ProductID, item.Quantity); err != nil {
			if !isItemError(err) {
				return domain.View{}, nil, err
			}
			failures = append(failures, domain.ItemError{ProductID: item.ProductID, Error: err.Error()})
		}
	}

	if err := s.store.Save(ctx, cart, domain.TTL); err != nil {
		return domain.View{}, nil, err
	}
	view, err := s.render(ctx, cart)
	if err != nil {
		return domain.View{}, nil, err
	}
	return view, failures, nil
}

func (s *Service) Update(ctx context.Context, key string, productID snowflake.ID, qty int) (domain.View, error) {
	if productID == 0 {
		return domain.View{}, domain.ErrInvalidProduct
	}
	if qty < 1 {
		return domain.View{}, domain.ErrInvalidQuantity
	}
	cart, err := s.load(ctx, key)
	if err != nil {
		return domain.View{}, err
	}
	if cart.Quantity(productID) == 0 {
		return domain.View{}, domain.ErrLineNotFound
	}

	product, err := s.activeProduct(ctx, productID)
	if err != nil {
		return domain.View{}, err
	}
	if qty > product.Stock {
		return domain.View{}, domain.ErrInsufficientStock
	}

	cart.Set(productID, qty)
	if err := s.store.Save(ctx, cart, domain.TTL); err != nil {
		return domain.View{}, err
	}
	return s.render(ctx, cart)
}

func (s *Service) Remove(ctx context.Context, key string, productID snowflake.ID) (domain.View, error) {
	cart, err := s.load(ctx, key)
	if err != nil {
		return domain.View{}, err
	}
	if !cart.Remove(productID) {
		return domain.View{}, domain.ErrLineNotFound
	}
	if err := s.store.Save(ctx, cart, domain.TTL); err != nil {
		return domain.View{}, err
	}
	return s.render(ctx, cart)
}

func (s *Service) Clear(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return domain.ErrInvalidSession
	}
	return s.store.Delete(ctx, key)
}

func (s *Service) add(ctx context.Context, cart *domain.Cart, productID snowflake.ID, qty int) error {
	if productID == 0 {
		return domain.ErrInvalidProduct
	}
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}
	product, err := s.activeProduct(ctx, productID)
	if err != nil {
		return err
	}
	merged := cart.Quantity(productID) + qty
	if merged > product.Stock {
		return domain.ErrInsufficientStock
	}
	cart.Set(productID, merged)
	return nil
}

func (s *Service) activeProduct(ctx context.Context, productID snowflake.ID) (*productdomain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	if !product.IsActive {
		return nil, domain.ErrProductInactive
	}
	return product, nil
}

func (s *Service) load(ctx context.Context, key string) (domain.Cart, error) {
	if strings.TrimSpace(key) == "" {
		return domain.Cart{}, domain.ErrInvalidSession
	}
	return s.store.Load(ctx, key)
}

// render rehydrates lines from the catalog and saves back a pruned cart
// when products have disappeared or been deactivated.
func (s *Service) render(ctx context.Context, cart domain.Cart) (domain.View, error) {
	view := domain.View{Items: []domain.ViewItem{}}
	if len(cart.Items) == 0 {
		return view, nil
	}

	ids := make([]snowflake.ID, 0, len(cart.Items))
	for _, line := range cart.Items {
		ids = append(ids, line.ProductID)
	}
	products, err := s.productRepo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return domain.View{}, err
	}
	images, err := s.productRepo.ListImages(ctx, s.db, ids...)
	if err != nil {
		return domain.View{}, err
	}

	byID := make(map[snowflake.ID]productdomain.Product, len(products))
	for _, p := range products {
		if p.IsActive {
			byID[p.ID] = p
		}
	}
	for _, img := range images {
		if p, ok := byID[img.ProductID]; ok {
			p.Images = append(p.Images, img)
			byID[img.ProductID] = p
		}
	}

	kept := make([]domain.Line, 0, len(cart.Items))
	for _, line := range cart.Items {
		product, ok := byID[line.ProductID]
		if !ok {
			continue
		}
		kept = append(kept, line)
		subtotal := product.Price * int64(line.Quantity)
		view.Items = append(view.Items, domain.ViewItem{
			ProductID: product.ID,
			Name:      product.Name,
			Slug:      product.Slug,
			Price:     product.Price,
			OldPrice:  product.OldPrice,
			Image:     product.PrimaryImageURL(),
			Stock:     product.Stock,
			Quantity:  line.Quantity,
			Subtotal:  subtotal,
		})
		view.Total += subtotal
	}
	view.ItemCount = len(view.Items)

	if len(kept) != len(cart.Items) {
		cart.Items = kept
		if err := s.store.Save(ctx, cart, domain.TTL); err != nil {
			s.log.Warn("save pruned cart failed", zap.Error(err))
		} else {
			s.log.Debug("cart pruned", zap.Int("dropped", len(ids)-len(kept)))
		}
	}
	return view, nil
}

func isItemError(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidProduct,
		domain.ErrInvalidQuantity,
		domain.ErrProductNotFound,
		domain.ErrProductInactive,
		domain.ErrInsufficientStock,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
