package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/qatech/internal/clock"
	"github.com/smallbiznis/qatech/internal/config"
	"github.com/smallbiznis/qatech/internal/product/domain"
	"github.com/smallbiznis/qatech/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Storefront *config.StorefrontHolder `optional:"true"`
	Files      domain.FileStore         `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	storefront *config.StorefrontHolder
	files      domain.FileStore
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("product.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		storefront: p.Storefront,
		files:      p.Files,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	settings := s.storefront.Get()
	page := pagination.Page{Page: req.Page, Limit: req.Limit}.Normalize(settings.DefaultPageSize, settings.MaxPageSize)

	if req.MinPrice != nil && req.MaxPrice != nil && *req.MinPrice > *req.MaxPrice {
		return domain.ListResponse{}, domain.ErrInvalidPrice
	}

	sortBy := strings.TrimSpace(req.SortBy)
	if sortBy == "createdAt" {
		sortBy = "created_at"
	}

	items, total, err := s.repo.List(ctx, s.db, domain.ListFilter{
		Category:    req.Category,
		SubCategory: req.SubCategory,
		Brand:       req.Brand,
		Usage:       req.Usage,
		Search:      req.Search,
		MinPrice:    req.MinPrice,
		MaxPrice:    req.MaxPrice,
		Active:      req.Active,
		SortBy:      sortBy,
		Order:       req.Order,
		Limit:       page.Limit,
		Offset:      page.Offset(),
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	if err := s.attachImages(ctx, items); err != nil {
		return domain.ListResponse{}, err
	}
	if items == nil {
		items = []domain.Product{}
	}

	totalPages := pagination.TotalPages(total, page.Limit)
	return domain.ListResponse{
		Items: items,
		Pagination: domain.Pagination{
			CurrentPage: page.Page,
			TotalPages:  totalPages,
			TotalItems:  total,
			HasMore:     page.Page < totalPages,
		},
	}, nil
}

func (s *Service) Get(ctx context.Context, idOrSlug string, includeInactive bool) (domain.Product, error) {
	key := strings.TrimSpace(idOrSlug)
	if key == "" {
		return domain.Product{}, domain.ErrInvalidID
	}

	var (
		product *domain.Product
		err     error
	)
	if id, parseErr := snowflake.ParseString(key); parseErr == nil && id > 0 {
		product, err = s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			return domain.Product{}, err
		}
	}
	if product == nil {
		product, err = s.repo.FindBySlug(ctx, s.db, key)
		if err != nil {
			return domain.Product{}, err
		}
	}
	if product == nil || (!product.IsActive && !includeInactive) {
		return domain.Product{}, domain.ErrNotFound
	}

	return s.hydrate(ctx, s.db, *product)
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Product{}, domain.ErrInvalidName
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		return domain.Product{}, domain.ErrInvalidCategory
	}
	if req.Price < 0 || (req.OldPrice != nil && *req.OldPrice < 0) {
		return domain.Product{}, domain.ErrInvalidPrice
	}
	if req.Stock < 0 {
		return domain.Product{}, domain.ErrInvalidStock
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	now := s.clock.Now()
	product := domain.Product{
		ID:          s.genID.Generate(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		OldPrice:    req.OldPrice,
		Category:    category,
		SubCategory: strings.TrimSpace(req.SubCategory),
		Brand:       strings.TrimSpace(req.Brand),
		Usage:       strings.TrimSpace(req.Usage),
		Stock:       req.Stock,
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var created domain.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		productSlug, err := s.uniqueSlug(ctx, tx, name, product.ID)
		if err != nil {
			return err
		}
		product.Slug = productSlug

		if err := s.repo.Insert(ctx, tx, &product); err != nil {
			return err
		}

		if req.Specification != nil {
			spec := &domain.Specification{
				ID:        s.genID.Generate(),
				ProductID: product.ID,
				CreatedAt: now,
			}
			applySpecification(spec, req.Specification, now)
			if err := s.repo.UpsertSpecification(ctx, tx, spec); err != nil {
				return err
			}
		}

		for i, url := range req.Images {
			image := &domain.Image{
				ID:        s.genID.Generate(),
				ProductID: product.ID,
				ImageURL:  url,
				IsPrimary: i == 0,
				Order:     i,
				Alt:       imageAlt(name, i+1),
				CreatedAt: now,
			}
			if err := s.repo.InsertImage(ctx, tx, image); err != nil {
				return err
			}
		}

		created, err = s.hydrate(ctx, tx, product)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateRequest) (domain.Product, error) {
	if id == 0 {
		return domain.Product{}, domain.ErrInvalidID
	}

	var (
		updated domain.Product
		removed []string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if product == nil {
			return domain.ErrNotFound
		}

		now := s.clock.Now()
		fields, err := s.scalarUpdates(ctx, tx, product, req)
		if err != nil {
			return err
		}
		if len(fields) > 0 {
			fields["updated_at"] = now
			if err := s.repo.UpdateFields(ctx, tx, id, fields); err != nil {
				return err
			}
		}

		if req.Specification != nil {
			spec, err := s.repo.FindSpecification(ctx, tx, id)
			if err != nil {
				return err
			}
			if spec == nil {
				spec = &domain.Specification{
					ID:        s.genID.Generate(),
					ProductID: id,
					CreatedAt: now,
				}
			}
			applySpecification(spec, req.Specification, now)
			if err := s.repo.UpsertSpecification(ctx, tx, spec); err != nil {
				return err
			}
		}

		name := product.Name
		if v, ok := fields["name"].(string); ok {
			name = v
		}
		removed, err = s.reconcileImages(ctx, tx, id, name, req, now)
		if err != nil {
			return err
		}

		reloaded, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		updated, err = s.hydrate(ctx, tx, *reloaded)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.removeFiles(ctx, removed)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrInvalidID
	}

	var urls []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if product == nil {
			return domain.ErrNotFound
		}

		images, err := s.repo.ListImages(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, img := range images {
			urls = append(urls, img.ImageURL)
		}

		if err := s.repo.DeleteSpecification(ctx, tx, id); err != nil {
			return err
		}
		if err := s.repo.DeleteAllImages(ctx, tx, id); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.removeFiles(ctx, urls)
	return nil
}

func (s *Service) scalarUpdates(ctx context.Context, tx *gorm.DB, product *domain.Product, req domain.UpdateRequest) (map[string]any, error) {
	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		if name != product.Name {
			productSlug, err := s.uniqueSlug(ctx, tx, name, product.ID)
			if err != nil {
				return nil, err
			}
			fields["name"] = name
			fields["slug"] = productSlug
		}
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, domain.ErrInvalidPrice
		}
		fields["price"] = *req.Price
	}
	if req.OldPrice != nil {
		if *req.OldPrice < 0 {
			return nil, domain.ErrInvalidPrice
		}
		fields["old_price"] = *req.OldPrice
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return nil, domain.ErrInvalidCategory
		}
		fields["category"] = category
	}
	if req.SubCategory != nil {
		fields["sub_category"] = strings.TrimSpace(*req.SubCategory)
	}
	if req.Brand != nil {
		fields["brand"] = strings.TrimSpace(*req.Brand)
	}
	if req.Usage != nil {
		fields["purpose"] = strings.TrimSpace(*req.Usage)
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, domain.ErrInvalidStock
		}
		fields["stock"] = *req.Stock
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	return fields, nil
}

// reconcileImages applies keep/append rules and re-elects the primary image.
// It returns the URLs of deleted images.
func (s *Service) reconcileImages(ctx context.Context, tx *gorm.DB, productID snowflake.ID, name string, req domain.UpdateRequest, now time.Time) ([]string, error) {
	current, err := s.repo.ListImages(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	keptOrder := make([]snowflake.ID, 0, len(current))
	var removed []string
	if req.KeptImages == nil {
		for _, img := range current {
			keptOrder = append(keptOrder, img.ID)
		}
	} else {
		keep := make(map[snowflake.ID]struct{}, len(*req.KeptImages))
		for _, id := range *req.KeptImages {
			keep[id] = struct{}{}
		}
		var drop []snowflake.ID
		for _, img := range current {
			if _, ok := keep[img.ID]; ok {
				continue
			}
			drop = append(drop, img.ID)
			removed = append(removed, img.ImageURL)
		}
		for _, id := range *req.KeptImages {
			for _, img := range current {
				if img.ID == id {
					keptOrder = append(keptOrder, id)
					break
				}
			}
		}
		if err := s.repo.DeleteImages(ctx, tx, productID, drop); err != nil {
			return nil, err
		}
	}

	maxOrder := -1
	for _, img := range current {
		if contains(keptOrder, img.ID) && img.Order > maxOrder {
			maxOrder = img.Order
		}
	}

	added := make([]snowflake.ID, 0, len(req.NewImages))
	for i, url := range req.NewImages {
		image := &domain.Image{
			ID:        s.genID.Generate(),
			ProductID: productID,
			ImageURL:  url,
			Order:     maxOrder + i + 1,
			Alt:       imageAlt(name, maxOrder+i+2),
			CreatedAt: now,
		}
		if err := s.repo.InsertImage(ctx, tx, image); err != nil {
			return nil, err
		}
		added = append(added, image.ID)
	}

	all, err := s.repo.ListImages(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return removed, nil
	}

	primary := resolvePrimary(req.PrimaryImage, keptOrder, added, all)
	if err := s.repo.SetPrimaryImage(ctx, tx, productID, primary); err != nil {
		return nil, err
	}
	return removed, nil
}

// resolvePrimary picks an explicit selection when it names a live image,
// then the first kept image, then the first image by order.
func resolvePrimary(selector string, kept, added []snowflake.ID, all []domain.Image) snowflake.ID {
	selector = strings.TrimSpace(selector)
	if selector != "" {
		if raw, ok := strings.CutPrefix(selector, "new:"); ok {
			if idx, err := strconv.Atoi(raw); err == nil && idx >= 0 && idx < len(added) {
				return added[idx]
			}
		} else if id, err := snowflake.ParseString(selector); err == nil {
			for _, img := range all {
				if img.ID == id {
					return id
				}
			}
		}
	}
	if len(kept) > 0 {
		return kept[0]
	}
	return all[0].ID
}

func (s *Service) uniqueSlug(ctx context.Context, tx *gorm.DB, name string, excludeID snowflake.ID) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "product"
	}
	exists, err := s.repo.SlugExists(ctx, tx, base, excludeID)
	if err != nil {
		return "", err
	}
	if !exists {
		return base, nil
	}
	return fmt.Sprintf("%s-%d", base, s.clock.Now().UnixMilli()), nil
}

func (s *Service) hydrate(ctx context.Context, tx *gorm.DB, product domain.Product) (domain.Product, error) {
	spec, err := s.repo.FindSpecification(ctx, tx, product.ID)
	if err != nil {
		return domain.Product{}, err
	}
	product.Specification = spec

	images, err := s.repo.ListImages(ctx, tx, product.ID)
	if err != nil {
		return domain.Product{}, err
	}
	if images == nil {
		images = []domain.Image{}
	}
	product.Images = images
	return product, nil
}

func (s *Service) attachImages(ctx context.Context, items []domain.Product) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	images, err := s.repo.ListImages(ctx, s.db, ids...)
	if err != nil {
		return err
	}
	byProduct := make(map[snowflake.ID][]domain.Image, len(items))
	for _, img := range images {
		byProduct[img.ProductID] = append(byProduct[img.ProductID], img)
	}
	for i := range items {
		items[i].Images = byProduct[items[i].ID]
		if items[i].Images == nil {
			items[i].Images = []domain.Image{}
		}
	}
	return nil
}

func (s *Service) removeFiles(ctx context.Context, urls []string) {
	if s.files == nil {
		return
	}
	for _, url := range urls {
		if err := s.files.Remove(ctx, url); err != nil {
			s.log.Warn("failed to remove product image", zap.String("url", url), zap.Error(err))
		}
	}
}

func applySpecification(spec *domain.Specification, in *domain.SpecificationInput, now time.Time) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&spec.CPUType, in.CPUType)
	set(&spec.RAMCapacity, in.RAMCapacity)
	set(&spec.RAMType, in.RAMType)
	set(&spec.RAMSlots, in.RAMSlots)
	set(&spec.Storage, in.Storage)
	set(&spec.Battery, in.Battery)
	set(&spec.GPUType, in.GPUType)
	set(&spec.ScreenSize, in.ScreenSize)
	set(&spec.ScreenTechnology, in.ScreenTechnology)
	set(&spec.ScreenResolution, in.ScreenResolution)
	set(&spec.OS, in.OS)
	set(&spec.Ports, in.Ports)
	set(&spec.OtherSpecs, in.OtherSpecs)
	set(&spec.Type, in.Type)

	if len(in.Specs) > 0 {
		merged := datatypes.JSONMap{}
		for k, v := range spec.Specs {
			merged[k] = v
		}
		for k, v := range in.Specs {
			merged[k] = v
		}
		spec.Specs = merged
	}
	spec.UpdatedAt = now
}

func imageAlt(name string, n int) string {
	return fmt.Sprintf("%s - Ảnh %d", name, n)
}

func contains(ids []snowflake.ID, id snowflake.ID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
