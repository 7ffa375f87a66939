package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qatech/internal/clock"
	"github.com/smallbiznis/qatech/internal/product/domain"
	"github.com/smallbiznis/qatech/internal/product/repository"
	"github.com/smallbiznis/qatech/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingFiles struct {
	removed []string
}

func (r *recordingFiles) Remove(ctx context.Context, url string) error {
	r.removed = append(r.removed, url)
	return nil
}

type fixture struct {
	svc   domain.Service
	db    *gorm.DB
	files *recordingFiles
	clock *clock.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := testutil.NewDB(t)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	files := &recordingFiles{}
	svc := New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clk,
		Repo:  repository.Provide(),
		Files: files,
	})
	return fixture{svc: svc, db: conn, files: files, clock: clk}
}

func ptr[T any](v T) *T { return &v }

func primaryURL(images []domain.Image) string {
	for _, img := range images {
		if img.IsPrimary {
			return img.ImageURL
		}
	}
	return ""
}

func TestCreateBuildsSlugSpecAndImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	product, err := f.svc.Create(ctx, domain.CreateRequest{
		Name:     "  Dell XPS 13 Plus  ",
		Price:    32990000,
		Category: "laptop",
		Brand:    "Dell",
		Usage:    "office",
		Stock:    4,
		Specification: &domain.SpecificationInput{
			CPUType: ptr("Intel Core i7"),
			Specs:   map[string]any{"weight": "1.2kg"},
		},
		Images: []string{"/uploads/a.png", "/uploads/b.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Dell XPS 13 Plus", product.Name)
	assert.Equal(t, "dell-xps-13-plus", product.Slug)
	assert.True(t, product.IsActive)
	require.NotNil(t, product.Specification)
	assert.Equal(t, "Intel Core i7", product.Specification.CPUType)
	require.Len(t, product.Images, 2)
	assert.Equal(t, "/uploads/a.png", primaryURL(product.Images))
	assert.Equal(t, "Dell XPS 13 Plus - Ảnh 2", product.Images[1].Alt)

	again, err := f.svc.Create(ctx, domain.CreateRequest{Name: "Dell XPS 13 Plus", Price: 1, Category: "laptop"})
	require.NoError(t, err)
	assert.Equal(t, "dell-xps-13-plus-"+strconv.FormatInt(f.clock.Now().UnixMilli(), 10), again.Slug)
	assert.Empty(t, again.Images)

	bySlug, err := f.svc.Get(ctx, "dell-xps-13-plus", false)
	require.NoError(t, err)
	assert.Equal(t, product.ID, bySlug.ID)
	byID, err := f.svc.Get(ctx, again.ID.String(), false)
	require.NoError(t, err)
	assert.Equal(t, again.Slug, byID.Slug)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.CreateRequest
		want error
	}{
		{"blank name", domain.CreateRequest{Name: " ", Category: "laptop"}, domain.ErrInvalidName},
		{"blank category", domain.CreateRequest{Name: "X"}, domain.ErrInvalidCategory},
		{"negative price", domain.CreateRequest{Name: "X", Category: "laptop", Price: -1}, domain.ErrInvalidPrice},
		{"negative old price", domain.CreateRequest{Name: "X", Category: "laptop", OldPrice: ptr(int64(-5))}, domain.ErrInvalidPrice},
		{"negative stock", domain.CreateRequest{Name: "X", Category: "laptop", Stock: -1}, domain.ErrInvalidStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM products", 0)
}

func TestGetHidesInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	product, err := f.svc.Create(ctx, domain.CreateRequest{Name: "Old Model", Category: "laptop", IsActive: ptr(false)})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, product.Slug, false)
	require.ErrorIs(t, err, domain.ErrNotFound)

	got, err := f.svc.Get(ctx, product.Slug, true)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = f.svc.Get(ctx, "", true)
	require.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestUpdateReconcilesImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	product, err := f.svc.Create(ctx, domain.CreateRequest{
		Name:     "Gaming Laptop",
		Category: "laptop",
		Images:   []string{"/uploads/a.png", "/uploads/b.png", "/uploads/c.png"},
	})
	require.NoError(t, err)
	a, b, c := product.Images[0], product.Images[1], product.Images[2]

	updated, err := f.svc.Update(ctx, product.ID, domain.UpdateRequest{
		KeptImages: &[]snowflake.ID{c.ID, b.ID},
		NewImages:  []string{"/uploads/d.png"},
	})
	require.NoError(t, err)
	require.Len(t, updated.Images, 3)
	assert.Equal(t, "/uploads/c.png", primaryURL(updated.Images))
	assert.Equal(t, []string{a.ImageURL}, f.files.removed)
	last := updated.Images[len(updated.Images)-1]
	assert.Equal(t, "/uploads/d.png", last.ImageURL)
	assert.Equal(t, 3, last.Order)

	updated, err = f.svc.Update(ctx, product.ID, domain.UpdateRequest{
		NewImages:    []string{"/uploads/e.png"},
		PrimaryImage: "new:0",
	})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/e.png", primaryURL(updated.Images))

	updated, err = f.svc.Update(ctx, product.ID, domain.UpdateRequest{PrimaryImage: b.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/b.png", primaryURL(updated.Images))

	updated, err = f.svc.Update(ctx, product.ID, domain.UpdateRequest{PrimaryImage: "123"})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/b.png", primaryURL(updated.Images), "unknown selector falls back to the first kept image")
}

func TestUpdateScalarsAndSlug(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	product, err := f.svc.Create(ctx, domain.CreateRequest{Name: "Mouse", Category: "accessory", Price: 100, Stock: 1})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	updated, err := f.svc.Update(ctx, product.ID, domain.UpdateRequest{
		Name:  ptr("Wireless Mouse"),
		Price: ptr(int64(250)),
		Stock: ptr(7),
		Specification: &domain.SpecificationInput{
			Type: ptr("mouse"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "wireless-mouse", updated.Slug)
	assert.Equal(t, int64(250), updated.Price)
	assert.Equal(t, 7, updated.Stock)
	assert.True(t, updated.UpdatedAt.Equal(f.clock.Now()))
	require.NotNil(t, updated.Specification)
	assert.Equal(t, "mouse", updated.Specification.Type)

	_, err = f.svc.Update(ctx, product.ID, domain.UpdateRequest{Stock: ptr(-1)})
	require.ErrorIs(t, err, domain.ErrInvalidStock)
	_, err = f.svc.Update(ctx, 42, domain.UpdateRequest{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListFiltersAndPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, p := range []domain.CreateRequest{
		{Name: "Asus Zenbook", Category: "laptop", Brand: "Asus", Price: 2000},
		{Name: "Asus ROG", Category: "laptop", Brand: "Asus", Price: 3000},
		{Name: "Dell Mouse", Category: "accessory", Brand: "Dell", Price: 100},
		{Name: "Hidden Laptop", Category: "laptop", Brand: "Asus", Price: 1000, IsActive: ptr(false)},
	} {
		f.clock.Advance(time.Duration(i+1) * time.Second)
		_, err := f.svc.Create(ctx, p)
		require.NoError(t, err)
	}

	res, err := f.svc.List(ctx, domain.ListRequest{Category: "laptop", Active: ptr(true), SortBy: "price", Order: "asc", Limit: 1})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Asus Zenbook", res.Items[0].Name)
	assert.Equal(t, domain.Pagination{CurrentPage: 1, TotalPages: 2, TotalItems: 2, HasMore: true}, res.Pagination)

	res, err = f.svc.List(ctx, domain.ListRequest{Search: "ROG", Active: ptr(true)})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Asus ROG", res.Items[0].Name)
	assert.NotNil(t, res.Items[0].Images)

	res, err = f.svc.List(ctx, domain.ListRequest{MinPrice: ptr(int64(500)), MaxPrice: ptr(int64(2500))})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Pagination.TotalItems)

	_, err = f.svc.List(ctx, domain.ListRequest{MinPrice: ptr(int64(10)), MaxPrice: ptr(int64(1))})
	require.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestDeleteRemovesChildrenAndFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	product, err := f.svc.Create(ctx, domain.CreateRequest{
		Name:          "Monitor",
		Category:      "monitor",
		Specification: &domain.SpecificationInput{ScreenSize: ptr("27")},
		Images:        []string{"/uploads/m1.png", "/uploads/m2.png"},
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, product.ID))
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM products", 0)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM product_images", 0)
	testutil.AssertCount(t, f.db, "SELECT COUNT(*) FROM specifications", 0)
	assert.ElementsMatch(t, []string{"/uploads/m1.png", "/uploads/m2.png"}, f.files.removed)

	require.ErrorIs(t, f.svc.Delete(ctx, product.ID), domain.ErrNotFound)
}
