package server

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/qatech/internal/authorization"
	"github.com/smallbiznis/qatech/internal/observability/logger"
	productdomain "github.com/smallbiznis/qatech/internal/product/domain"
	"go.uber.org/zap"
)

type listProductsQuery struct {
	Category    string `form:"category"`
	SubCategory string `form:"subCategory"`
	Type        string `form:"type"`
	Brand       string `form:"brand"`
	Usage       string `form:"usage"`
	Search      string `form:"search"`
	MinPrice    string `form:"minPrice"`
	MaxPrice    string `form:"maxPrice"`
	Active      string `form:"active"`
	SortBy      string `form:"sortBy"`
	Order       string `form:"order"`
	Page        string `form:"page"`
	Limit       string `form:"limit"`
}

// productForm is the multipart body of create and update. Blank fields are
// treated as absent.
type productForm struct {
	Name          string `form:"name"`
	Description   string `form:"description"`
	Price         string `form:"price"`
	OldPrice      string `form:"oldPrice"`
	Category      string `form:"category"`
	SubCategory   string `form:"subCategory"`
	Brand         string `form:"brand"`
	Usage         string `form:"usage"`
	Stock         string `form:"stock"`
	IsActive      string `form:"isActive"`
	Specification string `form:"specification"`
	KeptImages    string `form:"keptImages"`
	PrimaryImage  string `form:"primaryImage"`
}

type specificationPayload struct {
	CPUType          *string        `json:"cpuType"`
	RAMCapacity      *string        `json:"ramCapacity"`
	RAMType          *string        `json:"ramType"`
	RAMSlots         *string        `json:"ramSlots"`
	Storage          *string        `json:"storage"`
	Battery          *string        `json:"battery"`
	GPUType          *string        `json:"gpuType"`
	ScreenSize       *string        `json:"screenSize"`
	ScreenTechnology *string        `json:"screenTechnology"`
	ScreenResolution *string        `json:"screenResolution"`
	OS               *string        `json:"os"`
	Ports            *string        `json:"ports"`
	OtherSpecs       *string        `json:"otherSpecs"`
	Type             *string        `json:"type"`
	Specs            map[string]any `json:"specs"`
}

func (s *Server) ListProducts(c *gin.Context) {
	var query listProductsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	minPrice, err := parseOptionalInt64(query.MinPrice)
	if err != nil {
		AbortWithError(c, newValidationError("minPrice", "invalid_min_price", "invalid minPrice"))
		return
	}
	maxPrice, err := parseOptionalInt64(query.MaxPrice)
	if err != nil {
		AbortWithError(c, newValidationError("maxPrice", "invalid_max_price", "invalid maxPrice"))
		return
	}

	active := true
	activeFilter := &active
	if s.canReadInactive(c) {
		activeFilter, err = parseOptionalBool(query.Active)
		if err != nil {
			AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
			return
		}
	}

	subCategory := strings.TrimSpace(query.SubCategory)
	if subCategory == "" {
		subCategory = strings.TrimSpace(query.Type)
	}

	resp, err := s.productSvc.List(c.Request.Context(), productdomain.ListRequest{
		Category:    strings.TrimSpace(query.Category),
		SubCategory: subCategory,
		Brand:       strings.TrimSpace(query.Brand),
		Usage:       strings.TrimSpace(query.Usage),
		Search:      strings.TrimSpace(query.Search),
		MinPrice:    minPrice,
		MaxPrice:    maxPrice,
		Active:      activeFilter,
		SortBy:      strings.TrimSpace(query.SortBy),
		Order:       strings.TrimSpace(query.Order),
		Page:        parsePositiveInt(query.Page, 1),
		Limit:       parsePositiveInt(query.Limit, 12),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetProduct(c *gin.Context) {
	product, err := s.productSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")), s.canReadInactive(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": product})
}

func (s *Server) CreateProduct(c *gin.Context) {
	var form productForm
	if err := c.ShouldBind(&form); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := productdomain.CreateRequest{
		Name:        strings.TrimSpace(form.Name),
		Description: strings.TrimSpace(form.Description),
		Category:    strings.TrimSpace(form.Category),
		SubCategory: strings.TrimSpace(form.SubCategory),
		Brand:       strings.TrimSpace(form.Brand),
		Usage:       strings.TrimSpace(form.Usage),
	}

	price, err := parseOptionalInt64(form.Price)
	if err != nil || price == nil {
		AbortWithError(c, productdomain.ErrInvalidPrice)
		return
	}
	req.Price = *price

	if req.OldPrice, err = parseOptionalInt64(form.OldPrice); err != nil {
		AbortWithError(c, productdomain.ErrInvalidPrice)
		return
	}
	stock, err := parseOptionalInt64(form.Stock)
	if err != nil {
		AbortWithError(c, productdomain.ErrInvalidStock)
		return
	}
	if stock != nil {
		req.Stock = int(*stock)
	}
	if req.IsActive, err = parseOptionalBool(form.IsActive); err != nil {
		AbortWithError(c, newValidationError("isActive", "invalid_is_active", "invalid isActive"))
		return
	}
	if req.Specification, err = parseSpecification(form.Specification); err != nil {
		AbortWithError(c, newValidationError("specification", "invalid_specification", "invalid specification"))
		return
	}

	ctx := c.Request.Context()
	urls, err := s.saveImages(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req.Images = urls

	product, err := s.productSvc.Create(ctx, req)
	if err != nil {
		s.discardImages(c, urls)
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": product})
}

func (s *Server) UpdateProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var form productForm
	if err := c.ShouldBind(&form); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := productdomain.UpdateRequest{
		Name:         optionalString(form.Name),
		Description:  optionalString(form.Description),
		Category:     optionalString(form.Category),
		SubCategory:  optionalString(form.SubCategory),
		Brand:        optionalString(form.Brand),
		Usage:        optionalString(form.Usage),
		PrimaryImage: strings.TrimSpace(form.PrimaryImage),
	}

	var err error
	if req.Price, err = parseOptionalInt64(form.Price); err != nil {
		AbortWithError(c, productdomain.ErrInvalidPrice)
		return
	}
	if req.OldPrice, err = parseOptionalInt64(form.OldPrice); err != nil {
		AbortWithError(c, productdomain.ErrInvalidPrice)
		return
	}
	stock, err := parseOptionalInt64(form.Stock)
	if err != nil {
		AbortWithError(c, productdomain.ErrInvalidStock)
		return
	}
	if stock != nil {
		value := int(*stock)
		req.Stock = &value
	}
	if req.IsActive, err = parseOptionalBool(form.IsActive); err != nil {
		AbortWithError(c, newValidationError("isActive", "invalid_is_active", "invalid isActive"))
		return
	}
	if req.Specification, err = parseSpecification(form.Specification); err != nil {
		AbortWithError(c, newValidationError("specification", "invalid_specification", "invalid specification"))
		return
	}
	if req.KeptImages, err = parseKeptImages(form.KeptImages); err != nil {
		AbortWithError(c, newValidationError("keptImages", "invalid_kept_images", "invalid keptImages"))
		return
	}

	urls, err := s.saveImages(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req.NewImages = urls

	product, err := s.productSvc.Update(c.Request.Context(), id, req)
	if err != nil {
		s.discardImages(c, urls)
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": product})
}

func (s *Server) DeleteProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := s.productSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id}})
}

// canReadInactive reports whether the optional caller may see inactive products.
func (s *Server) canReadInactive(c *gin.Context) bool {
	actor, ok := actorFrom(c)
	if !ok {
		return false
	}
	return s.authzSvc.Authorize(c.Request.Context(), actor, authorization.ObjectProduct, authorization.ActionProductReadInactive) == nil
}

func (s *Server) saveImages(c *gin.Context) ([]string, error) {
	headers := multipartFiles(c, "images")
	if len(headers) == 0 {
		return nil, nil
	}
	return s.uploads.SaveAll(c.Request.Context(), headers)
}

func (s *Server) discardImages(c *gin.Context, urls []string) {
	ctx := c.Request.Context()
	for _, url := range urls {
		if err := s.uploads.Remove(ctx, url); err != nil {
			logger.FromContext(ctx).Warn("discard uploaded image failed", zap.String("url", url), zap.Error(err))
		}
	}
}

func multipartFiles(c *gin.Context, field string) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File[field]
}

func parseSpecification(raw string) (*productdomain.SpecificationInput, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var payload specificationPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, err
	}
	return &productdomain.SpecificationInput{
		CPUType:          payload.CPUType,
		RAMCapacity:      payload.RAMCapacity,
		RAMType:          payload.RAMType,
		RAMSlots:         payload.RAMSlots,
		Storage:          payload.Storage,
		Battery:          payload.Battery,
		GPUType:          payload.GPUType,
		ScreenSize:       payload.ScreenSize,
		ScreenTechnology: payload.ScreenTechnology,
		ScreenResolution: payload.ScreenResolution,
		OS:               payload.OS,
		Ports:            payload.Ports,
		OtherSpecs:       payload.OtherSpecs,
		Type:             payload.Type,
		Specs:            payload.Specs,
	}, nil
}

// parseKeptImages reads a JSON array of image ids. Blank keeps every image.
func parseKeptImages(raw string) (*[]snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var values []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(values))
	for _, value := range values {
		text := strings.Trim(strings.TrimSpace(string(value)), `"`)
		parsed, err := strconv.ParseInt(text, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, productdomain.ErrInvalidImage
		}
		ids = append(ids, snowflake.ID(parsed))
	}
	return &ids, nil
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
