package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	cartdomain "github.com/smallbiznis/qatech/internal/cart/domain"
)

// flexibleID accepts ids sent as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	*f = flexibleID(strings.Trim(strings.TrimSpace(string(data)), `"`))
	return nil
}

func (f flexibleID) ID() (snowflake.ID, error) {
	return parseSnowflakeID(string(f))
}

type cartItemRequest struct {
	ProductID flexibleID `json:"productId"`
	Quantity  *int       `json:"quantity"`
}

type addMultipleRequest struct {
	Items []cartItemRequest `json:"items"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) GetCart(c *gin.Context) {
	view, err := s.cartSvc.Get(c.Request.Context(), cartKey(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) AddToCart(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	productID, err := req.ProductID.ID()
	if err != nil {
		AbortWithError(c, cartdomain.ErrInvalidProduct)
		return
	}

	view, err := s.cartSvc.Add(c.Request.Context(), cartKey(c), productID, quantityOrOne(req.Quantity))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) AddMultipleToCart(c *gin.Context) {
	var req addMultipleRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Items) == 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	items := make([]cartdomain.AddItem, 0, len(req.Items))
	var itemErrors []cartdomain.ItemError
	for _, item := range req.Items {
		productID, err := item.ProductID.ID()
		if err != nil {
			itemErrors = append(itemErrors, cartdomain.ItemError{Error: cartdomain.ErrInvalidProduct.Error()})
			continue
		}
		items = append(items, cartdomain.AddItem{ProductID: productID, Quantity: quantityOrOne(item.Quantity)})
	}

	view, serviceErrors, err := s.cartSvc.AddMultiple(c.Request.Context(), cartKey(c), items)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	itemErrors = append(itemErrors, serviceErrors...)

	c.JSON(http.StatusOK, gin.H{"data": view, "errors": itemErrors})
}

func (s *Server) UpdateCartItem(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}
	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	view, err := s.cartSvc.Update(c.Request.Context(), cartKey(c), productID, req.Quantity)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) RemoveCartItem(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}

	view, err := s.cartSvc.Remove(c.Request.Context(), cartKey(c), productID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) ClearCart(c *gin.Context) {
	if err := s.cartSvc.Clear(c.Request.Context(), cartKey(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"items": []any{}, "total": 0, "itemCount": 0}})
}

func quantityOrOne(q *int) int {
	if q == nil {
		return 1
	}
	return *q
}

func formatID(id snowflake.ID) string {
	return strconv.FormatInt(id.Int64(), 10)
}
