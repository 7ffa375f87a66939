package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/qatech/internal/order/domain"
)

type orderItemRequest struct {
	ProductID flexibleID `json:"productId"`
	Quantity  int        `json:"quantity"`
	Price     int64      `json:"price"`
	Name      string     `json:"name"`
	Image     string     `json:"image"`
}

type createOrderRequest struct {
	Items           []orderItemRequest          `json:"items"`
	ShippingAddress orderdomain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                      `json:"paymentMethod"`
	Note            string                      `json:"note"`
}

type listOrdersQuery struct {
	Status        string `form:"status"`
	PaymentStatus string `form:"paymentStatus"`
	PaymentMethod string `form:"paymentMethod"`
	DateFrom      string `form:"dateFrom"`
	DateTo        string `form:"dateTo"`
	Search        string `form:"search"`
	SortBy        string `form:"sortBy"`
	Order         string `form:"order"`
	Page          string `form:"page"`
	Limit         string `form:"limit"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	items := make([]orderdomain.CreateItem, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := item.ProductID.ID()
		if err != nil {
			AbortWithError(c, orderdomain.ErrInvalidItems)
			return
		}
		items = append(items, orderdomain.CreateItem{
			ProductID: productID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Name:      strings.TrimSpace(item.Name),
			Image:     strings.TrimSpace(item.Image),
		})
	}

	order, err := s.orderSvc.Create(c.Request.Context(), orderdomain.CreateRequest{
		UserID:          actor.UserID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   orderdomain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		Note:            strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": order})
}

func (s *Server) ListMyOrders(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	resp, err := s.orderSvc.ListForUser(c.Request.Context(), orderdomain.ListForUserRequest{
		UserID: actor.UserID,
		Status: strings.TrimSpace(c.Query("status")),
		Page:   parsePositiveInt(c.Query("page"), 1),
		Limit:  parsePositiveInt(c.Query("limit"), 10),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetOrder(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "orderId")
	if !ok {
		return
	}

	order, err := s.orderSvc.Get(c.Request.Context(), orderID, actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) ListOrders(c *gin.Context) {
	var query listOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	dateFrom, err := parseOptionalTime(query.DateFrom, false)
	if err != nil {
		AbortWithError(c, newValidationError("dateFrom", "invalid_date_from", "invalid dateFrom"))
		return
	}
	dateTo, err := parseOptionalTime(query.DateTo, true)
	if err != nil {
		AbortWithError(c, newValidationError("dateTo", "invalid_date_to", "invalid dateTo"))
		return
	}

	resp, err := s.orderSvc.ListAll(c.Request.Context(), orderdomain.ListAllRequest{
		Status:        strings.TrimSpace(query.Status),
		PaymentStatus: strings.TrimSpace(query.PaymentStatus),
		PaymentMethod: strings.TrimSpace(query.PaymentMethod),
		DateFrom:      dateFrom,
		DateTo:        dateTo,
		Search:        strings.TrimSpace(query.Search),
		SortBy:        strings.TrimSpace(query.SortBy),
		Order:         strings.TrimSpace(query.Order),
		Page:          parsePositiveInt(query.Page, 1),
		Limit:         parsePositiveInt(query.Limit, 20),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateOrderStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "orderId")
	if !ok {
		return
	}

	var req updateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, err := s.orderSvc.UpdateStatus(c.Request.Context(), orderdomain.UpdateStatusRequest{
		OrderID:   orderID,
		Status:    orderdomain.Status(strings.ToLower(strings.TrimSpace(req.Status))),
		UpdatedBy: "staff:" + formatID(actor.UserID),
		Note:      strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) CancelOrder(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "orderId")
	if !ok {
		return
	}

	var req cancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	order, err := s.orderSvc.Cancel(c.Request.Context(), orderdomain.CancelRequest{
		OrderID: orderID,
		UserID:  actor.UserID,
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) OrderStatistics(c *gin.Context) {
	stats, err := s.orderSvc.Statistics(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (s *Server) DownloadInvoice(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "orderId")
	if !ok {
		return
	}

	reader, order, err := s.orderSvc.Invoice(c.Request.Context(), orderID, actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice-%s.pdf"`, order.OrderCode))
	c.Data(http.StatusOK, "application/pdf", body)
}
