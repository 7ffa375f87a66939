package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/qatech/internal/observability/context"
	paymentdomain "github.com/smallbiznis/qatech/internal/payment/domain"
)

type createPaymentRequest struct {
	OrderID  flexibleID `json:"orderId"`
	BankCode string     `json:"bankCode"`
}

type confirmPaymentRequest struct {
	OrderID       flexibleID `json:"orderId"`
	TxnRef        string     `json:"vnp_TxnRef"`
	ResponseCode  string     `json:"vnp_ResponseCode"`
	TransactionNo string     `json:"vnp_TransactionNo"`
}

func (s *Server) CreatePayment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	orderID, err := req.OrderID.ID()
	if err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidOrderID)
		return
	}

	result, err := s.paymentSvc.CreatePayment(c.Request.Context(), paymentdomain.CreatePaymentRequest{
		OrderID:  orderID,
		UserID:   actor.UserID,
		BankCode: strings.TrimSpace(req.BankCode),
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// VNPayIPN answers the gateway with its own acknowledgement format. It never
// produces an HTTP error.
func (s *Server) VNPayIPN(c *gin.Context) {
	ctx := obscontext.WithActor(c.Request.Context(), "system", paymentdomain.ProviderVNPay)
	ack := s.paymentSvc.HandleIPN(ctx, c.Request.URL.Query())
	c.JSON(http.StatusOK, ack)
}

func (s *Server) VNPayReturn(c *gin.Context) {
	ctx := obscontext.WithActor(c.Request.Context(), "system", paymentdomain.ProviderVNPay)
	result, err := s.paymentSvc.HandleReturn(ctx, c.Request.URL.Query())
	if errors.Is(err, paymentdomain.ErrInvalidSignature) {
		c.JSON(http.StatusBadRequest, gin.H{"data": paymentdomain.ReturnResult{
			Success: false,
			Message: "Chữ ký không hợp lệ",
		}})
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// ConfirmVNPayReturn trusts client-supplied result codes and is off unless configured.
func (s *Server) ConfirmVNPayReturn(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	confirm := paymentdomain.ConfirmRequest{
		TxnRef:        strings.TrimSpace(req.TxnRef),
		ResponseCode:  strings.TrimSpace(req.ResponseCode),
		TransactionNo: strings.TrimSpace(req.TransactionNo),
	}
	if strings.TrimSpace(string(req.OrderID)) != "" {
		orderID, err := req.OrderID.ID()
		if err != nil {
			AbortWithError(c, paymentdomain.ErrInvalidOrderID)
			return
		}
		confirm.OrderID = orderID
	}

	result, err := s.paymentSvc.ConfirmUnsigned(c.Request.Context(), confirm)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) PaymentStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	orderID, ok := pathID(c, "orderId")
	if !ok {
		return
	}

	view, err := s.paymentSvc.Status(c.Request.Context(), orderID, actor.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}
