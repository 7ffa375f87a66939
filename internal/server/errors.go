package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/qatech/internal/audit/domain"
	authdomain "github.com/smallbiznis/qatech/internal/auth/domain"
	"github.com/smallbiznis/qatech/internal/authorization"
	cartdomain "github.com/smallbiznis/qatech/internal/cart/domain"
	"github.com/smallbiznis/qatech/internal/observability/logger"
	orderdomain "github.com/smallbiznis/qatech/internal/order/domain"
	paymentdomain "github.com/smallbiznis/qatech/internal/payment/domain"
	productdomain "github.com/smallbiznis/qatech/internal/product/domain"
	"github.com/smallbiznis/qatech/internal/providers/storage"
	reviewdomain "github.com/smallbiznis/qatech/internal/review/domain"
	userdomain "github.com/smallbiznis/qatech/internal/user/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status == http.StatusInternalServerError {
			logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(lastErr.Err))
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	if isBusinessRuleError(err) {
		return http.StatusBadRequest, errorPayload{
			Type:    "business_rule",
			Message: businessRuleMessage(err),
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidToken),
		errors.Is(err, authdomain.ErrTokenExpired):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: unauthorizedMessage(err),
		}
	case errors.Is(err, authdomain.ErrAccountInactive):
		return http.StatusForbidden, errorPayload{
			Type:    "account_inactive",
			Message: "Tài khoản đã bị khóa",
		}
	case isForbiddenError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, authdomain.ErrUserExists),
		errors.Is(err, userdomain.ErrEmailTaken):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "Email đã được sử dụng",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "Quá nhiều yêu cầu, vui lòng thử lại sau",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, paymentdomain.ErrGatewayUnavailable),
		errors.Is(err, paymentdomain.ErrLockBusy):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger's error_type/error_code fields.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isAuthValidationError(err),
		isUserValidationError(err),
		isProductValidationError(err),
		isCartValidationError(err),
		isOrderValidationError(err),
		isPaymentValidationError(err),
		isReviewValidationError(err),
		isUploadValidationError(err),
		isAuditValidationError(err):
		return true
	default:
		return false
	}
}

func isBusinessRuleError(err error) bool {
	switch {
	case errors.Is(err, cartdomain.ErrInsufficientStock),
		errors.Is(err, cartdomain.ErrProductInactive),
		errors.Is(err, orderdomain.ErrInsufficientStock),
		errors.Is(err, orderdomain.ErrOrderCancelled),
		errors.Is(err, orderdomain.ErrStatusRegression),
		errors.Is(err, orderdomain.ErrOrderNotCancellable),
		errors.Is(err, orderdomain.ErrInvoiceUnavailable),
		errors.Is(err, paymentdomain.ErrOrderNotPayable),
		errors.Is(err, reviewdomain.ErrAlreadyReviewed),
		errors.Is(err, reviewdomain.ErrNotPurchased),
		errors.Is(err, authdomain.ErrInvalidOTP),
		errors.Is(err, authdomain.ErrOTPExpired),
		errors.Is(err, userdomain.ErrSelfEmailChange),
		errors.Is(err, userdomain.ErrSelfRoleChange),
		errors.Is(err, userdomain.ErrSelfDeactivate),
		errors.Is(err, userdomain.ErrSelfDelete),
		errors.Is(err, userdomain.ErrUserHasOrders):
		return true
	default:
		return false
	}
}

var businessRuleMessages = map[error]string{
	cartdomain.ErrInsufficientStock:    "Không đủ hàng trong kho",
	cartdomain.ErrProductInactive:      "Sản phẩm đã ngừng kinh doanh",
	orderdomain.ErrInsufficientStock:   "Không đủ hàng trong kho",
	orderdomain.ErrOrderCancelled:      "Đơn hàng đã bị hủy",
	orderdomain.ErrStatusRegression:    "Không thể chuyển về trạng thái trước đó",
	orderdomain.ErrOrderNotCancellable: "Không thể hủy đơn hàng ở trạng thái hiện tại",
	orderdomain.ErrInvoiceUnavailable:  "Hóa đơn chỉ có sau khi thanh toán hoặc giao hàng",
	paymentdomain.ErrOrderNotPayable:   "Đơn hàng không thể thanh toán",
	reviewdomain.ErrAlreadyReviewed:    "Bạn đã đánh giá sản phẩm này",
	reviewdomain.ErrNotPurchased:       "Bạn cần mua sản phẩm trước khi đánh giá",
	authdomain.ErrInvalidOTP:           "Mã OTP không hợp lệ",
	authdomain.ErrOTPExpired:           "Mã OTP đã hết hạn",
	userdomain.ErrSelfEmailChange:      "Không thể thay đổi email của chính mình",
	userdomain.ErrSelfRoleChange:       "Không thể thay đổi vai trò của chính mình",
	userdomain.ErrSelfDeactivate:       "Không thể khóa tài khoản của chính mình",
	userdomain.ErrSelfDelete:           "Không thể xóa tài khoản của chính mình",
	userdomain.ErrUserHasOrders:        "Không thể xóa người dùng đã có đơn hàng",
}

func businessRuleMessage(err error) string {
	for target, msg := range businessRuleMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return err.Error()
}

func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, authdomain.ErrInvalidCredentials):
		return "Email hoặc mật khẩu không đúng"
	case errors.Is(err, authdomain.ErrTokenExpired):
		return "Phiên đăng nhập đã hết hạn"
	default:
		return "unauthorized"
	}
}

func isForbiddenError(err error) bool {
	switch {
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidActor),
		errors.Is(err, orderdomain.ErrForbidden),
		errors.Is(err, reviewdomain.ErrForbidden):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, cartdomain.ErrProductNotFound),
		errors.Is(err, cartdomain.ErrLineNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrProductNotFound),
		errors.Is(err, paymentdomain.ErrOrderNotFound),
		errors.Is(err, paymentdomain.ErrUnsignedConfirmDisabled),
		errors.Is(err, reviewdomain.ErrNotFound),
		errors.Is(err, reviewdomain.ErrProductNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isAuthValidationError(err error) bool {
	switch err {
	case authdomain.ErrInvalidName,
		authdomain.ErrInvalidEmail,
		authdomain.ErrInvalidPassword:
		return true
	default:
		return false
	}
}

func isUserValidationError(err error) bool {
	switch err {
	case userdomain.ErrInvalidName,
		userdomain.ErrInvalidEmail,
		userdomain.ErrInvalidPassword,
		userdomain.ErrInvalidRole:
		return true
	default:
		return false
	}
}

func isProductValidationError(err error) bool {
	switch err {
	case productdomain.ErrInvalidID,
		productdomain.ErrInvalidName,
		productdomain.ErrInvalidPrice,
		productdomain.ErrInvalidStock,
		productdomain.ErrInvalidCategory,
		productdomain.ErrInvalidImage:
		return true
	default:
		return false
	}
}

func isCartValidationError(err error) bool {
	switch err {
	case cartdomain.ErrInvalidSession,
		cartdomain.ErrInvalidProduct,
		cartdomain.ErrInvalidQuantity:
		return true
	default:
		return false
	}
}

func isOrderValidationError(err error) bool {
	switch err {
	case orderdomain.ErrInvalidID,
		orderdomain.ErrInvalidItems,
		orderdomain.ErrInvalidQuantity,
		orderdomain.ErrInvalidPrice,
		orderdomain.ErrInvalidShipping,
		orderdomain.ErrInvalidPayment,
		orderdomain.ErrInvalidStatus:
		return true
	default:
		return false
	}
}

func isPaymentValidationError(err error) bool {
	switch err {
	case paymentdomain.ErrInvalidOrderID,
		paymentdomain.ErrInvalidSignature,
		paymentdomain.ErrInvalidAmount:
		return true
	default:
		return false
	}
}

func isReviewValidationError(err error) bool {
	switch err {
	case reviewdomain.ErrInvalidID,
		reviewdomain.ErrInvalidRating,
		reviewdomain.ErrInvalidComment,
		reviewdomain.ErrInvalidReply:
		return true
	default:
		return false
	}
}

func isUploadValidationError(err error) bool {
	switch {
	case errors.Is(err, storage.ErrTooLarge),
		errors.Is(err, storage.ErrTooManyFiles),
		errors.Is(err, storage.ErrUnsupportedType),
		errors.Is(err, storage.ErrInvalidName):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	switch err {
	case auditdomain.ErrInvalidPageToken,
		auditdomain.ErrInvalidTimeRange,
		auditdomain.ErrInvalidAction:
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, storage.ErrTooLarge),
		errors.Is(err, storage.ErrTooManyFiles),
		errors.Is(err, storage.ErrUnsupportedType),
		errors.Is(err, storage.ErrInvalidName):
		return "invalid_upload"
	default:
		return strings.ReplaceAll(err.Error(), " ", "_")
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_upload":
		return "Tệp tải lên không hợp lệ"
	case "invalid_signature":
		return "Chữ ký không hợp lệ"
	default:
		return "invalid value"
	}
}
