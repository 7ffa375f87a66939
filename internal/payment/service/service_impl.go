package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/qatech/internal/audit/domain"
	"github.com/smallbiznis/qatech/internal/clock"
	"github.com/smallbiznis/qatech/internal/config"
	obsmetrics "github.com/smallbiznis/qatech/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/qatech/internal/order/domain"
	paymentdomain "github.com/smallbiznis/qatech/internal/payment/domain"
	"github.com/smallbiznis/qatech/internal/payment/vnpay"
	"github.com/smallbiznis/qatech/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	historyActor     = "vnpay"
	successNote      = "Thanh toán VNPay thành công - Mã GD: %s"
	orderInfoFormat  = "Thanh toan don hang %s"
	unsignedEventKey = "confirm:%s:%s:%s"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Repo       paymentdomain.Repository
	OrderRepo  orderdomain.Repository
	Gateway    *vnpay.Client
	AuditSvc   auditdomain.Service      `optional:"true"`
	Locker     paymentdomain.Locker     `optional:"true"`
	Storefront *config.StorefrontHolder `optional:"true"`
	ObsMetrics *obsmetrics.Metrics      `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          paymentdomain.Repository
	orderRepo     orderdomain.Repository
	gateway       *vnpay.Client
	auditSvc      auditdomain.Service
	locker        paymentdomain.Locker
	storefront    *config.StorefrontHolder
	obsMetrics    *obsmetrics.Metrics
	allowUnsigned bool
	lockTTL       time.Duration
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		orderRepo:     p.OrderRepo,
		gateway:       p.Gateway,
		auditSvc:      p.AuditSvc,
		locker:        p.Locker,
		storefront:    p.Storefront,
		obsMetrics:    p.ObsMetrics,
		allowUnsigned: p.Cfg.VNPay.AllowUnsignedConfirm,
		lockTTL:       ratelimit.LockTTL(p.Cfg),
	}
}

func (s *Service) CreatePayment(ctx context.Context, req paymentdomain.CreatePaymentRequest) (paymentdomain.CreatePaymentResult, error) {
	if req.OrderID == 0 {
		return paymentdomain.CreatePaymentResult{}, paymentdomain.ErrInvalidOrderID
	}
	if !s.gateway.Configured() {
		return paymentdomain.CreatePaymentResult{}, paymentdomain.ErrGatewayUnavailable
	}

	order, err := s.orderRepo.FindByID(ctx, s.db, req.OrderID)
	if err != nil {
		return paymentdomain.CreatePaymentResult{}, err
	}
	if order == nil || order.UserID != req.UserID {
		return paymentdomain.CreatePaymentResult{}, paymentdomain.ErrOrderNotFound
	}
	if order.Status != orderdomain.StatusPending {
		return paymentdomain.CreatePaymentResult{}, paymentdomain.ErrOrderNotPayable
	}

	now := s.clock.Now()
	txnRef := vnpay.TxnRef(order.ID, now)
	paymentURL, err := s.gateway.BuildPaymentURL(vnpay.PaymentRequest{
		TxnRef:    txnRef,
		OrderInfo: fmt.Sprintf(orderInfoFormat, order.OrderCode),
		Amount:    order.TotalAmount,
		IPAddr:    req.ClientIP,
		BankCode:  req.BankCode,
		CreatedAt: now,
	})
	if err != nil {
		return paymentdomain.CreatePaymentResult{}, err
	}

	if err := s.orderRepo.UpdateFields(ctx, s.db, order.ID, map[string]any{
		"vnp_txn_ref":    txnRef,
		"payment_method": orderdomain.PaymentMethodVNPay,
		"updated_at":     now,
	}); err != nil {
		return paymentdomain.CreatePaymentResult{}, err
	}

	s.log.Info("payment url created",
		zap.String("order_id", order.ID.String()),
		zap.String("txn_ref", txnRef),
	)
	return paymentdomain.CreatePaymentResult{
		PaymentURL: paymentURL,
		OrderID:    order.ID,
		OrderCode:  order.OrderCode,
		TxnRef:     txnRef,
	}, nil
}

func (s *Service) HandleIPN(ctx context.Context, params url.Values) paymentdomain.IPNAck {
	code := s.handleIPN(ctx, params)
	s.obsMetrics.RecordPaymentCallback(ctx, paymentdomain.ProviderVNPay, paymentdomain.SourceIPN, code)
	return paymentdomain.NewAck(code)
}

func (s *Service) handleIPN(ctx context.Context, params url.Values) string {
	if !s.gateway.Verify(params) {
		s.log.Warn("vnpay ipn rejected: invalid signature", zap.String("txn_ref", params.Get("vnp_TxnRef")))
		return paymentdomain.AckInvalidSignature
	}

	cb, err := vnpay.ParseCallback(params)
	if err != nil {
		if errors.Is(err, vnpay.ErrInvalidTxnRef) {
			return paymentdomain.AckOrderNotFound
		}
		return paymentdomain.AckInvalidAmount
	}

	_, err = s.reconcileLocked(ctx, cb, paymentdomain.SourceIPN, params)
	switch {
	case err == nil:
		return paymentdomain.AckSuccess
	case errors.Is(err, paymentdomain.ErrOrderNotFound):
		return paymentdomain.AckOrderNotFound
	case errors.Is(err, paymentdomain.ErrInvalidAmount):
		return paymentdomain.AckInvalidAmount
	case errors.Is(err, paymentdomain.ErrAlreadyConfirmed):
		return paymentdomain.AckAlreadyConfirmed
	default:
		s.log.Error("vnpay ipn failed",
			zap.String("order_id", cb.OrderID.String()),
			zap.String("txn_ref", cb.TxnRef),
			zap.Error(err),
		)
		return paymentdomain.AckUnknownError
	}
}

func (s *Service) HandleReturn(ctx context.Context, params url.Values) (paymentdomain.ReturnResult, error) {
	if !s.gateway.Verify(params) {
		s.obsMetrics.RecordPaymentCallback(ctx, paymentdomain.ProviderVNPay, paymentdomain.SourceReturn, paymentdomain.AckInvalidSignature)
		return paymentdomain.ReturnResult{}, paymentdomain.ErrInvalidSignature
	}

	cb, err := vnpay.ParseCallback(params)
	if err != nil {
		if errors.Is(err, vnpay.ErrInvalidTxnRef) {
			return paymentdomain.ReturnResult{}, paymentdomain.ErrOrderNotFound
		}
		return paymentdomain.ReturnResult{}, paymentdomain.ErrInvalidAmount
	}

	order, err := s.reconcileLocked(ctx, cb, paymentdomain.SourceReturn, params)
	if err != nil && !errors.Is(err, paymentdomain.ErrAlreadyConfirmed) {
		s.obsMetrics.RecordPaymentCallback(ctx, paymentdomain.ProviderVNPay, paymentdomain.SourceReturn, "error")
		return paymentdomain.ReturnResult{}, err
	}
	s.obsMetrics.RecordPaymentCallback(ctx, paymentdomain.ProviderVNPay, paymentdomain.SourceReturn, cb.ResponseCode)

	if cb.Succeeded() {
		return paymentdomain.ReturnResult{
			Success:       true,
			OrderID:       order.ID,
			TransactionNo: cb.TransactionNo,
			Amount:        order.TotalAmount,
			Message:       "Thanh toán thành công",
		}, nil
	}
	return paymentdomain.ReturnResult{
		Success:   false,
		OrderID:   order.ID,
		ErrorCode: cb.ResponseCode,
		Message:   s.storefront.Get().PaymentMessage(cb.ResponseCode),
	}, nil
}

func (s *Service) ConfirmUnsigned(ctx context.Context, req paymentdomain.ConfirmRequest) (paymentdomain.ConfirmResult, error) {
	if !s.allowUnsigned {
		return paymentdomain.ConfirmResult{}, paymentdomain.ErrUnsignedConfirmDisabled
	}

	orderID := req.OrderID
	if orderID == 0 {
		parsed, err := vnpay.OrderIDFromTxnRef(req.TxnRef)
		if err != nil {
			return paymentdomain.ConfirmResult{}, paymentdomain.ErrInvalidOrderID
		}
		orderID = parsed
	}

	cb := vnpay.Callback{
		TxnRef:        strings.TrimSpace(req.TxnRef),
		OrderID:       orderID,
		ResponseCode:  strings.TrimSpace(req.ResponseCode),
		TransactionNo: strings.TrimSpace(req.TransactionNo),
	}
	if cb.TxnRef == "" {
		cb.TxnRef = fmt.Sprintf(unsignedEventKey, orderID.String(), cb.ResponseCode, cb.TransactionNo)
	}

	s.log.Warn("unsigned payment confirmation",
		zap.String("order_id", orderID.String()),
		zap.String("response_code", cb.ResponseCode),
	)
	s.audit(ctx, orderID, map[string]any{
		"response_code":  cb.ResponseCode,
		"transaction_no": cb.TransactionNo,
		"txn_ref":        cb.TxnRef,
	})

	raw := url.Values{}
	raw.Set("vnp_TxnRef", cb.TxnRef)
	raw.Set("vnp_ResponseCode", cb.ResponseCode)
	raw.Set("vnp_TransactionNo", cb.TransactionNo)

	order, err := s.reconcileLocked(ctx, cb, paymentdomain.SourceFrontend, raw)
	if err != nil && !errors.Is(err, paymentdomain.ErrAlreadyConfirmed) {
		return paymentdomain.ConfirmResult{}, err
	}
	s.obsMetrics.RecordPaymentCallback(ctx, paymentdomain.ProviderVNPay, paymentdomain.SourceFrontend, cb.ResponseCode)

	result := paymentdomain.ConfirmResult{
		OrderID:       order.ID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TransactionID: order.TransactionID,
	}
	if order.PaymentStatus == orderdomain.PaymentPaid {
		result.Success = true
		result.Message = "Cập nhật thanh toán thành công"
		return result, nil
	}
	result.ErrorCode = cb.ResponseCode
	result.Message = s.storefront.Get().PaymentMessage(cb.ResponseCode)
	return result, nil
}

func (s *Service) Status(ctx context.Context, orderID, userID snowflake.ID) (paymentdomain.StatusView, error) {
	if orderID == 0 {
		return paymentdomain.StatusView{}, paymentdomain.ErrInvalidOrderID
	}
	order, err := s.orderRepo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return paymentdomain.StatusView{}, err
	}
	if order == nil || order.UserID != userID {
		return paymentdomain.StatusView{}, paymentdomain.ErrOrderNotFound
	}
	return paymentdomain.StatusView{
		OrderID:       order.ID,
		OrderCode:     order.OrderCode,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		TransactionID: order.TransactionID,
		PaidAt:        order.PaidAt,
		TotalAmount:   order.TotalAmount,
	}, nil
}

func (s *Service) reconcileLocked(ctx context.Context, cb vnpay.Callback, source string, params url.Values) (*orderdomain.Order, error) {
	if s.locker != nil {
		key := "payment:order:" + cb.OrderID.String()
		token, ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, paymentdomain.ErrLockBusy
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				s.log.Warn("release payment lock failed", zap.String("key", key), zap.Error(err))
			}
		}()
	}
	return s.reconcile(ctx, cb, source, params)
}

// reconcile applies one callback outcome to the order. The returned order is
// populated for ErrAlreadyConfirmed as well.
func (s *Service) reconcile(ctx context.Context, cb vnpay.Callback, source string, params url.Values) (*orderdomain.Order, error) {
	payload, err := json.Marshal(flatten(params))
	if err != nil {
		return nil, err
	}

	var result *orderdomain.Order
	var replay bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDForUpdate(ctx, tx, cb.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return paymentdomain.ErrOrderNotFound
		}
		result = order

		// Signed callbacks must echo the amount; only the frontend confirm omits it.
		if !cb.HasAmount && source != paymentdomain.SourceFrontend {
			return paymentdomain.ErrInvalidAmount
		}
		if cb.HasAmount && cb.Amount != order.TotalAmount {
			return paymentdomain.ErrInvalidAmount
		}
		if order.PaymentStatus == orderdomain.PaymentPaid {
			replay = true
			return nil
		}

		now := s.clock.Now()
		event := paymentdomain.EventRecord{
			ID:            s.genID.Generate(),
			Provider:      paymentdomain.ProviderVNPay,
			EventKey:      cb.TxnRef,
			OrderID:       order.ID,
			Source:        source,
			ResponseCode:  cb.ResponseCode,
			TransactionNo: cb.TransactionNo,
			Amount:        cb.Amount,
			Succeeded:     cb.Succeeded(),
			Payload:       datatypes.JSON(payload),
			ReceivedAt:    now,
		}
		inserted, err := s.repo.InsertEvent(ctx, tx, &event)
		if err != nil {
			return err
		}
		stored := &event
		if !inserted {
			stored, err = s.repo.FindEvent(ctx, tx, paymentdomain.ProviderVNPay, cb.TxnRef)
			if err != nil {
				return err
			}
			if stored == nil {
				return fmt.Errorf("payment event %s conflicted but was not found", cb.TxnRef)
			}
			if stored.ProcessedAt != nil {
				// The order is unpaid here, so the stored outcome was a failure.
				// A repeated failure is acknowledged without touching the order.
				if !cb.Succeeded() {
					return nil
				}
				stored.Source = source
				stored.ResponseCode = cb.ResponseCode
				stored.TransactionNo = cb.TransactionNo
				stored.Amount = cb.Amount
				stored.Succeeded = true
				stored.Payload = datatypes.JSON(payload)
				if err := s.repo.UpdateEventOutcome(ctx, tx, stored); err != nil {
					return err
				}
			}
		}

		if err := s.applyOutcome(ctx, tx, order, cb, now); err != nil {
			return err
		}
		if err := s.repo.MarkProcessed(ctx, tx, stored.ID, now); err != nil {
			return err
		}

		reloaded, err := s.orderRepo.FindByID(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if reloaded != nil {
			result = reloaded
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	if replay {
		return result, paymentdomain.ErrAlreadyConfirmed
	}

	s.log.Info("payment callback processed",
		zap.String("order_id", result.ID.String()),
		zap.String("source", source),
		zap.String("response_code", cb.ResponseCode),
		zap.String("payment_status", string(result.PaymentStatus)),
	)
	return result, nil
}

func (s *Service) applyOutcome(ctx context.Context, tx *gorm.DB, order *orderdomain.Order, cb vnpay.Callback, now time.Time) error {
	if !cb.Succeeded() {
		return s.orderRepo.UpdateFields(ctx, tx, order.ID, map[string]any{
			"payment_status": orderdomain.PaymentFailed,
			"updated_at":     now,
		})
	}

	fields := map[string]any{
		"payment_status": orderdomain.PaymentPaid,
		"payment_method": orderdomain.PaymentMethodVNPay,
		"paid_at":        now,
		"updated_at":     now,
	}
	if cb.TransactionNo != "" {
		fields["transaction_id"] = cb.TransactionNo
	}

	// A cancelled order keeps its status; later statuses are never moved back.
	advance := order.Status == orderdomain.StatusPending
	if advance {
		fields["status"] = orderdomain.StatusPaid
	} else {
		s.log.Warn("payment settled on non-pending order",
			zap.String("order_id", order.ID.String()),
			zap.String("status", string(order.Status)),
		)
	}

	if err := s.orderRepo.UpdateFields(ctx, tx, order.ID, fields); err != nil {
		return err
	}
	if !advance {
		return nil
	}
	return s.orderRepo.InsertStatus(ctx, tx, &orderdomain.StatusEntry{
		ID:        s.genID.Generate(),
		OrderID:   order.ID,
		Status:    orderdomain.StatusPaid,
		UpdatedBy: historyActor,
		Note:      fmt.Sprintf(successNote, cb.TransactionNo),
		CreatedAt: now,
	})
}

func (s *Service) audit(ctx context.Context, orderID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := orderID.String()
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeGateway), nil, auditdomain.ActionPaymentUnsignedConf, "order", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.Error(err))
	}
}

func flatten(params url.Values) map[string]string {
	out := make(map[string]string, len(params))
	for key := range params {
		if key == vnpay.ParamSecureHash {
			continue
		}
		out[key] = params.Get(key)
	}
	return out
}
