package payment

import (
	"github.com/smallbiznis/qatech/internal/config"
	"github.com/smallbiznis/qatech/internal/payment/domain"
	"github.com/smallbiznis/qatech/internal/payment/repository"
	paymentservice "github.com/smallbiznis/qatech/internal/payment/service"
	"github.com/smallbiznis/qatech/internal/payment/vnpay"
	"github.com/smallbiznis/qatech/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config) *vnpay.Client {
		return vnpay.New(vnpay.Config{
			TmnCode:    cfg.VNPay.TmnCode,
			HashSecret: cfg.VNPay.HashSecret,
			PayURL:     cfg.VNPay.URL,
			ReturnURL:  cfg.VNPay.ReturnURL,
		})
	}),
	fx.Provide(func(locker *ratelimit.Locker) domain.Locker {
		if locker == nil {
			return nil
		}
		return locker
	}),
	fx.Provide(paymentservice.NewService),
)
