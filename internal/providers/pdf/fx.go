package pdf

import (
	"github.com/smallbiznis/qatech/internal/config"
	orderdomain "github.com/smallbiznis/qatech/internal/order/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(func(cfg config.Config) orderdomain.InvoiceRenderer {
		return New(Store{
			Name:  "QATech",
			Email: cfg.Email.SMTPFrom,
		})
	}),
)
