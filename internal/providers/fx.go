package providers

import (
	"github.com/smallbiznis/qatech/internal/providers/email"
	"github.com/smallbiznis/qatech/internal/providers/pdf"
	"github.com/smallbiznis/qatech/internal/providers/storage"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
	storage.Module,
)
