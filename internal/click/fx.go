package click

import (
	"go.uber.org/fx"

	"github.com/afftrack/clickpipe/internal/click/repository"
	"github.com/afftrack/clickpipe/internal/click/service"
)

var Module = fx.Module("click",
	fx.Provide(
		repository.NewRepository,
		service.NewService,
	),
)
