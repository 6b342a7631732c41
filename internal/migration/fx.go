package migration

import (
	"strings"

	"go.uber.org/fx"
	"gorm.io/gorm"

	clickdomain "github.com/afftrack/clickpipe/internal/click/domain"
	"github.com/afftrack/clickpipe/internal/offer"
	"github.com/afftrack/clickpipe/internal/referrer"
	"github.com/afftrack/clickpipe/internal/utmsource"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		// The SQL migrations target postgres; sqlite deployments fall back
		// to the model-driven schema.
		if strings.EqualFold(conn.Dialector.Name(), "sqlite") {
			return conn.AutoMigrate(
				&offer.Offer{},
				&referrer.Referrer{},
				&utmsource.Source{},
				&clickdomain.Click{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
