package payment

import (
	"context"

	paymentdomain "github.com/smallbiznis/hydrapay/internal/payment/domain"
	"github.com/smallbiznis/hydrapay/internal/payment/repository"
	paymentservice "github.com/smallbiznis/hydrapay/internal/payment/service"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(paymentservice.New),
	fx.Invoke(migrateLedger),
)

func migrateLedger(lc fx.Lifecycle, db *gorm.DB, repo paymentdomain.Repository) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return repo.Migrate(ctx, db)
		},
	})
}
