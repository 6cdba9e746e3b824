package channel

import (
	"github.com/smallbiznis/hydrapay/internal/channel/notifier"
	"github.com/smallbiznis/hydrapay/internal/channel/repository"
	"github.com/smallbiznis/hydrapay/internal/channel/service"
	"go.uber.org/fx"
)

var Module = fx.Module("channel.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(notifier.New),
	fx.Invoke(func(*notifier.Notifier) {}),
)
