package license

import (
	"license-service/pkg/config"
	"license-service/pkg/hwid"
	"license-service/pkg/task"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("license.module",
	fx.Provide(
		NewService,
		provideHasher,
		providePublisher,
		provideMetrics,
	),
)

var ServerModule = fx.Module("license.server",
	Module,
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

// WorkerModule records lifecycle events pushed by the API.
var WorkerModule = fx.Module("license.worker",
	fx.Provide(NewEventHandler),
	fx.Invoke(func(h *EventHandler, mux *asynq.ServeMux) { h.Register(mux) }),
)

func provideHasher(cfg *config.Config) Hasher {
	return hwid.New(cfg.License.HashCost)
}

type publisherParams struct {
	fx.In
	Config   *config.Config
	Enqueuer task.Enqueuer `optional:"true"`
}

func providePublisher(p publisherParams) Publisher {
	if !p.Config.License.EventsEnabled {
		return NopPublisher{}
	}
	if p.Enqueuer == nil {
		zap.L().Warn("license events enabled but no task client configured, events are dropped")
		return NopPublisher{}
	}
	return NewTaskPublisher(p.Enqueuer)
}

func provideMetrics() (*Metrics, error) {
	return NewMetrics(prometheus.DefaultRegisterer)
}

func registerRoutes(r *gin.Engine, h *Handler) {
	h.Register(r.Group("/api/v1"))
}
