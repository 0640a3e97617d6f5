package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"
)

var Module = fx.Module("health", fx.Provide(ProvideHealth))

// GRPCModule serves grpc.health.v1 and keeps it in sync with readiness.
var GRPCModule = fx.Module("health.grpc",
	fx.Provide(grpchealth.NewServer),
	fx.Invoke(RegisterGRPC),
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Health struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Deps    []Dependency `json:"deps,omitempty"`
}

type HealthService interface {
	Liveness(c *gin.Context)
	Readiness(c *gin.Context)
	Check(ctx context.Context) Health
}

type health struct {
	db    *gorm.DB
	redis *redis.Client
}

type HealthParams struct {
	fx.In
	DB    *gorm.DB      `optional:"true"`
	Redis *redis.Client `optional:"true"`
}

func ProvideHealth(p HealthParams) HealthService {
	return &health{
		db:    p.DB,
		redis: p.Redis,
	}
}

func (h *health) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, &Health{
		Status:  statusHealthy,
		Message: "OK",
	})
}

func (h *health) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	res := h.Check(ctx)
	code := http.StatusOK
	if res.Status != statusHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, res)
}

// Check pings every configured dependency.
func (h *health) Check(ctx context.Context) Health {
	res := Health{Status: statusHealthy, Message: "OK"}

	if h.db != nil {
		dep := Dependency{Name: h.db.Name(), Status: statusHealthy, Message: "OK"}
		if sqlDB, err := h.db.DB(); err != nil {
			dep.Status, dep.Message = statusUnhealthy, err.Error()
		} else if err := sqlDB.PingContext(ctx); err != nil {
			dep.Status, dep.Message = statusUnhealthy, err.Error()
		}
		res.Deps = append(res.Deps, dep)
	}

	if h.redis != nil {
		dep := Dependency{Name: "redis", Status: statusHealthy, Message: "OK"}
		if err := h.redis.Ping(ctx).Err(); err != nil {
			dep.Status, dep.Message = statusUnhealthy, err.Error()
		}
		res.Deps = append(res.Deps, dep)
	}

	for _, d := range res.Deps {
		if d.Status != statusHealthy {
			res.Status = statusUnhealthy
			res.Message = d.Name + " unavailable"
			break
		}
	}

	return res
}

type grpcParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Server    *grpc.Server
	Health    *grpchealth.Server
	Checker   HealthService
}

// RegisterGRPC registers the health server and refreshes the serving status
// every ten seconds from Check.
func RegisterGRPC(p grpcParams) {
	healthpb.RegisterHealthServer(p.Server, p.Health)

	ctx, cancel := context.WithCancel(context.Background())
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go watch(ctx, p.Checker, p.Health, 10*time.Second)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			p.Health.Shutdown()
			return nil
		},
	})
}

func watch(ctx context.Context, checker HealthService, srv *grpchealth.Server, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		update(ctx, checker, srv)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func update(ctx context.Context, checker HealthService, srv *grpchealth.Server) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if res := checker.Check(cctx); res.Status != statusHealthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		zap.L().Warn("readiness check failed", zap.String("message", res.Message))
	}
	srv.SetServingStatus("", status)
}
