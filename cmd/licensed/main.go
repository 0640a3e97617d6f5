package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"license-service/pkg/config"
	"license-service/pkg/db"
	"license-service/pkg/gen"
	"license-service/pkg/health"
	"license-service/pkg/httpapi"
	"license-service/pkg/logger"
	"license-service/pkg/otelcol"
	"license-service/pkg/profiling"
	"license-service/pkg/redis"
	"license-service/pkg/sequence"
	"license-service/pkg/server"
	"license-service/pkg/task"
	"license-service/services/admin"
	"license-service/services/license"
	"license-service/services/product"
	"license-service/services/support"
)

func main() {
	cfg := config.LoadConfig()

	opts := []fx.Option{
		fx.Supply(cfg),
		logger.Module,
		db.Module,
		redis.Module,
		gen.Module,
		sequence.Module,
		otelcol.Module,
		profiling.Module,
		health.Module,
		fx.Invoke(migrate),
		httpapi.Module,
		product.ServerModule,
		license.ServerModule,
		admin.ServerModule,
		support.ServerModule,
		server.ProvideHTTPServer,
		server.ProvideGRPCServer,
		health.GRPCModule,
		fxLogger,
	}

	// Lifecycle events need the asynq client; without it the service
	// publishes nothing.
	if cfg.License.EventsEnabled {
		opts = append(opts, task.Client)
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.IsProduction() {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
})

func migrate(cfg *config.Config, gdb *gorm.DB) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return db.Migrate(ctx, gdb, license.Models()...)
}
