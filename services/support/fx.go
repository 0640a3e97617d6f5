package support

import (
	"license-service/pkg/config"
	"license-service/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("support.module",
	fx.Provide(NewService),
)

var ServerModule = fx.Module("support.server",
	Module,
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, cfg *config.Config, h *Handler) {
	h.Register(r.Group("/api/v1", middleware.AdminKey(cfg.Admin.APIKey)))
}
