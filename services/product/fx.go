package product

import (
	"license-service/pkg/config"
	"license-service/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("product.module",
	fx.Provide(
		NewService,
		func(s *Service) Finder { return s },
	),
)

var ServerModule = fx.Module("product.server",
	Module,
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, cfg *config.Config, h *Handler) {
	h.Register(r.Group("/api/v1", middleware.AdminKey(cfg.Admin.APIKey)))
}
