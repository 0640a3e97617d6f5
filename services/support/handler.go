package support

import (
	"net/http"

	"license-service/pkg/errutil"
	"license-service/pkg/httpapi"

	"github.com/gin-gonic/gin"
)

type searchQuery struct {
	Type  string `form:"type" binding:"required,oneof=licenseKey activationToken customerEmail customerName productId"`
	Value string `form:"value" binding:"required"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(g *gin.RouterGroup) {
	r := g.Group("/support")
	r.GET("/search", h.search)
	r.GET("/stats", h.stats)
}

func (h *Handler) search(c *gin.Context) {
	var q searchQuery
	if err := httpapi.BindQuery(c, &q); err != nil {
		_ = c.Error(err)
		return
	}

	ctx := c.Request.Context()
	var (
		result any
		err    error
	)
	switch q.Type {
	case "licenseKey":
		result, err = h.svc.ByLicenseKey(ctx, q.Value)
	case "activationToken":
		result, err = h.svc.ByActivationToken(ctx, q.Value)
	case "customerEmail":
		result, err = h.svc.ByCustomerEmail(ctx, q.Value)
	case "customerName":
		result, err = h.svc.ByCustomerName(ctx, q.Value)
	case "productId":
		result, err = h.svc.ByProductID(ctx, q.Value)
	default:
		err = errutil.BadRequest("Invalid search type", nil)
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats})
}
