package license

import (
	"net/http"
	"time"

	"license-service/pkg/httpapi"

	"github.com/gin-gonic/gin"
)

type activateBody struct {
	ProductID     string `json:"productId" binding:"required,min=3"`
	LicenseKey    string `json:"licenseKey" binding:"required,min=10"`
	HardwareID    string `json:"hardwareId" binding:"required,min=8"`
	CustomerEmail string `json:"customerEmail" binding:"omitempty,email"`
	CustomerName  string `json:"customerName" binding:"omitempty,max=255"`
}

type tokenBody struct {
	ActivationToken string `json:"activationToken" binding:"required"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(g *gin.RouterGroup) {
	r := g.Group("/license")
	r.POST("/activate", h.activate)
	r.POST("/verify", h.verify)
	r.POST("/deactivate", h.deactivate)
}

func (h *Handler) activate(c *gin.Context) {
	var body activateBody
	if err := httpapi.BindJSON(c, &body); err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.svc.Activate(c.Request.Context(), ActivateRequest{
		ProductID:     body.ProductID,
		LicenseKey:    body.LicenseKey,
		HardwareID:    body.HardwareID,
		CustomerEmail: body.CustomerEmail,
		CustomerName:  body.CustomerName,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"activationToken": res.ActivationToken,
	})
}

func (h *Handler) verify(c *gin.Context) {
	var body tokenBody
	if err := httpapi.BindJSON(c, &body); err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.svc.Verify(c.Request.Context(), body.ActivationToken)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"valid":       res.Valid,
		"productId":   res.ProductID,
		"status":      res.Status,
		"activatedAt": res.ActivatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) deactivate(c *gin.Context) {
	var body tokenBody
	if err := httpapi.BindJSON(c, &body); err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.svc.Deactivate(c.Request.Context(), body.ActivationToken); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "License deactivated successfully",
	})
}
