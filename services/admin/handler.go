package admin

import (
	"net/http"

	"license-service/pkg/httpapi"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(g *gin.RouterGroup) {
	r := g.Group("/admin/licenses")
	r.GET("", h.list)
	r.POST("", h.create)
	r.POST("/generate", h.generate)
	r.GET("/:id", h.get)
	r.PUT("/:id", h.update)
	r.PATCH("/:id/toggle", h.toggle)
	r.DELETE("/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	var req ListRequest
	if err := httpapi.BindQuery(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	views, page, err := h.svc.List(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": views, "pageInfo": page})
}

func (h *Handler) create(c *gin.Context) {
	var req CreateRequest
	if err := httpapi.BindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	view, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": view})
}

func (h *Handler) generate(c *gin.Context) {
	var req GenerateRequest
	if err := httpapi.BindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.svc.Generate(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": res})
}

func (h *Handler) get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

func (h *Handler) update(c *gin.Context) {
	var req UpdateRequest
	if err := httpapi.BindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	view, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

func (h *Handler) toggle(c *gin.Context) {
	var req ToggleRequest
	if err := httpapi.BindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	view, err := h.svc.Toggle(c.Request.Context(), c.Param("id"), *req.Enabled)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "License deleted successfully"})
}
