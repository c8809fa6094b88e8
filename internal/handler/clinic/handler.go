package clinic

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wellmom/wellmom-api/internal/handler"
	"github.com/wellmom/wellmom-api/internal/middleware"
	"github.com/wellmom/wellmom-api/internal/model"
	clinicService "github.com/wellmom/wellmom-api/internal/service/clinic"
)

type Handler struct {
	service clinicService.Servicer
}

func NewHandler(service clinicService.Servicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	clinics := r.Group("/clinics")
	{
		clinics.POST("", auth.RequireRole(model.RoleClinicAdmin, model.RoleSuperAdmin), h.Register)
		clinics.GET("", h.List)
		clinics.GET("/:id", h.Get)
		clinics.PUT("/:id", auth.RequireRole(model.RoleClinicAdmin, model.RoleSuperAdmin), h.Update)
		clinics.POST("/:id/approve", auth.RequireRole(model.RoleSuperAdmin), h.Approve)
		clinics.POST("/:id/reject", auth.RequireRole(model.RoleSuperAdmin), h.Reject)
		clinics.GET("/:id/nurses", h.ListNurses)
		clinics.GET("/:id/nurses/available", h.ListAvailableNurses)
		clinics.POST("/:id/nurses", auth.RequireRole(model.RoleClinicAdmin, model.RoleSuperAdmin), h.AddNurse)
		clinics.PUT("/:id/nurses/:nurseID", auth.RequireRole(model.RoleClinicAdmin, model.RoleSuperAdmin), h.UpdateNurse)
		clinics.DELETE("/:id/nurses/:nurseID", auth.RequireRole(model.RoleClinicAdmin, model.RoleSuperAdmin), h.RemoveNurse)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req clinicService.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if adminID, ok := middleware.UserID(c); ok {
		req.AdminUserID = &adminID
	}

	created, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) List(c *gin.Context) {
	status := model.ClinicStatus(c.Query("status"))
	clinics, err := h.service.List(c.Request.Context(), status)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(clinics))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid clinic ID"))
		return
	}

	clinic, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(clinic))
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid clinic ID"))
		return
	}

	var req clinicService.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	updated, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

func (h *Handler) Approve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid clinic ID"))
		return
	}
	adminID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return
	}

	if err := h.service.Approve(c.Request.Context(), id, adminID); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": model.ClinicStatusApproved}))
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) Reject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid clinic ID"))
		return
	}
	adminID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("not authenticated"))
		return
	}

	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.Reject(c.Request.Context(), id, adminID, req.Reason); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": model.ClinicStatusRejected}))
}

func (h *Handler) ListNurses(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid clinic ID"))
		return
	}

	nurses, err := h.service.ListNurses(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nurses))
}

func (h *Handler) ListAvailableNurses(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid clinic ID"))
		return
	}

	nurses, err := h.service.ListAvailableNurses(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nurses))
}

func (h *Handler) AddNurse(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid clinic ID"))
		return
	}

	var req clinicService.AddNurseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	nurse, err := h.service.AddNurse(c.Request.Context(), id, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(nurse))
}

func (h *Handler) UpdateNurse(c *gin.Context) {
	clinicID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid clinic ID"))
		return
	}
	nurseID, err := uuid.Parse(c.Param("nurseID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid nurse ID"))
		return
	}

	var req clinicService.UpdateNurseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	nurse, err := h.service.UpdateNurse(c.Request.Context(), clinicID, nurseID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nurse))
}

func (h *Handler) RemoveNurse(c *gin.Context) {
	clinicID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid clinic ID"))
		return
	}
	nurseID, err := uuid.Parse(c.Param("nurseID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid nurse ID"))
		return
	}

	if err := h.service.RemoveNurse(c.Request.Context(), clinicID, nurseID); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
