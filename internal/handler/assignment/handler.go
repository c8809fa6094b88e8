package assignment

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wellmom/wellmom-api/internal/geo"
	"github.com/wellmom/wellmom-api/internal/handler"
	"github.com/wellmom/wellmom-api/internal/middleware"
	"github.com/wellmom/wellmom-api/internal/model"
	assignmentService "github.com/wellmom/wellmom-api/internal/service/assignment"
)

type Handler struct {
	service assignmentService.Servicer
}

func NewHandler(service assignmentService.Servicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	assign := auth.RequireRole(model.RoleClinicAdmin, model.RoleSuperAdmin)

	patients := r.Group("/patients")
	{
		patients.POST("/:id/clinic", assign, h.AssignClinic)
		patients.POST("/:id/clinic/auto", assign, h.AutoAssign)
		patients.POST("/:id/nurse", assign, h.AssignNurse)
	}
	clinics := r.Group("/clinics")
	{
		clinics.GET("/nearest", h.NearestClinics)
		clinics.POST("/:id/deactivate", auth.RequireRole(model.RoleSuperAdmin), h.DeactivateClinic)
	}
}

type assignClinicRequest struct {
	ClinicID string `json:"clinic_id" binding:"required,uuid"`
}

func (h *Handler) AssignClinic(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
		return
	}

	var req assignClinicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	clinicID, err := uuid.Parse(req.ClinicID)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid clinic ID"))
		return
	}

	patient, err := h.service.AssignClinic(c.Request.Context(), patientID, clinicID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(patient))
}

type assignNurseRequest struct {
	NurseID string `json:"nurse_id" binding:"required,uuid"`
}

func (h *Handler) AssignNurse(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
		return
	}

	var req assignNurseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	nurseID, err := uuid.Parse(req.NurseID)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid nurse ID"))
		return
	}

	patient, err := h.service.AssignNurse(c.Request.Context(), patientID, nurseID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(patient))
}

func (h *Handler) AutoAssign(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
		return
	}

	result, err := h.service.AutoAssign(c.Request.Context(), patientID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) NearestClinics(c *gin.Context) {
	lng, err := strconv.ParseFloat(c.Query("longitude"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid longitude"))
		return
	}
	lat, err := strconv.ParseFloat(c.Query("latitude"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid latitude"))
		return
	}

	ranked, err := h.service.NearestClinics(c.Request.Context(), geo.Coordinate{Longitude: lng, Latitude: lat})
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(ranked))
}

func (h *Handler) DeactivateClinic(c *gin.Context) {
	clinicID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid clinic ID"))
		return
	}

	if err := h.service.DeactivateClinic(c.Request.Context(), clinicID); err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"deactivated": true}))
}
