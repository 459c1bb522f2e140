package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/knowwell/portal-api/internal/handler"
	"github.com/knowwell/portal-api/internal/model"
	authservice "github.com/knowwell/portal-api/internal/service/auth"
)

type Handler struct {
	service *authservice.Service
}

func NewHandler(service *authservice.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/doctor/login", h.DoctorLogin)
		auth.POST("/patient/login", h.PatientLogin)
	}
}

func (h *Handler) DoctorLogin(c *gin.Context) {
	var req model.DoctorLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	tokens, err := h.service.LoginDoctor(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(tokens))
}

func (h *Handler) PatientLogin(c *gin.Context) {
	var req model.PatientLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	tokens, err := h.service.LoginPatient(c.Request.Context(), req.FiscalCode, req.SecretCode)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(tokens))
}
