package request

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/knowwell/portal-api/internal/handler"
	"github.com/knowwell/portal-api/internal/middleware"
	"github.com/knowwell/portal-api/internal/model"
	"github.com/knowwell/portal-api/internal/service/workflow"
)

// Handler serves the doctor's requests-management screen.
type Handler struct {
	workflow workflow.Service
}

func NewHandler(workflow workflow.Service) *Handler {
	return &Handler{workflow: workflow}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	requests := r.Group("/requests")
	{
		requests.GET("", h.ListRequests)
		requests.POST("/:patientID/:drugID/resolve", h.ResolveRequest)
	}
}

func (h *Handler) ListRequests(c *gin.Context) {
	summaries, err := h.workflow.ListPendingRequests(c.Request.Context())
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(summaries))
}

func (h *Handler) ResolveRequest(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("patientID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
		return
	}
	drugID, err := uuid.Parse(c.Param("drugID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid drug ID"))
		return
	}

	var payload model.ResolveRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	var doctorID uuid.UUID
	if claims := middleware.ClaimsFrom(c); claims != nil {
		doctorID = claims.SubjectID
	}

	record, err := h.workflow.ResolveRequest(c.Request.Context(), doctorID, patientID, drugID, payload.Approve, payload.Message)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(record))
}
