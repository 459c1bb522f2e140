package drug

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/knowwell/portal-api/internal/handler"
	drugservice "github.com/knowwell/portal-api/internal/service/drug"
)

type Handler struct {
	service drugservice.Service
}

func NewHandler(service drugservice.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	drugs := r.Group("/drugs")
	{
		drugs.GET("", h.ListDrugs)
		drugs.GET("/:id", h.GetDrug)
	}
}

func (h *Handler) ListDrugs(c *gin.Context) {
	drugs, err := h.service.ListDrugs(c.Request.Context())
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(drugs))
}

func (h *Handler) GetDrug(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid drug ID"))
		return
	}

	drug, err := h.service.GetDrug(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(drug))
}
