package viewer

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/knowwell/portal-api/internal/handler"
	"github.com/knowwell/portal-api/internal/middleware"
	"github.com/knowwell/portal-api/internal/model"
	"github.com/knowwell/portal-api/internal/service/content"
	drugservice "github.com/knowwell/portal-api/internal/service/drug"
	patientservice "github.com/knowwell/portal-api/internal/service/patient"
	"github.com/knowwell/portal-api/internal/service/workflow"
)

// Handler serves the patient-facing medication viewer. The authenticated
// patient is taken from the token; no patient ID appears in these routes.
type Handler struct {
	patients patientservice.Service
	drugs    drugservice.Service
	workflow workflow.Service
	content  *content.Resolver
}

func NewHandler(
	patients patientservice.Service,
	drugs drugservice.Service,
	workflow workflow.Service,
	content *content.Resolver,
) *Handler {
	return &Handler{
		patients: patients,
		drugs:    drugs,
		workflow: workflow,
		content:  content,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	viewer := r.Group("/viewer")
	{
		viewer.GET("/medications", h.ListMedications)
		viewer.GET("/medications/:drugID", h.GetMedication)
		viewer.PUT("/medications/:drugID/level", h.ChangeLevel)
		viewer.POST("/medications/:drugID/acknowledge", h.AcknowledgeResolution)
	}
}

// MedicationDetail is the full viewer page for one medication: the patient's
// record plus the drug content of the currently active tier, flattened and
// with asset references resolved to URLs.
type MedicationDetail struct {
	Record *model.MedicationRecord `json:"record"`
	Drug   DrugHeader              `json:"drug"`
	Items  []content.Item          `json:"items"`
}

// DrugHeader carries the presentation fields of the drug without the raw
// section documents.
type DrugHeader struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	TitleImage string    `json:"title_image"`
}

func (h *Handler) ListMedications(c *gin.Context) {
	patientID, ok := subjectID(c)
	if !ok {
		return
	}

	records, err := h.patients.ListMedications(c.Request.Context(), patientID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(records))
}

func (h *Handler) GetMedication(c *gin.Context) {
	patientID, ok := subjectID(c)
	if !ok {
		return
	}
	drugID, err := uuid.Parse(c.Param("drugID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid drug ID"))
		return
	}

	records, err := h.patients.ListMedications(c.Request.Context(), patientID)
	if err != nil {
		handler.Error(c, err)
		return
	}

	var record *model.MedicationRecord
	for _, r := range records {
		if r.DrugID == drugID {
			record = r
			break
		}
	}
	if record == nil {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("medication record not found"))
		return
	}

	drug, err := h.drugs.GetDrug(c.Request.Context(), drugID)
	if err != nil {
		handler.Error(c, err)
		return
	}

	items := h.content.ResolveTier(c.Request.Context(), drug, record.CurrentLevel)

	c.JSON(http.StatusOK, handler.NewSuccessResponse(MedicationDetail{
		Record: record,
		Drug: DrugHeader{
			ID:         drug.ID,
			Title:      drug.Title,
			Category:   drug.Category,
			TitleImage: drug.TitleImage,
		},
		Items: items,
	}))
}

func (h *Handler) ChangeLevel(c *gin.Context) {
	patientID, ok := subjectID(c)
	if !ok {
		return
	}
	drugID, err := uuid.Parse(c.Param("drugID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid drug ID"))
		return
	}

	var req model.LevelChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	level, err := model.ParseKnowledgeLevel(req.Level)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	result, err := h.workflow.RequestLevelChange(c.Request.Context(), patientID, drugID, level)
	if err != nil {
		handler.Error(c, err)
		return
	}

	status := http.StatusOK
	if result.RequestPending {
		// The change itself did not happen; a request was filed instead.
		status = http.StatusAccepted
	}
	c.JSON(status, handler.NewSuccessResponse(result))
}

func (h *Handler) AcknowledgeResolution(c *gin.Context) {
	patientID, ok := subjectID(c)
	if !ok {
		return
	}
	drugID, err := uuid.Parse(c.Param("drugID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid drug ID"))
		return
	}

	record, err := h.workflow.AcknowledgeResolution(c.Request.Context(), patientID, drugID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(record))
}

func subjectID(c *gin.Context) (uuid.UUID, bool) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("authentication required"))
		return uuid.Nil, false
	}
	return claims.SubjectID, true
}
