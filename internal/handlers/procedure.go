// internal/handlers/procedure.go
package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docucontrol/tramites-portal/internal/estimator"
	"github.com/docucontrol/tramites-portal/internal/i18n"
	"github.com/docucontrol/tramites-portal/internal/models"
	"github.com/docucontrol/tramites-portal/internal/utils"
	"github.com/docucontrol/tramites-portal/internal/wizard"
)

type ProcedureHandler struct {
	catalog wizard.ProcedureCatalog
	rules   estimator.Rules
	now     func() time.Time
}

func NewProcedureHandler(catalog wizard.ProcedureCatalog, rules estimator.Rules) *ProcedureHandler {
	return &ProcedureHandler{
		catalog: catalog,
		rules:   rules,
		now:     time.Now,
	}
}

// procedureQueryFields are the category fields accepted as query parameters.
var procedureQueryFields = []string{
	models.FieldConstructionAddress,
	models.FieldConstructionArea,
	models.FieldUrgent,
	models.FieldQuantity,
	models.FieldReason,
	models.FieldDurationMonths,
	models.FieldActivityType,
	models.FieldRequiresInspection,
}

// GET /procedures/:id
func (h *ProcedureHandler) GetProcedure(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	res := h.catalog.GetProcedure(backendContext(c), c.Param("id"))
	if !res.Success {
		utils.BadGatewayResponse(c, "PROCEDURE_UNAVAILABLE", i18n.T(lang, i18n.KeyWizardProcedureFailed, res.Error))
		return
	}

	documents := make([]documentView, 0, len(res.Data.RequiredDocuments))
	for _, doc := range res.Data.RequiredDocuments {
		documents = append(documents, newDocumentView(doc, false))
	}
	utils.SuccessResponse(c, gin.H{
		"procedure": res.Data,
		"documents": documents,
	})
}

// GET /procedures/:id/estimate?urgente=&area_construccion=&cantidad=...
func (h *ProcedureHandler) EstimateProcedure(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	res := h.catalog.GetProcedure(backendContext(c), c.Param("id"))
	if !res.Success {
		utils.BadGatewayResponse(c, "PROCEDURE_UNAVAILABLE", i18n.T(lang, i18n.KeyWizardProcedureFailed, res.Error))
		return
	}
	procedure := res.Data

	values := map[string]interface{}{}
	for _, field := range procedureQueryFields {
		if v, ok := c.GetQuery(field); ok {
			values[field] = v
		}
	}
	details := models.DecodeCategoryData(procedure.Category, values)

	incomplete, _ := strconv.ParseBool(c.DefaultQuery("documentos_incompletos", "false"))
	estimate := wizard.BuildEstimate(h.rules, procedure, details, incomplete, h.now())

	utils.SuccessResponse(c, newEstimateView(lang, estimate))
}
