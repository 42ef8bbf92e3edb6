// internal/handlers/requests.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/docucontrol/tramites-portal/internal/i18n"
	"github.com/docucontrol/tramites-portal/internal/services"
	"github.com/docucontrol/tramites-portal/internal/utils"
)

type RequestHandler struct {
	auditService *services.AuditService
}

func NewRequestHandler(auditService *services.AuditService) *RequestHandler {
	return &RequestHandler{
		auditService: auditService,
	}
}

// GET /requests
func (h *RequestHandler) ListMyRequests(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	items, total, err := h.auditService.ListForUser(backendContext(c), userID, params)
	if err != nil {
		if errors.Is(err, services.ErrHistoryUnavailable) {
			utils.BadGatewayResponse(c, "HISTORY_UNAVAILABLE", i18n.T(lang, i18n.KeyRequestsFailed))
			return
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to list requests")
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(items, total, params))
}
