package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/backofficehq/backoffice/internal/models"
)

// Permissions guarding the audit trail endpoints. Purging is destructive and
// carries its own key.
const (
	auditPermission      = "audit:read"
	auditPurgePermission = "audit:purge"
)

// AuditHandler serves the audit trail endpoint.
type AuditHandler struct {
	svc AuditService
	log *logrus.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(svc AuditService, log *logrus.Logger) *AuditHandler {
	return &AuditHandler{svc: svc, log: log}
}

// Query handles GET /audit with optional entity, entityId, action, since,
// limit, and offset parameters.
func (h *AuditHandler) Query(c *gin.Context) {
	actor, ok := requirePermission(c, auditPermission)
	if !ok {
		return
	}

	opts := models.AuditQueryOpts{
		Entity: c.Query("entity"),
		Action: c.Query("action"),
	}

	if raw := c.Query("entityId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid entityId")

			return
		}

		opts.EntityID = id
	}

	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "since must be RFC3339")

			return
		}

		opts.Since = &since
	}

	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			opts.Limit = v
		}
	}

	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			opts.Offset = v
		}
	}

	entries, hasMore, err := h.svc.Query(c.Request.Context(), actor.CompanyID, opts)
	if err != nil {
		respondDomainError(c, h.log, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "has_more": hasMore})
}

// Purge handles DELETE /audit?retention_days=N, removing entries older than
// the given window across all tenants.
func (h *AuditHandler) Purge(c *gin.Context) {
	actor, ok := requirePermission(c, auditPurgePermission)
	if !ok {
		return
	}

	days, err := strconv.Atoi(c.Query("retention_days"))
	if err != nil || days <= 0 {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "retention_days must be a positive integer")

		return
	}

	purged, err := h.svc.PurgeOldEntries(c.Request.Context(), days)
	if err != nil {
		respondDomainError(c, h.log, err)

		return
	}

	h.log.WithFields(logrus.Fields{
		"user_id":        actor.UserID,
		"retention_days": days,
		"purged":         purged,
		"request_id":     c.GetString("request_id"),
	}).Info("audit")

	c.JSON(http.StatusOK, gin.H{"purged": purged})
}
