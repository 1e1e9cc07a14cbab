package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/backofficehq/backoffice/internal/entity"
	"github.com/backofficehq/backoffice/internal/models"
)

// GenericHandler serves the CRUD endpoints of every registered entity.
// Each route closure is bound to one entity configuration at registration.
type GenericHandler struct {
	svc GenericService
	log *logrus.Logger
}

// NewGenericHandler creates a GenericHandler.
func NewGenericHandler(svc GenericService, log *logrus.Logger) *GenericHandler {
	return &GenericHandler{svc: svc, log: log}
}

// permission suffixes appended to each entity's permission key.
const (
	permRead  = ":read"
	permWrite = ":write"
)

// requirePermission resolves the actor and checks the permission; on
// failure it writes the error response and returns false.
func requirePermission(c *gin.Context, perm string) (models.Actor, bool) {
	actor, ok := getActor(c)
	if !ok {
		return models.Actor{}, false
	}

	if !actor.Can(perm) {
		respondError(c, http.StatusForbidden, ErrCodeForbidden, "missing permission: "+perm)

		return models.Actor{}, false
	}

	return actor, true
}

// audit writes the handler-level audit log line.
func (h *GenericHandler) audit(c *gin.Context, cfg *entity.Config, action string, fields logrus.Fields) {
	entry := logrus.Fields{
		"action":     string(cfg.Kind) + "." + action,
		"request_id": c.GetString("request_id"),
	}
	for k, v := range fields {
		entry[k] = v
	}

	h.log.WithFields(entry).Info("audit")
}

// List handles GET /:route.
func (h *GenericHandler) List(cfg *entity.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requirePermission(c, cfg.PermissionKey+permRead)
		if !ok {
			return
		}

		res, err := h.svc.List(c.Request.Context(), cfg.Kind, actor, c.Request.URL.RawQuery)
		if err != nil {
			respondDomainError(c, h.log, err)

			return
		}

		h.audit(c, cfg, "list", logrus.Fields{"company_id": actor.CompanyID, "count": len(res.Rows)})

		c.JSON(http.StatusOK, res)
	}
}

// Get handles GET /:route/:id.
func (h *GenericHandler) Get(cfg *entity.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requirePermission(c, cfg.PermissionKey+permRead)
		if !ok {
			return
		}

		id, ok := parseIDParam(c)
		if !ok {
			return
		}

		rec, err := h.svc.Get(c.Request.Context(), cfg.Kind, actor, id)
		if err != nil {
			respondDomainError(c, h.log, err)

			return
		}

		c.JSON(http.StatusOK, rec)
	}
}

// Create handles POST /:route.
func (h *GenericHandler) Create(cfg *entity.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requirePermission(c, cfg.PermissionKey+permWrite)
		if !ok {
			return
		}

		rec, ok := bindRecord(c)
		if !ok {
			return
		}

		created, err := h.svc.Create(c.Request.Context(), cfg.Kind, actor, rec)
		if err != nil {
			respondDomainError(c, h.log, err)

			return
		}

		h.audit(c, cfg, "create", logrus.Fields{"company_id": actor.CompanyID, "entity_id": created.ID()})

		c.JSON(http.StatusCreated, created)
	}
}

// Update handles PUT /:route/:id.
func (h *GenericHandler) Update(cfg *entity.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requirePermission(c, cfg.PermissionKey+permWrite)
		if !ok {
			return
		}

		id, ok := parseIDParam(c)
		if !ok {
			return
		}

		patch, ok := bindRecord(c)
		if !ok {
			return
		}

		updated, err := h.svc.Update(c.Request.Context(), cfg.Kind, actor, id, patch)
		if err != nil {
			respondDomainError(c, h.log, err)

			return
		}

		h.audit(c, cfg, "update", logrus.Fields{"company_id": actor.CompanyID, "entity_id": id})

		c.JSON(http.StatusOK, updated)
	}
}

// ChangeStatus handles PATCH /:route/:id/active and /:route/:id/inactive.
func (h *GenericHandler) ChangeStatus(cfg *entity.Config, active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requirePermission(c, cfg.PermissionKey+permWrite)
		if !ok {
			return
		}

		id, ok := parseIDParam(c)
		if !ok {
			return
		}

		rec, err := h.svc.ChangeStatus(c.Request.Context(), cfg.Kind, actor, id, active)
		if err != nil {
			respondDomainError(c, h.log, err)

			return
		}

		action := "deactivate"
		if active {
			action = "activate"
		}

		h.audit(c, cfg, action, logrus.Fields{"company_id": actor.CompanyID, "entity_id": id})

		c.JSON(http.StatusOK, rec)
	}
}

// Upsert handles POST /:route/upsert.
func (h *GenericHandler) Upsert(cfg *entity.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requirePermission(c, cfg.PermissionKey+permWrite)
		if !ok {
			return
		}

		rec, ok := bindRecord(c)
		if !ok {
			return
		}

		result, created, err := h.svc.Upsert(c.Request.Context(), cfg.Kind, actor, rec)
		if err != nil {
			respondDomainError(c, h.log, err)

			return
		}

		h.audit(c, cfg, "upsert", logrus.Fields{"company_id": actor.CompanyID, "entity_id": result.ID(), "created": created})

		c.JSON(http.StatusOK, result)
	}
}

// Delete handles DELETE /:route/:id. The hard=true query switches the soft
// delete to a real row removal.
func (h *GenericHandler) Delete(cfg *entity.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := requirePermission(c, cfg.PermissionKey+permWrite)
		if !ok {
			return
		}

		id, ok := parseIDParam(c)
		if !ok {
			return
		}

		hard := c.Query("hard") == "true"

		if err := h.svc.Delete(c.Request.Context(), cfg.Kind, actor, id, hard); err != nil {
			respondDomainError(c, h.log, err)

			return
		}

		h.audit(c, cfg, "delete", logrus.Fields{"company_id": actor.CompanyID, "entity_id": id, "hard": hard})

		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}
