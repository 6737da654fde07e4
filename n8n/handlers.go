package n8n

import (
	"encoding/json"
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/dashboard_backend/models"
	"bitbucket.org/mmdatafocus/dashboard_backend/saleorsync"
	"github.com/gin-gonic/gin"
)

// StatusHandler reports whether the automation engine is reachable.
func StatusHandler() gin.HandlerFunc {
	client := NewClientFromEnv()
	return func(c *gin.Context) {
		if err := client.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusOK, gin.H{"isActive": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"isActive": true})
	}
}

func resolveTenant(c *gin.Context) (*models.Tenant, bool) {
	slug := strings.TrimSpace(c.Param("slug"))
	tenant, err := models.GetTenantBySlug(c.Request.Context(), slug)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if tenant == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
		return nil, false
	}
	return tenant, true
}

// TriggerHandler fires a named workflow and records the attempt in the
// tenant's integration log. Workflow failures are reported to the caller but
// the log entry is written either way.
func TriggerHandler() gin.HandlerFunc {
	client := NewClientFromEnv()
	return func(c *gin.Context) {
		tenant, ok := resolveTenant(c)
		if !ok {
			return
		}
		workflow := strings.TrimSpace(c.Param("workflow"))
		if workflow == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "workflow is required"})
			return
		}

		var payload map[string]any
		_ = c.ShouldBindJSON(&payload)
		if payload == nil {
			payload = map[string]any{}
		}
		payload["tenantSlug"] = tenant.Slug

		sink := &models.LogSink{TenantId: tenant.ID}
		response, err := client.TriggerWorkflow(c.Request.Context(), workflow, payload)
		if err != nil {
			sink.Append(c.Request.Context(), models.LogSourceN8n, "workflow_"+workflow, models.LogStatusError, payload, err.Error())
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		sink.Append(c.Request.Context(), models.LogSourceN8n, "workflow_"+workflow, models.LogStatusSuccess, payload, "")
		c.JSON(http.StatusOK, gin.H{"triggered": true, "response": json.RawMessage(response)})
	}
}

// Automation actions the dashboard exposes as one write-through endpoint.
// "sync-customers" short-circuits into the reconciliation queue; everything
// else maps onto an n8n workflow of the same name.
func AutomationActionHandler() gin.HandlerFunc {
	client := NewClientFromEnv()
	return func(c *gin.Context) {
		tenant, ok := resolveTenant(c)
		if !ok {
			return
		}
		action := strings.TrimSpace(c.Param("action"))
		sink := &models.LogSink{TenantId: tenant.ID}

		switch action {
		case "sync-customers":
			messageId, err := saleorsync.PublishBulkSync(c.Request.Context(), tenant.Slug)
			if err != nil {
				sink.Append(c.Request.Context(), models.LogSourceN8n, "automation_sync-customers", models.LogStatusError, nil, err.Error())
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			sink.Append(c.Request.Context(), models.LogSourceN8n, "automation_sync-customers", models.LogStatusSuccess, gin.H{"messageId": messageId}, "")
			c.JSON(http.StatusAccepted, gin.H{"queued": true, "messageId": messageId})
		case "sync-products", "sync-orders", "get-status":
			payload := map[string]any{"tenantSlug": tenant.Slug, "action": action}
			response, err := client.TriggerWorkflow(c.Request.Context(), action, payload)
			if err != nil {
				sink.Append(c.Request.Context(), models.LogSourceN8n, "automation_"+action, models.LogStatusError, payload, err.Error())
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			sink.Append(c.Request.Context(), models.LogSourceN8n, "automation_"+action, models.LogStatusSuccess, payload, "")
			c.JSON(http.StatusOK, gin.H{"triggered": true, "response": json.RawMessage(response)})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown automation action"})
		}
	}
}
