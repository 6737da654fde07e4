package saleorsync

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/dashboard_backend/config"
	"bitbucket.org/mmdatafocus/dashboard_backend/models"
	"bitbucket.org/mmdatafocus/dashboard_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SyncPubSubPayload is the message queued for an asynchronous bulk sync.
type SyncPubSubPayload struct {
	TenantSlug string `json:"tenantSlug"`
}

// PubSubPushEnvelope is the wrapper Google Pub/Sub push subscriptions wrap
// messages in.
type PubSubPushEnvelope struct {
	Message struct {
		Data      []byte `json:"data"`
		MessageId string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func syncTopicName() string {
	topicName := strings.TrimSpace(os.Getenv("CUSTOMER_SYNC_TOPIC"))
	if topicName == "" {
		topicName = "customer-sync"
	}
	return topicName
}

// PublishBulkSync queues a bulk customer sync for a tenant.
func PublishBulkSync(ctx context.Context, tenantSlug string) (string, error) {
	return config.PublishJSON(ctx, syncTopicName(), SyncPubSubPayload{TenantSlug: tenantSlug})
}

// PubSubPushHandler executes queued bulk syncs delivered by a push
// subscription. Always 204: Pub/Sub retries on non-2xx and a bad message
// would loop forever.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !envBoolDefault("ENABLE_CUSTOMER_SYNC_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload SyncPubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if strings.TrimSpace(payload.TenantSlug) == "" {
			c.Status(204)
			return
		}

		_ = processBulkSync(c.Request.Context(), payload.TenantSlug)
		c.Status(204)
	}
}

func processBulkSync(ctx context.Context, tenantSlug string) error {
	logger := config.GetLogger()

	tenant, err := models.GetTenantBySlug(ctx, tenantSlug)
	if err != nil {
		config.LogError(logger, moduleName, "processBulkSync", "Tenant lookup failed", tenantSlug, err)
		return err
	}
	if tenant == nil {
		logger.WithFields(logrus.Fields{"tenant": tenantSlug}).Warn("bulk sync message for unknown tenant; dropping")
		return nil
	}
	ctx = utils.SetTenantIdInContext(ctx, tenant.ID)

	engine, err := NewEngine(tenant)
	if err != nil {
		config.LogError(logger, moduleName, "processBulkSync", "Engine setup failed", tenantSlug, err)
		return err
	}

	lock, err := utils.TenantLock(ctx, tenant.ID, "CustomerSync", moduleName, "processBulkSync")
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release(ctx) }()

	result, err := engine.BulkSyncCustomers(ctx)
	if err != nil {
		config.LogError(logger, moduleName, "processBulkSync", "Bulk sync failed", tenantSlug, err)
		return err
	}

	logger.WithFields(logrus.Fields{
		"tenant":  tenantSlug,
		"total":   result.Summary.Total,
		"synced":  result.Summary.Synced,
		"skipped": result.Summary.Skipped,
		"errors":  result.Summary.Errors,
	}).Info("bulk customer sync finished")
	return nil
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
