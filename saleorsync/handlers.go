package saleorsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/dashboard_backend/config"
	"bitbucket.org/mmdatafocus/dashboard_backend/erpnext"
	"bitbucket.org/mmdatafocus/dashboard_backend/models"
	"bitbucket.org/mmdatafocus/dashboard_backend/saleor"
	"bitbucket.org/mmdatafocus/dashboard_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

const moduleName = "saleorsync"

// resolveTenant loads the tenant named in the :slug route parameter and puts
// its id into the request context for the tenant guard. A missing tenant is
// a 404 and the request is finished.
func resolveTenant(c *gin.Context) (*models.Tenant, context.Context, bool) {
	slug := strings.TrimSpace(c.Param("slug"))
	tenant, err := models.GetTenantBySlug(c.Request.Context(), slug)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	if tenant == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
		return nil, nil, false
	}
	ctx := utils.SetTenantIdInContext(c.Request.Context(), tenant.ID)
	ctx = utils.SetTenantSlugInContext(ctx, tenant.Slug)
	return tenant, ctx, true
}

func saleorClientFor(tenant *models.Tenant) (*saleor.Client, error) {
	if !tenant.HasSaleor() {
		return nil, ErrSaleorNotConfigured
	}
	return saleor.NewClient(tenant.SaleorUrl, tenant.SaleorToken)
}

func erpnextClientFor(tenant *models.Tenant) (*erpnext.Client, error) {
	if !tenant.HasErpnext() {
		return nil, ErrErpnextNotConfigured
	}
	return erpnext.NewClient(tenant.ErpnextUrl, tenant.ErpnextApiKey, tenant.ErpnextApiSecret)
}

// respondRemoteError maps missing-configuration errors to 404; everything
// else is a 502 from the remote.
func respondRemoteError(c *gin.Context, err error) {
	if errors.Is(err, ErrSaleorNotConfigured) || errors.Is(err, ErrErpnextNotConfigured) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}

func ListTenantsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenants, err := models.ListTenants(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tenants": tenants})
	}
}

func CreateTenantHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewTenant
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		tenant, err := models.CreateTenant(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, tenant)
	}
}

func GetTenantHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, _, ok := resolveTenant(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, tenant)
	}
}

// BulkSyncHandler runs the customer reconciliation for one tenant. A
// distributed lock serializes concurrent bulk runs per tenant.
func BulkSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}

		engine, err := NewEngine(tenant)
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		if engine.Ecommerce == nil {
			respondRemoteError(c, ErrSaleorNotConfigured)
			return
		}

		lock, err := utils.TenantLock(ctx, tenant.ID, "CustomerSync", moduleName, "BulkSyncHandler")
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "customer sync already running for tenant"})
			return
		}
		defer func() { _ = lock.Release(ctx) }()

		result, err := engine.BulkSyncCustomers(ctx)
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// AsyncSyncHandler queues a bulk sync through Pub/Sub and returns
// immediately.
func AsyncSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}
		if !tenant.HasErpnext() {
			respondRemoteError(c, ErrErpnextNotConfigured)
			return
		}
		if !tenant.HasSaleor() {
			respondRemoteError(c, ErrSaleorNotConfigured)
			return
		}

		messageId, err := PublishBulkSync(ctx, tenant.Slug)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"queued": true, "messageId": messageId})
	}
}

type sourceStatus struct {
	IsActive    bool    `json:"isActive"`
	RecordCount int     `json:"recordCount"`
	LastSyncAt  *string `json:"lastSyncAt"`
	Error       string  `json:"error,omitempty"`
}

func storedStatus(ctx context.Context, tenantId string, source string) (int, *string) {
	status, err := models.GetSyncStatus(ctx, tenantId, source)
	if err != nil || status == nil {
		return 0, nil
	}
	var last *string
	if status.LastSyncAt != nil {
		s := status.LastSyncAt.UTC().Format(time.RFC3339)
		last = &s
	}
	return status.RecordCount, last
}

func probeErpnext(ctx context.Context, tenant *models.Tenant) sourceStatus {
	out := sourceStatus{}
	client, err := erpnextClientFor(tenant)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if err := client.Ping(ctx); err != nil {
		out.Error = err.Error()
	} else {
		out.IsActive = true
	}
	out.RecordCount, out.LastSyncAt = storedStatus(ctx, tenant.ID, models.LogSourceErpnext)
	return out
}

func probeSaleor(ctx context.Context, tenant *models.Tenant) sourceStatus {
	out := sourceStatus{}
	client, err := saleorClientFor(tenant)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if err := client.Ping(ctx); err != nil {
		out.Error = err.Error()
	} else {
		out.IsActive = true
	}
	out.RecordCount, out.LastSyncAt = storedStatus(ctx, tenant.ID, models.LogSourceSaleor)
	return out
}

// SyncStatusHandler reports live connectivity plus the stored last-sync
// markers for both remotes.
func SyncStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"erpnext": probeErpnext(ctx, tenant),
			"saleor":  probeSaleor(ctx, tenant),
		})
	}
}

// RefreshSyncHandler re-probes both remotes and persists fresh status rows
// with current record counts.
func RefreshSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}
		now := time.Now().UTC()
		response := gin.H{}

		if erpClient, err := erpnextClientFor(tenant); err == nil {
			customers, err := erpClient.GetCustomers(ctx, 100)
			if err == nil {
				_ = models.UpsertSyncStatus(ctx, tenant.ID, models.LogSourceErpnext, now, len(customers))
				response["erpnext"] = gin.H{"isActive": true, "recordCount": len(customers)}
			} else {
				response["erpnext"] = gin.H{"isActive": false, "error": err.Error()}
			}
		} else {
			response["erpnext"] = gin.H{"isActive": false, "error": err.Error()}
		}

		if saleorClient, err := saleorClientFor(tenant); err == nil {
			customers, err := saleorClient.GetCustomers(ctx, 100)
			if err == nil {
				_ = models.UpsertSyncStatus(ctx, tenant.ID, models.LogSourceSaleor, now, len(customers))
				response["saleor"] = gin.H{"isActive": true, "recordCount": len(customers)}
			} else {
				response["saleor"] = gin.H{"isActive": false, "error": err.Error()}
			}
		} else {
			response["saleor"] = gin.H{"isActive": false, "error": err.Error()}
		}

		c.JSON(http.StatusOK, response)
	}
}

func queryLimit(c *gin.Context, fallback int, max int) int {
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= max {
			return n
		}
	}
	return fallback
}

func ErpnextCustomersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}
		client, err := erpnextClientFor(tenant)
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		customers, err := client.GetCustomers(ctx, queryLimit(c, 100, 500))
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"customers": customers})
	}
}

func ErpnextItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}
		client, err := erpnextClientFor(tenant)
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		items, err := client.GetItems(ctx, queryLimit(c, 100, 500))
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func ErpnextProjectsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}
		client, err := erpnextClientFor(tenant)
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		projects, err := client.GetProjects(ctx, queryLimit(c, 100, 500))
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"projects": projects})
	}
}

func SaleorProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}
		client, err := saleorClientFor(tenant)
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		products, err := client.GetProducts(ctx, queryLimit(c, 100, 100))
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products})
	}
}

func SaleorOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}
		client, err := saleorClientFor(tenant)
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		orders, err := client.GetOrders(ctx, queryLimit(c, 100, 100))
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders})
	}
}

func SaleorCustomersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}
		client, err := saleorClientFor(tenant)
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		customers, err := client.GetCustomers(ctx, queryLimit(c, 100, 100))
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"customers": customers})
	}
}

func SaleorChannelsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}
		client, err := saleorClientFor(tenant)
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		channels, err := client.GetChannels(ctx)
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"channels": channels})
	}
}

func SaleorWebhooksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}
		client, err := saleorClientFor(tenant)
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		webhooks, err := client.ListWebhooks(ctx)
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"webhooks": webhooks})
	}
}

type webhookSetupRequest struct {
	TargetUrl string `json:"targetUrl" binding:"required"`
	Name      string `json:"name"`
}

// SaleorWebhookSetupHandler registers (or repoints) the customer-event
// webhook on the tenant's Saleor instance.
func SaleorWebhookSetupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}
		var req webhookSetupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = "dashboard-customer-sync"
		}

		client, err := saleorClientFor(tenant)
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		webhook, err := client.UpsertCustomerWebhook(ctx, name, req.TargetUrl)
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		sink := &models.LogSink{TenantId: tenant.ID}
		sink.Append(ctx, models.LogSourceSaleor, "webhook_registered", models.LogStatusSuccess, webhook, "")
		c.JSON(http.StatusOK, webhook)
	}
}

type erpnextWebhookSetupRequest struct {
	Doctype    string `json:"doctype" binding:"required"`
	DocEvent   string `json:"docEvent" binding:"required"`
	RequestUrl string `json:"requestUrl" binding:"required"`
}

func ErpnextWebhookSetupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}
		var req erpnextWebhookSetupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		client, err := erpnextClientFor(tenant)
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		webhook, err := client.CreateWebhook(ctx, erpnext.Webhook{
			WebhookDoctype:  req.Doctype,
			WebhookDocevent: req.DocEvent,
			RequestURL:      req.RequestUrl,
			RequestMethod:   http.MethodPost,
			Enabled:         1,
		})
		if err != nil {
			respondRemoteError(c, err)
			return
		}
		sink := &models.LogSink{TenantId: tenant.ID}
		sink.Append(ctx, models.LogSourceErpnext, "webhook_registered", models.LogStatusSuccess, webhook, "")
		c.JSON(http.StatusOK, webhook)
	}
}

// SaleorWebhookReceiverHandler is the push endpoint Saleor delivers customer
// events to. It always acknowledges with 200 once the receipt is logged;
// reconciliation failures never change the response.
func SaleorWebhookReceiverHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			body = nil
		}

		engine, err := NewEngine(tenant)
		if err != nil {
			// No ERP configured: log the receipt and still acknowledge.
			sink := &models.LogSink{TenantId: tenant.ID}
			sink.Append(ctx, models.LogSourceSaleor, "webhook_received_unroutable", models.LogStatusError, map[string]any{"headers": flattenHeaders(c.Request.Header)}, err.Error())
			c.JSON(http.StatusOK, gin.H{"message": "Webhook processed successfully"})
			return
		}

		HandleDelivery(ctx, engine, c.Request.Header, body)
		c.JSON(http.StatusOK, gin.H{"message": "Webhook processed successfully"})
	}
}

// ErpnextWebhookReceiverHandler records doc events pushed from ERPNext.
// Receipt-only; nothing is reconciled from this direction.
func ErpnextWebhookReceiverHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			body = nil
		}
		sink := &models.LogSink{TenantId: tenant.ID}
		sink.Append(ctx, models.LogSourceErpnext, "webhook_received", models.LogStatusSuccess, map[string]any{
			"headers": flattenHeaders(c.Request.Header),
			"body":    string(body),
		}, "")
		c.JSON(http.StatusOK, gin.H{"message": "Webhook processed successfully"})
	}
}

func LogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}
		logs, err := models.ListIntegrationLogs(ctx, tenant.ID, strings.TrimSpace(c.Query("source")), queryLimit(c, 100, 500))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": logs})
	}
}

// LogsExportHandler streams the tenant's recent integration logs as an xlsx
// workbook.
func LogsExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ctx, ok := resolveTenant(c)
		if !ok {
			return
		}
		logs, err := models.ListIntegrationLogs(ctx, tenant.ID, strings.TrimSpace(c.Query("source")), queryLimit(c, 500, 500))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		f := excelize.NewFile()
		defer f.Close()
		sheet := "Logs"
		f.SetSheetName("Sheet1", sheet)

		headers := []string{"Time", "Source", "Action", "Status", "Error"}
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			_ = f.SetCellValue(sheet, cell, h)
		}
		for row, entry := range logs {
			values := []any{
				entry.CreatedAt.UTC().Format(time.RFC3339),
				entry.Source,
				entry.Action,
				entry.Status,
				entry.ErrorMessage,
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
				_ = f.SetCellValue(sheet, cell, v)
			}
		}

		filename := fmt.Sprintf("integration-logs-%s-%s.xlsx", tenant.Slug, time.Now().UTC().Format("20060102"))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), moduleName, "LogsExportHandler", "Failed to stream workbook", tenant.Slug, err)
		}
	}
}
