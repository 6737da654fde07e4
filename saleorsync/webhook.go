package saleorsync

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/dashboard_backend/models"
)

// EventClass buckets webhook event types for routing.
type EventClass int

const (
	ClassIgnore EventClass = iota
	ClassCreate
	ClassUpdate
)

// Saleor event names the reconciliation engine reacts to. Everything else is
// logged as received and dropped.
var customerEventClasses = map[string]EventClass{
	"CUSTOMER_CREATED": ClassCreate,
	"CUSTOMER_UPDATED": ClassUpdate,
	"USER_CREATED":     ClassCreate,
	"USER_UPDATED":     ClassUpdate,
	"ACCOUNT_CREATED":  ClassCreate,
	"ACCOUNT_UPDATED":  ClassUpdate,
}

// ResolveEvent finds the event type for a delivery. Resolution order: the
// Saleor-Event header, the legacy X-Saleor-Event header, then an event field
// inside the body. The result is uppercased for comparison.
func ResolveEvent(headers http.Header, envelope *webhookEnvelope) string {
	event := strings.TrimSpace(headers.Get("Saleor-Event"))
	if event == "" {
		event = strings.TrimSpace(headers.Get("X-Saleor-Event"))
	}
	if event == "" && envelope != nil {
		event = firstNonEmpty(envelope.Event, envelope.Type, envelope.Action)
	}
	return strings.ToUpper(event)
}

// ClassifyEvent maps an event type onto its reconciliation class.
func ClassifyEvent(event string) EventClass {
	if class, ok := customerEventClasses[event]; ok {
		return class
	}
	return ClassIgnore
}

// HandleDelivery processes one webhook push: log receipt first, then
// reconcile customer events. Reconciliation failures never propagate; the
// caller acknowledges the delivery regardless.
func HandleDelivery(ctx context.Context, engine *Engine, headers http.Header, body []byte) {
	var envelope webhookEnvelope
	// A malformed body still gets its receipt logged below.
	_ = json.Unmarshal(body, &envelope)

	event := ResolveEvent(headers, &envelope)
	action := "webhook_received_unknown"
	if event != "" {
		action = "webhook_received_" + strings.ToLower(event)
	}

	receipt := map[string]any{
		"headers": flattenHeaders(headers),
		"body":    json.RawMessage(body),
	}
	if engine.Logs != nil {
		engine.Logs.Append(ctx, models.LogSourceSaleor, action, models.LogStatusSuccess, receipt, "")
	}

	class := ClassifyEvent(event)
	if class == ClassIgnore {
		return
	}
	engine.WebhookSyncCustomer(ctx, class, &envelope)
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) > 0 {
			flat[key] = values[0]
		}
	}
	return flat
}
