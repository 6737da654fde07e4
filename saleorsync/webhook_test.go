package saleorsync

import (
	"context"
	"net/http"
	"testing"

	"bitbucket.org/mmdatafocus/dashboard_backend/models"
)

func TestResolveEventHeaderPrimary(t *testing.T) {
	headers := http.Header{}
	headers.Set("Saleor-Event", "customer_created")
	headers.Set("X-Saleor-Event", "something_else")

	if got := ResolveEvent(headers, &webhookEnvelope{Event: "order_created"}); got != "CUSTOMER_CREATED" {
		t.Fatalf("expected CUSTOMER_CREATED from primary header, got %q", got)
	}
}

func TestResolveEventLegacyHeader(t *testing.T) {
	headers := http.Header{}
	headers.Set("X-Saleor-Event", "customer_updated")

	if got := ResolveEvent(headers, nil); got != "CUSTOMER_UPDATED" {
		t.Fatalf("expected CUSTOMER_UPDATED from legacy header, got %q", got)
	}
}

func TestResolveEventBodyFallback(t *testing.T) {
	cases := []struct {
		envelope webhookEnvelope
		expected string
	}{
		{webhookEnvelope{Event: "user_created"}, "USER_CREATED"},
		{webhookEnvelope{Type: "account_updated"}, "ACCOUNT_UPDATED"},
		{webhookEnvelope{Action: "customer_created"}, "CUSTOMER_CREATED"},
		{webhookEnvelope{}, ""},
	}
	for _, tc := range cases {
		if got := ResolveEvent(http.Header{}, &tc.envelope); got != tc.expected {
			t.Fatalf("ResolveEvent body fallback expected %q, got %q", tc.expected, got)
		}
	}
}

func TestClassifyEvent(t *testing.T) {
	cases := []struct {
		event    string
		expected EventClass
	}{
		{"CUSTOMER_CREATED", ClassCreate},
		{"CUSTOMER_UPDATED", ClassUpdate},
		{"USER_CREATED", ClassCreate},
		{"ACCOUNT_UPDATED", ClassUpdate},
		{"PRODUCT_UPDATED", ClassIgnore},
		{"ORDER_CREATED", ClassIgnore},
		{"", ClassIgnore},
	}
	for _, tc := range cases {
		if got := ClassifyEvent(tc.event); got != tc.expected {
			t.Fatalf("ClassifyEvent(%q) expected %v, got %v", tc.event, tc.expected, got)
		}
	}
}

func TestHandleDeliveryUnknownEventIsLoggedNotReconciled(t *testing.T) {
	erp := newFakeERP()
	engine, sink, _ := newTestEngine(&fakeEcommerce{}, erp)

	headers := http.Header{}
	headers.Set("Saleor-Event", "PRODUCT_UPDATED")
	body := []byte(`{"data":{"user":{"email":"x@y.com"}}}`)

	HandleDelivery(context.Background(), engine, headers, body)

	receipts := sink.byAction("webhook_received_product_updated")
	if len(receipts) != 1 {
		t.Fatalf("unknown event must still be logged as received, got %d receipts", len(receipts))
	}
	if receipts[0].Source != models.LogSourceSaleor {
		t.Fatalf("receipt must be tagged saleor, got %q", receipts[0].Source)
	}
	if erp.createCalls != 0 && erp.updateCalls != 0 {
		t.Fatal("unknown event must not reach the reconciliation engine")
	}
}

func TestHandleDeliveryCreateEvent(t *testing.T) {
	erp := newFakeERP()
	engine, sink, _ := newTestEngine(&fakeEcommerce{}, erp)

	headers := http.Header{}
	headers.Set("Saleor-Event", "CUSTOMER_CREATED")
	body := []byte(`{"data":{"customer":{"email":"hook@y.com","firstName":"Hook"}}}`)

	HandleDelivery(context.Background(), engine, headers, body)

	if len(sink.byAction("webhook_received_customer_created")) != 1 {
		t.Fatal("expected receipt log before reconciliation")
	}
	if erp.createCalls != 1 {
		t.Fatalf("expected one create from webhook, got %d", erp.createCalls)
	}
}

func TestHandleDeliveryHeaderOnlyClassification(t *testing.T) {
	erp := newFakeERP()
	engine, _, _ := newTestEngine(&fakeEcommerce{}, erp)

	// No event field in the body; the header alone must classify.
	headers := http.Header{}
	headers.Set("Saleor-Event", "CUSTOMER_CREATED")
	body := []byte(`{"user":{"email":"x@y.com"}}`)

	HandleDelivery(context.Background(), engine, headers, body)

	if erp.createCalls != 1 {
		t.Fatalf("header-only event must still reconcile, got %d creates", erp.createCalls)
	}
}

func TestHandleDeliveryMalformedBody(t *testing.T) {
	erp := newFakeERP()
	engine, sink, _ := newTestEngine(&fakeEcommerce{}, erp)

	headers := http.Header{}
	headers.Set("Saleor-Event", "CUSTOMER_CREATED")

	HandleDelivery(context.Background(), engine, headers, []byte(`{"not json`))

	if len(sink.byAction("webhook_received_customer_created")) != 1 {
		t.Fatal("malformed body must still get its receipt logged")
	}
	if erp.createCalls != 0 {
		t.Fatal("malformed body carries no email; nothing to reconcile")
	}
}
