package erpnext

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL, "test-key", "test-secret")
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	return client
}

func TestClientSendsTokenAuth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "token test-key:test-secret" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	if _, err := client.GetCustomers(context.Background(), 10); err != nil {
		t.Fatalf("GetCustomers error: %v", err)
	}
}

func TestFindCustomerByEmail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/resource/Customer" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var filters [][]string
		if err := json.Unmarshal([]byte(r.URL.Query().Get("filters")), &filters); err != nil {
			t.Fatalf("filters not valid JSON: %v", err)
		}
		if len(filters) != 1 || filters[0][1] != "email_id" || filters[0][3] != "who@shop.com" {
			t.Fatalf("unexpected filters: %v", filters)
		}
		_, _ = w.Write([]byte(`{"data":[{"name":"CUST-0001","customer_name":"Who","email_id":"who@shop.com"}]}`))
	})

	customer, err := client.FindCustomerByEmail(context.Background(), "who@shop.com")
	if err != nil {
		t.Fatalf("FindCustomerByEmail error: %v", err)
	}
	if customer == nil || customer.Name != "CUST-0001" {
		t.Fatalf("unexpected customer: %+v", customer)
	}
}

func TestFindCustomerByEmailNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	customer, err := client.FindCustomerByEmail(context.Background(), "missing@shop.com")
	if err != nil {
		t.Fatalf("FindCustomerByEmail error: %v", err)
	}
	if customer != nil {
		t.Fatalf("expected nil for missing customer, got %+v", customer)
	}
}

func TestCreateCustomerConflictIsRemoteError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"exception":"frappe.exceptions.DuplicateEntryError: Customer Who already exists"}`))
	})

	_, err := client.CreateCustomer(context.Background(), Customer{CustomerName: "Who", EmailID: "who@shop.com"})
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected *RemoteError, got %v", err)
	}
	if remoteErr.Status != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", remoteErr.Status)
	}
	if remoteErr.Message != "frappe.exceptions.DuplicateEntryError: Customer Who already exists" {
		t.Fatalf("unexpected message: %q", remoteErr.Message)
	}
}

func TestCreateAddressCarriesLink(t *testing.T) {
	var received Address
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/resource/Address" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"data":{"name":"ADDR-0001","address_title":"Who Billing","address_type":"Billing","address_line1":"1 Main St"}}`))
	})

	created, err := client.CreateAddress(context.Background(), Address{
		AddressTitle: "Who Billing",
		AddressType:  "Billing",
		AddressLine1: "1 Main St",
		Links:        []DocLink{{LinkDoctype: "Customer", LinkName: "CUST-0001"}},
	})
	if err != nil {
		t.Fatalf("CreateAddress error: %v", err)
	}
	if created.Name != "ADDR-0001" {
		t.Fatalf("unexpected created address: %+v", created)
	}
	if len(received.Links) != 1 || received.Links[0].LinkName != "CUST-0001" {
		t.Fatalf("link row not sent: %+v", received.Links)
	}
}

func TestUpdateCustomerUsesDocName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/api/resource/Customer/CUST-0042" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":{"name":"CUST-0042","customer_name":"New Name"}}`))
	})

	updated, err := client.UpdateCustomer(context.Background(), "CUST-0042", Customer{CustomerName: "New Name"})
	if err != nil {
		t.Fatalf("UpdateCustomer error: %v", err)
	}
	if updated.CustomerName != "New Name" {
		t.Fatalf("unexpected customer: %+v", updated)
	}
}
