package saleorsync

import (
	"encoding/json"
	"testing"
)

func TestWirePersonAlternateKeys(t *testing.T) {
	raw := []byte(`{
		"data": {
			"user": {
				"email": "alt@shop.com",
				"first_name": "Alt",
				"last_name": "Keys",
				"default_billing_address": {
					"address_line1": "5 Strand Rd",
					"city": "Yangon",
					"postal_code": "11181",
					"state": "Yangon Region",
					"country": "Myanmar"
				}
			}
		}
	}`)

	var envelope webhookEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	person := envelope.person()
	if person == nil {
		t.Fatal("person not found in data.user")
	}
	if person.firstName() != "Alt" || person.lastName() != "Keys" {
		t.Fatalf("snake_case names not picked up: %q %q", person.firstName(), person.lastName())
	}

	addr := person.billingAddress()
	if addr == nil {
		t.Fatal("snake_case billing address not picked up")
	}
	if addr.StreetAddress1 != "5 Strand Rd" || addr.PostalCode != "11181" || addr.CountryArea != "Yangon Region" {
		t.Fatalf("address variants not normalized: %+v", addr)
	}
	if addr.Country.Country != "Myanmar" {
		t.Fatalf("string-form country not handled: %+v", addr.Country)
	}
}

func TestWirePersonPayloadEmailFallback(t *testing.T) {
	raw := []byte(`{"payload": {"email": "fallback@shop.com"}}`)

	var envelope webhookEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	person := envelope.person()
	if person == nil || person.Email != "fallback@shop.com" {
		t.Fatalf("payload.email fallback failed: %+v", person)
	}
}

func TestWirePersonPathPriority(t *testing.T) {
	raw := []byte(`{
		"data": {"user": {"email": "data-user@shop.com"}},
		"user": {"email": "top-user@shop.com"},
		"customer": {"email": "top-customer@shop.com"}
	}`)

	var envelope webhookEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	person := envelope.person()
	if person == nil || person.Email != "data-user@shop.com" {
		t.Fatalf("data.user must win path priority, got %+v", person)
	}
}
