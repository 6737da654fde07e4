package saleorsync

import (
	"encoding/json"
	"strings"

	"bitbucket.org/mmdatafocus/dashboard_backend/saleor"
)

const (
	StatusSynced  = "synced"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// CustomerResult is the per-customer outcome inside a bulk sync response.
type CustomerResult struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	Status          string `json:"status"`
	Reason          string `json:"reason,omitempty"`
	CustomerDocName string `json:"customerDocName,omitempty"`
	Error           string `json:"error,omitempty"`
}

type SyncSummary struct {
	Total   int `json:"total"`
	Synced  int `json:"synced"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// SyncResult is the bulk sync report. Success is batch-level: individual
// failures live in Results, they never fail the batch.
type SyncResult struct {
	Success bool             `json:"success"`
	Summary SyncSummary      `json:"summary"`
	Results []CustomerResult `json:"results"`
}

// wireCountry tolerates both the object form {"code":"MM","country":"Myanmar"}
// and a bare string.
type wireCountry struct {
	Code    string `json:"code"`
	Country string `json:"country"`
}

func (c *wireCountry) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		c.Country = s
		return nil
	}
	type alias wireCountry
	var obj alias
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*c = wireCountry(obj)
	return nil
}

// wireAddress accepts the several field spellings seen across webhook
// payload generations. Accessors pick the first non-empty variant.
type wireAddress struct {
	StreetAddress1 string `json:"streetAddress1"`
	Address1       string `json:"address1"`
	AddressLine1   string `json:"address_line1"`
	Street         string `json:"street"`

	StreetAddress2 string `json:"streetAddress2"`
	Address2       string `json:"address2"`
	AddressLine2   string `json:"address_line2"`

	City string `json:"city"`

	CountryArea string `json:"countryArea"`
	State       string `json:"state"`

	PostalCode    string `json:"postalCode"`
	PostalCodeAlt string `json:"postal_code"`
	Zip           string `json:"zip"`

	Phone   string      `json:"phone"`
	Country wireCountry `json:"country"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func (a *wireAddress) toAddress() *saleor.Address {
	if a == nil {
		return nil
	}
	return &saleor.Address{
		StreetAddress1: firstNonEmpty(a.StreetAddress1, a.Address1, a.AddressLine1, a.Street),
		StreetAddress2: firstNonEmpty(a.StreetAddress2, a.Address2, a.AddressLine2),
		City:           a.City,
		CountryArea:    firstNonEmpty(a.CountryArea, a.State),
		PostalCode:     firstNonEmpty(a.PostalCode, a.PostalCodeAlt, a.Zip),
		Phone:          a.Phone,
		Country:        saleor.Country{Code: a.Country.Code, Country: a.Country.Country},
	}
}

// wirePerson is the customer/user object extracted from a webhook payload.
type wirePerson struct {
	Email string `json:"email"`

	FirstName      string `json:"firstName"`
	FirstNameSnake string `json:"first_name"`
	LastName       string `json:"lastName"`
	LastNameSnake  string `json:"last_name"`

	DefaultBillingAddress       *wireAddress `json:"defaultBillingAddress"`
	DefaultBillingAddressSnake  *wireAddress `json:"default_billing_address"`
	DefaultShippingAddress      *wireAddress `json:"defaultShippingAddress"`
	DefaultShippingAddressSnake *wireAddress `json:"default_shipping_address"`
}

func (p *wirePerson) firstName() string {
	return firstNonEmpty(p.FirstName, p.FirstNameSnake)
}

func (p *wirePerson) lastName() string {
	return firstNonEmpty(p.LastName, p.LastNameSnake)
}

func (p *wirePerson) billingAddress() *saleor.Address {
	if p.DefaultBillingAddress != nil {
		return p.DefaultBillingAddress.toAddress()
	}
	return p.DefaultBillingAddressSnake.toAddress()
}

func (p *wirePerson) shippingAddress() *saleor.Address {
	if p.DefaultShippingAddress != nil {
		return p.DefaultShippingAddress.toAddress()
	}
	return p.DefaultShippingAddressSnake.toAddress()
}

// webhookEnvelope is the outer webhook body. The customer object can live at
// several paths depending on the sender's version.
type webhookEnvelope struct {
	Event  string `json:"event"`
	Type   string `json:"type"`
	Action string `json:"action"`

	Data *struct {
		User     *wirePerson `json:"user"`
		Customer *wirePerson `json:"customer"`
	} `json:"data"`
	User     *wirePerson `json:"user"`
	Customer *wirePerson `json:"customer"`

	Payload *struct {
		Email string `json:"email"`
	} `json:"payload"`
}

// person returns the first customer-shaped object found, in payload-path
// priority order.
func (e *webhookEnvelope) person() *wirePerson {
	if e == nil {
		return nil
	}
	if e.Data != nil {
		if e.Data.User != nil && e.Data.User.Email != "" {
			return e.Data.User
		}
		if e.Data.Customer != nil && e.Data.Customer.Email != "" {
			return e.Data.Customer
		}
	}
	if e.User != nil && e.User.Email != "" {
		return e.User
	}
	if e.Customer != nil && e.Customer.Email != "" {
		return e.Customer
	}
	if e.Payload != nil && e.Payload.Email != "" {
		return &wirePerson{Email: e.Payload.Email}
	}
	return nil
}
