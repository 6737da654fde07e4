package erpnext

import "github.com/shopspring/decimal"

// Customer mirrors the fields of the ERPNext Customer doctype that the
// dashboard reads and writes.
type Customer struct {
	Name          string `json:"name,omitempty"`
	CustomerName  string `json:"customer_name"`
	CustomerType  string `json:"customer_type,omitempty"`
	CustomerGroup string `json:"customer_group,omitempty"`
	Territory     string `json:"territory,omitempty"`
	EmailID       string `json:"email_id,omitempty"`
	MobileNo      string `json:"mobile_no,omitempty"`
}

// DocLink ties a child document (e.g. an Address) to its parent doctype.
type DocLink struct {
	LinkDoctype string `json:"link_doctype"`
	LinkName    string `json:"link_name"`
}

type Address struct {
	Name         string    `json:"name,omitempty"`
	AddressTitle string    `json:"address_title"`
	AddressType  string    `json:"address_type"`
	AddressLine1 string    `json:"address_line1"`
	AddressLine2 string    `json:"address_line2,omitempty"`
	City         string    `json:"city,omitempty"`
	State        string    `json:"state,omitempty"`
	Country      string    `json:"country,omitempty"`
	Pincode      string    `json:"pincode,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	EmailID      string    `json:"email_id,omitempty"`
	Links        []DocLink `json:"links,omitempty"`
}

type Item struct {
	Name         string          `json:"name,omitempty"`
	ItemCode     string          `json:"item_code"`
	ItemName     string          `json:"item_name"`
	ItemGroup    string          `json:"item_group,omitempty"`
	StockUom     string          `json:"stock_uom,omitempty"`
	StandardRate decimal.Decimal `json:"standard_rate,omitempty"`
	Disabled     int             `json:"disabled,omitempty"`
}

type Project struct {
	Name            string          `json:"name,omitempty"`
	ProjectName     string          `json:"project_name"`
	Status          string          `json:"status,omitempty"`
	PercentComplete decimal.Decimal `json:"percent_complete,omitempty"`
}

// Webhook mirrors the ERPNext Webhook doctype used to push doc events back
// at the dashboard.
type Webhook struct {
	Name            string `json:"name,omitempty"`
	WebhookDoctype  string `json:"webhook_doctype"`
	WebhookDocevent string `json:"webhook_docevent"`
	RequestURL      string `json:"request_url"`
	RequestMethod   string `json:"request_method,omitempty"`
	Enabled         int    `json:"enabled"`
}
