package saleor

import "github.com/shopspring/decimal"

type Country struct {
	Code    string `json:"code"`
	Country string `json:"country"`
}

type Address struct {
	StreetAddress1 string  `json:"streetAddress1"`
	StreetAddress2 string  `json:"streetAddress2"`
	City           string  `json:"city"`
	CountryArea    string  `json:"countryArea"`
	PostalCode     string  `json:"postalCode"`
	Phone          string  `json:"phone"`
	Country        Country `json:"country"`
}

type Customer struct {
	ID                     string   `json:"id"`
	Email                  string   `json:"email"`
	FirstName              string   `json:"firstName"`
	LastName               string   `json:"lastName"`
	IsActive               bool     `json:"isActive"`
	DateJoined             string   `json:"dateJoined"`
	DefaultBillingAddress  *Address `json:"defaultBillingAddress"`
	DefaultShippingAddress *Address `json:"defaultShippingAddress"`
}

type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

type Order struct {
	ID      string `json:"id"`
	Number  string `json:"number"`
	Created string `json:"created"`
	Status  string `json:"status"`
	Total   struct {
		Gross Money `json:"gross"`
	} `json:"total"`
	UserEmail string `json:"userEmail"`
}

type Channel struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	CurrencyCode string `json:"currencyCode"`
	IsActive     bool   `json:"isActive"`
}

type Webhook struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TargetURL string `json:"targetUrl"`
	IsActive  bool   `json:"isActive"`
	Events    []struct {
		EventType string `json:"eventType"`
	} `json:"events"`
}
