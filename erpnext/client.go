package erpnext

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RemoteError is a non-2xx answer from the ERPNext REST API. Callers use it
// to distinguish remote rejections (duplicate records, validation failures)
// from transport problems.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("erpnext api error %d: %s", e.Status, e.Message)
}

// Client talks to one tenant's ERPNext site over its REST resource API.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
}

func NewClient(baseURL string, apiKey string, apiSecret string) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("erpnext base url is empty")
	}
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:    strings.TrimSpace(apiKey),
		apiSecret: strings.TrimSpace(apiSecret),
		http:      &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// resourceEnvelope wraps every ERPNext resource response.
type resourceEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Exception string `json:"exception"`
	Message   string `json:"message"`
	ExcType   string `json:"exc_type"`
}

func (c *Client) do(ctx context.Context, method string, path string, params url.Values, body any) (json.RawMessage, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+c.apiKey+":"+c.apiSecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		var parsed errorEnvelope
		if err := json.Unmarshal(raw, &parsed); err == nil {
			if parsed.Exception != "" {
				msg = parsed.Exception
			} else if parsed.Message != "" {
				msg = parsed.Message
			}
		}
		return nil, &RemoteError{Status: resp.StatusCode, Message: msg}
	}

	var envelope resourceEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

func listParams(fields []string, limit int) url.Values {
	params := url.Values{}
	if len(fields) > 0 {
		b, _ := json.Marshal(fields)
		params.Set("fields", string(b))
	}
	if limit > 0 {
		params.Set("limit_page_length", strconv.Itoa(limit))
	}
	return params
}

var customerFields = []string{"name", "customer_name", "customer_type", "customer_group", "territory", "email_id", "mobile_no"}

func (c *Client) GetCustomers(ctx context.Context, limit int) ([]Customer, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/resource/Customer", listParams(customerFields, limit), nil)
	if err != nil {
		return nil, err
	}
	var customers []Customer
	if err := json.Unmarshal(data, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

// FindCustomerByEmail looks up a customer by exact email_id match. Returns
// nil when no customer carries the email.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	filters := [][]string{{"Customer", "email_id", "=", email}}
	b, _ := json.Marshal(filters)
	params := listParams(customerFields, 1)
	params.Set("filters", string(b))

	data, err := c.do(ctx, http.MethodGet, "/api/resource/Customer", params, nil)
	if err != nil {
		return nil, err
	}
	var customers []Customer
	if err := json.Unmarshal(data, &customers); err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, nil
	}
	return &customers[0], nil
}

func (c *Client) CreateCustomer(ctx context.Context, input Customer) (*Customer, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/resource/Customer", nil, input)
	if err != nil {
		return nil, err
	}
	var created Customer
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateCustomer(ctx context.Context, docName string, input Customer) (*Customer, error) {
	if strings.TrimSpace(docName) == "" {
		return nil, errors.New("customer doc name is empty")
	}
	data, err := c.do(ctx, http.MethodPut, "/api/resource/Customer/"+url.PathEscape(docName), nil, input)
	if err != nil {
		return nil, err
	}
	var updated Customer
	if err := json.Unmarshal(data, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) CreateAddress(ctx context.Context, input Address) (*Address, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/resource/Address", nil, input)
	if err != nil {
		return nil, err
	}
	var created Address
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) GetItems(ctx context.Context, limit int) ([]Item, error) {
	fields := []string{"name", "item_code", "item_name", "item_group", "stock_uom", "standard_rate", "disabled"}
	data, err := c.do(ctx, http.MethodGet, "/api/resource/Item", listParams(fields, limit), nil)
	if err != nil {
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) GetProjects(ctx context.Context, limit int) ([]Project, error) {
	fields := []string{"name", "project_name", "status", "percent_complete"}
	data, err := c.do(ctx, http.MethodGet, "/api/resource/Project", listParams(fields, limit), nil)
	if err != nil {
		return nil, err
	}
	var projects []Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) CreateWebhook(ctx context.Context, input Webhook) (*Webhook, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/resource/Webhook", nil, input)
	if err != nil {
		return nil, err
	}
	var created Webhook
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Ping checks connectivity with the cheapest possible read.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/resource/Item", listParams([]string{"name"}, 1), nil)
	return err
}
