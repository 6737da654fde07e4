package saleor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client talks to one tenant's Saleor instance over its GraphQL endpoint.
type Client struct {
	endpoint   string
	token      string
	apiVersion string
	http       *http.Client
}

func NewClient(baseURL string, token string) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("saleor base url is empty")
	}
	endpoint := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasSuffix(endpoint, "/graphql") {
		endpoint = endpoint + "/graphql"
	}
	apiVersion := strings.TrimSpace(os.Getenv("SALEOR_API_VERSION"))
	if apiVersion == "" {
		apiVersion = "3.19"
	}
	return &Client{
		endpoint:   endpoint + "/",
		token:      strings.TrimSpace(token),
		apiVersion: apiVersion,
		http:       &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// query runs a GraphQL operation and unmarshals the data envelope into dest.
// GraphQL-level errors surface as a normal error.
func (c *Client) query(ctx context.Context, query string, variables map[string]any, dest any) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Saleor-API-Version", c.apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("saleor api error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed graphqlResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return err
	}
	if len(parsed.Errors) > 0 {
		msgs := make([]string, 0, len(parsed.Errors))
		for _, e := range parsed.Errors {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("saleor graphql error: %s", strings.Join(msgs, "; "))
	}
	if dest != nil && parsed.Data != nil {
		return json.Unmarshal(parsed.Data, dest)
	}
	return nil
}

type edges[T any] struct {
	Edges []struct {
		Node T `json:"node"`
	} `json:"edges"`
}

func nodes[T any](conn edges[T]) []T {
	out := make([]T, 0, len(conn.Edges))
	for _, e := range conn.Edges {
		out = append(out, e.Node)
	}
	return out
}

const customersQuery = `
query Customers($first: Int!) {
  customers(first: $first) {
    edges {
      node {
        id
        email
        firstName
        lastName
        isActive
        dateJoined
        defaultBillingAddress {
          streetAddress1 streetAddress2 city countryArea postalCode phone
          country { code country }
        }
        defaultShippingAddress {
          streetAddress1 streetAddress2 city countryArea postalCode phone
          country { code country }
        }
      }
    }
  }
}`

func (c *Client) GetCustomers(ctx context.Context, first int) ([]Customer, error) {
	if first <= 0 {
		first = 100
	}
	var out struct {
		Customers edges[Customer] `json:"customers"`
	}
	if err := c.query(ctx, customersQuery, map[string]any{"first": first}, &out); err != nil {
		return nil, err
	}
	return nodes(out.Customers), nil
}

const productsQuery = `
query Products($first: Int!) {
  products(first: $first) {
    edges { node { id name slug description } }
  }
}`

func (c *Client) GetProducts(ctx context.Context, first int) ([]Product, error) {
	if first <= 0 {
		first = 100
	}
	var out struct {
		Products edges[Product] `json:"products"`
	}
	if err := c.query(ctx, productsQuery, map[string]any{"first": first}, &out); err != nil {
		return nil, err
	}
	return nodes(out.Products), nil
}

const ordersQuery = `
query Orders($first: Int!) {
  orders(first: $first) {
    edges {
      node {
        id number created status userEmail
        total { gross { amount currency } }
      }
    }
  }
}`

func (c *Client) GetOrders(ctx context.Context, first int) ([]Order, error) {
	if first <= 0 {
		first = 100
	}
	var out struct {
		Orders edges[Order] `json:"orders"`
	}
	if err := c.query(ctx, ordersQuery, map[string]any{"first": first}, &out); err != nil {
		return nil, err
	}
	return nodes(out.Orders), nil
}

const channelsQuery = `
query Channels {
  channels { id name slug currencyCode isActive }
}`

func (c *Client) GetChannels(ctx context.Context) ([]Channel, error) {
	var out struct {
		Channels []Channel `json:"channels"`
	}
	if err := c.query(ctx, channelsQuery, nil, &out); err != nil {
		return nil, err
	}
	return out.Channels, nil
}

const webhooksQuery = `
query Webhooks {
  apps(first: 10) {
    edges {
      node {
        webhooks { id name targetUrl isActive events { eventType } }
      }
    }
  }
}`

// ListWebhooks flattens webhooks across the token's apps.
func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var out struct {
		Apps edges[struct {
			Webhooks []Webhook `json:"webhooks"`
		}] `json:"apps"`
	}
	if err := c.query(ctx, webhooksQuery, nil, &out); err != nil {
		return nil, err
	}
	var hooks []Webhook
	for _, app := range nodes(out.Apps) {
		hooks = append(hooks, app.Webhooks...)
	}
	return hooks, nil
}

const webhookCreateMutation = `
mutation WebhookCreate($input: WebhookCreateInput!) {
  webhookCreate(input: $input) {
    webhook { id name targetUrl isActive events { eventType } }
    errors { field message }
  }
}`

const webhookUpdateMutation = `
mutation WebhookUpdate($id: ID!, $input: WebhookUpdateInput!) {
  webhookUpdate(id: $id, input: $input) {
    webhook { id name targetUrl isActive events { eventType } }
    errors { field message }
  }
}`

type mutationErrors []struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (errs mutationErrors) join() error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, strings.TrimSpace(e.Field+" "+e.Message))
	}
	return fmt.Errorf("saleor webhook mutation failed: %s", strings.Join(msgs, "; "))
}

func (c *Client) CreateWebhook(ctx context.Context, name string, targetURL string, events []string) (*Webhook, error) {
	var out struct {
		WebhookCreate struct {
			Webhook *Webhook       `json:"webhook"`
			Errors  mutationErrors `json:"errors"`
		} `json:"webhookCreate"`
	}
	input := map[string]any{
		"name":        name,
		"targetUrl":   targetURL,
		"asyncEvents": events,
		"isActive":    true,
	}
	if err := c.query(ctx, webhookCreateMutation, map[string]any{"input": input}, &out); err != nil {
		return nil, err
	}
	if err := out.WebhookCreate.Errors.join(); err != nil {
		return nil, err
	}
	return out.WebhookCreate.Webhook, nil
}

func (c *Client) UpdateWebhook(ctx context.Context, id string, targetURL string, events []string, isActive bool) (*Webhook, error) {
	var out struct {
		WebhookUpdate struct {
			Webhook *Webhook       `json:"webhook"`
			Errors  mutationErrors `json:"errors"`
		} `json:"webhookUpdate"`
	}
	input := map[string]any{
		"targetUrl":   targetURL,
		"asyncEvents": events,
		"isActive":    isActive,
	}
	if err := c.query(ctx, webhookUpdateMutation, map[string]any{"id": id, "input": input}, &out); err != nil {
		return nil, err
	}
	if err := out.WebhookUpdate.Errors.join(); err != nil {
		return nil, err
	}
	return out.WebhookUpdate.Webhook, nil
}

// UpsertCustomerWebhook registers (or repoints) the customer-event webhook
// that feeds the reconciliation endpoint.
func (c *Client) UpsertCustomerWebhook(ctx context.Context, name string, targetURL string) (*Webhook, error) {
	events := []string{"CUSTOMER_CREATED", "CUSTOMER_UPDATED"}
	existing, err := c.ListWebhooks(ctx)
	if err != nil {
		return nil, err
	}
	for _, hook := range existing {
		if hook.Name == name {
			return c.UpdateWebhook(ctx, hook.ID, targetURL, events, true)
		}
	}
	return c.CreateWebhook(ctx, name, targetURL, events)
}

// Ping checks connectivity with the cheapest possible read.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GetProducts(ctx, 1)
	return err
}
