package saleorsync

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/dashboard_backend/erpnext"
	"bitbucket.org/mmdatafocus/dashboard_backend/models"
	"bitbucket.org/mmdatafocus/dashboard_backend/saleor"
	"go.opentelemetry.io/otel"
)

var (
	ErrSaleorNotConfigured  = errors.New("tenant has no saleor connection configured")
	ErrErpnextNotConfigured = errors.New("tenant has no erpnext connection configured")
)

var tracer = otel.Tracer("saleorsync")

// EcommerceAPI is the slice of the Saleor surface the engine reads.
type EcommerceAPI interface {
	GetCustomers(ctx context.Context, first int) ([]saleor.Customer, error)
}

// ERPAPI is the slice of the ERPNext surface the engine reconciles against.
type ERPAPI interface {
	FindCustomerByEmail(ctx context.Context, email string) (*erpnext.Customer, error)
	CreateCustomer(ctx context.Context, input erpnext.Customer) (*erpnext.Customer, error)
	UpdateCustomer(ctx context.Context, docName string, input erpnext.Customer) (*erpnext.Customer, error)
	CreateAddress(ctx context.Context, input erpnext.Address) (*erpnext.Address, error)
}

// EventSink receives audit entries. Implementations must swallow their own
// failures; the engine never checks them.
type EventSink interface {
	Append(ctx context.Context, source string, action string, status string, payload any, errorMessage string)
}

// StatusStore records bulk run completion per (tenant, source).
type StatusStore interface {
	Record(ctx context.Context, source string, at time.Time, recordCount int) error
}

// Engine reconciles one tenant's Saleor customers into ERPNext. Stateless
// between calls; construct per request.
type Engine struct {
	Tenant    *models.Tenant
	Ecommerce EcommerceAPI
	ERP       ERPAPI
	Logs      EventSink
	Status    StatusStore
}

// NewEngine wires an engine from the tenant's stored connection info.
// ERPNext is always required; Saleor is left nil when unconfigured so that
// webhook reconciliation still works for ERP-only tenants.
func NewEngine(tenant *models.Tenant) (*Engine, error) {
	if tenant == nil {
		return nil, errors.New("tenant is nil")
	}
	if !tenant.HasErpnext() {
		return nil, ErrErpnextNotConfigured
	}
	erpClient, err := erpnext.NewClient(tenant.ErpnextUrl, tenant.ErpnextApiKey, tenant.ErpnextApiSecret)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		Tenant: tenant,
		ERP:    erpClient,
		Logs:   &models.LogSink{TenantId: tenant.ID},
		Status: &models.StatusStore{TenantId: tenant.ID},
	}
	if tenant.HasSaleor() {
		saleorClient, err := saleor.NewClient(tenant.SaleorUrl, tenant.SaleorToken)
		if err != nil {
			return nil, err
		}
		engine.Ecommerce = saleorClient
	}
	return engine, nil
}

// displayName follows the "first last, fall back to email" rule.
func displayName(firstName string, lastName string, email string) string {
	name := strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
	if name == "" {
		return email
	}
	return name
}

// isBenignDuplicate classifies a remote create failure as "record already
// exists". ERPNext signals duplicates via free-text messages, not structured
// codes, so this stays a substring check until that changes.
func isBenignDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "exists") ||
		strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique")
}

// buildAddress maps a Saleor address onto an ERPNext Address doc linked to
// the customer. Returns false when the source address carries no usable data.
func buildAddress(src *saleor.Address, addressType string, customerName string, customerDocName string, email string) (erpnext.Address, bool) {
	if src == nil {
		return erpnext.Address{}, false
	}
	if strings.TrimSpace(src.StreetAddress1) == "" && strings.TrimSpace(src.City) == "" {
		return erpnext.Address{}, false
	}
	country := src.Country.Country
	if country == "" {
		country = src.Country.Code
	}
	return erpnext.Address{
		AddressTitle: customerName + " " + addressType,
		AddressType:  addressType,
		AddressLine1: src.StreetAddress1,
		AddressLine2: src.StreetAddress2,
		City:         src.City,
		State:        src.CountryArea,
		Country:      country,
		Pincode:      src.PostalCode,
		Phone:        src.Phone,
		EmailID:      email,
		Links: []erpnext.DocLink{
			{LinkDoctype: "Customer", LinkName: customerDocName},
		},
	}, true
}

// createAddresses attempts Billing then Shipping creation. Each attempt is
// independently best-effort; failures never surface past this function.
func (e *Engine) createAddresses(ctx context.Context, billing *saleor.Address, shipping *saleor.Address, customerName string, customerDocName string, email string) {
	if addr, ok := buildAddress(billing, "Billing", customerName, customerDocName, email); ok {
		_, _ = e.ERP.CreateAddress(ctx, addr)
	}
	if addr, ok := buildAddress(shipping, "Shipping", customerName, customerDocName, email); ok {
		_, _ = e.ERP.CreateAddress(ctx, addr)
	}
}

func phoneFrom(billing *saleor.Address, shipping *saleor.Address) string {
	if billing != nil && billing.Phone != "" {
		return billing.Phone
	}
	if shipping != nil && shipping.Phone != "" {
		return shipping.Phone
	}
	return ""
}

// BulkSyncCustomers makes the ERP customer set a superset-by-email of the
// first page of Saleor customers. Per-customer failures are reported in the
// result, never thrown; only a failed page fetch aborts the run.
func (e *Engine) BulkSyncCustomers(ctx context.Context) (*SyncResult, error) {
	ctx, span := tracer.Start(ctx, "BulkSyncCustomers")
	defer span.End()

	if e.Ecommerce == nil {
		return nil, ErrSaleorNotConfigured
	}
	if e.ERP == nil {
		return nil, ErrErpnextNotConfigured
	}

	customers, err := e.Ecommerce.GetCustomers(ctx, 100)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Success: true, Results: make([]CustomerResult, 0, len(customers))}
	result.Summary.Total = len(customers)

	for _, customer := range customers {
		outcome := e.syncOne(ctx, customer)
		switch outcome.Status {
		case StatusSynced:
			result.Summary.Synced++
		case StatusSkipped:
			result.Summary.Skipped++
		default:
			result.Summary.Errors++
		}
		result.Results = append(result.Results, outcome)
	}

	now := time.Now().UTC()
	if e.Status != nil {
		_ = e.Status.Record(ctx, models.LogSourceSaleor, now, result.Summary.Total)
		_ = e.Status.Record(ctx, models.LogSourceErpnext, now, result.Summary.Synced+result.Summary.Skipped)
	}
	return result, nil
}

// syncOne handles a single customer. It never returns an error: every
// failure mode collapses into the per-customer result.
func (e *Engine) syncOne(ctx context.Context, customer saleor.Customer) CustomerResult {
	name := displayName(customer.FirstName, customer.LastName, customer.Email)
	outcome := CustomerResult{Email: customer.Email, Name: name}

	existing, err := e.ERP.FindCustomerByEmail(ctx, customer.Email)
	if err != nil {
		outcome.Status = StatusError
		outcome.Error = err.Error()
		e.logOutcome(ctx, "bulk_customer_sync_failed", models.LogStatusError, outcome, err.Error())
		return outcome
	}
	if existing != nil {
		outcome.Status = StatusSkipped
		outcome.Reason = "already exists"
		return outcome
	}

	docName := name
	created, err := e.ERP.CreateCustomer(ctx, erpnext.Customer{
		CustomerName: name,
		CustomerType: "Individual",
		EmailID:      customer.Email,
		MobileNo:     phoneFrom(customer.DefaultBillingAddress, customer.DefaultShippingAddress),
	})
	switch {
	case err == nil:
		if created != nil && created.Name != "" {
			docName = created.Name
		}
		outcome.Status = StatusSynced
		outcome.CustomerDocName = docName
		e.logOutcome(ctx, "bulk_customer_synced", models.LogStatusSuccess, outcome, "")
	case isBenignDuplicate(err):
		outcome.Status = StatusSkipped
		outcome.Reason = "already exists"
	default:
		outcome.Status = StatusError
		outcome.Error = err.Error()
		e.logOutcome(ctx, "bulk_customer_sync_failed", models.LogStatusError, outcome, err.Error())
	}

	// Addresses are attempted whenever a create was attempted, even after a
	// failed create, using the display name as the link fallback.
	e.createAddresses(ctx, customer.DefaultBillingAddress, customer.DefaultShippingAddress, name, docName, customer.Email)
	return outcome
}

func (e *Engine) logOutcome(ctx context.Context, action string, status string, payload any, errorMessage string) {
	if e.Logs == nil {
		return
	}
	e.Logs.Append(ctx, models.LogSourceIntegration, action, status, payload, errorMessage)
}

// WebhookSyncCustomer reconciles a single customer from a webhook payload.
// Missing email is a silent no-op. All failures are swallowed; the webhook
// acknowledgement never depends on reconciliation.
func (e *Engine) WebhookSyncCustomer(ctx context.Context, class EventClass, envelope *webhookEnvelope) {
	ctx, span := tracer.Start(ctx, "WebhookSyncCustomer")
	defer span.End()

	if e.ERP == nil {
		return
	}
	person := envelope.person()
	if person == nil || strings.TrimSpace(person.Email) == "" {
		return
	}

	email := person.Email
	name := displayName(person.firstName(), person.lastName(), email)
	billing := person.billingAddress()
	shipping := person.shippingAddress()
	docName := name

	existing, err := e.ERP.FindCustomerByEmail(ctx, email)
	if err != nil {
		e.logOutcome(ctx, "customer_sync_failed", models.LogStatusError, map[string]string{"email": email}, err.Error())
		return
	}

	if existing == nil {
		created, err := e.ERP.CreateCustomer(ctx, erpnext.Customer{
			CustomerName: name,
			CustomerType: "Individual",
			EmailID:      email,
			MobileNo:     phoneFrom(billing, shipping),
		})
		switch {
		case err == nil:
			if created != nil && created.Name != "" {
				docName = created.Name
			}
			e.logOutcome(ctx, "customer_synced", models.LogStatusSuccess, map[string]string{"email": email, "customerDocName": docName}, "")
		case isBenignDuplicate(err):
			// Lost the race with another delivery; the record is there.
		default:
			e.logOutcome(ctx, "customer_sync_failed", models.LogStatusError, map[string]string{"email": email}, err.Error())
		}
	} else {
		docName = existing.Name
		if class == ClassUpdate {
			_, _ = e.ERP.UpdateCustomer(ctx, existing.Name, erpnext.Customer{
				CustomerName: name,
				EmailID:      email,
				MobileNo:     phoneFrom(billing, shipping),
			})
		}
	}

	e.createAddresses(ctx, billing, shipping, name, docName, email)
}
