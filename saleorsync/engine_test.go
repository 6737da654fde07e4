package saleorsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/dashboard_backend/erpnext"
	"bitbucket.org/mmdatafocus/dashboard_backend/models"
	"bitbucket.org/mmdatafocus/dashboard_backend/saleor"
)

type fakeEcommerce struct {
	customers []saleor.Customer
	err       error
}

func (f *fakeEcommerce) GetCustomers(ctx context.Context, first int) ([]saleor.Customer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.customers, nil
}

type fakeERP struct {
	customers    map[string]*erpnext.Customer
	createErrs   map[string]error
	findErrs     map[string]error
	createCalls  int
	updateCalls  int
	addressCalls int
	lastUpdated  string
	seq          int
}

func newFakeERP() *fakeERP {
	return &fakeERP{
		customers:  map[string]*erpnext.Customer{},
		createErrs: map[string]error{},
		findErrs:   map[string]error{},
	}
}

func (f *fakeERP) FindCustomerByEmail(ctx context.Context, email string) (*erpnext.Customer, error) {
	if err := f.findErrs[email]; err != nil {
		return nil, err
	}
	if c, ok := f.customers[email]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeERP) CreateCustomer(ctx context.Context, input erpnext.Customer) (*erpnext.Customer, error) {
	f.createCalls++
	if err := f.createErrs[input.EmailID]; err != nil {
		return nil, err
	}
	f.seq++
	created := input
	created.Name = fmt.Sprintf("CUST-%04d", f.seq)
	f.customers[input.EmailID] = &created
	return &created, nil
}

func (f *fakeERP) UpdateCustomer(ctx context.Context, docName string, input erpnext.Customer) (*erpnext.Customer, error) {
	f.updateCalls++
	f.lastUpdated = docName
	updated := input
	updated.Name = docName
	return &updated, nil
}

func (f *fakeERP) CreateAddress(ctx context.Context, input erpnext.Address) (*erpnext.Address, error) {
	f.addressCalls++
	created := input
	created.Name = fmt.Sprintf("ADDR-%04d", f.addressCalls)
	return &created, nil
}

type sinkEntry struct {
	Source string
	Action string
	Status string
	Error  string
}

type fakeSink struct {
	entries []sinkEntry
}

func (f *fakeSink) Append(ctx context.Context, source string, action string, status string, payload any, errorMessage string) {
	f.entries = append(f.entries, sinkEntry{Source: source, Action: action, Status: status, Error: errorMessage})
}

func (f *fakeSink) byAction(action string) []sinkEntry {
	var out []sinkEntry
	for _, e := range f.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type statusRecord struct {
	Source string
	Count  int
}

type fakeStatus struct {
	records []statusRecord
}

func (f *fakeStatus) Record(ctx context.Context, source string, at time.Time, recordCount int) error {
	f.records = append(f.records, statusRecord{Source: source, Count: recordCount})
	return nil
}

func newTestEngine(ecom *fakeEcommerce, erp *fakeERP) (*Engine, *fakeSink, *fakeStatus) {
	sink := &fakeSink{}
	status := &fakeStatus{}
	engine := &Engine{
		Tenant:    &models.Tenant{ID: "tenant-1", Slug: "tenant-1"},
		Ecommerce: ecom,
		ERP:       erp,
		Logs:      sink,
		Status:    status,
	}
	return engine, sink, status
}

func remoteCustomer(email string, first string, last string) saleor.Customer {
	return saleor.Customer{ID: "S-" + email, Email: email, FirstName: first, LastName: last}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		first, last, email, expected string
	}{
		{"Aung", "Kyaw", "a@b.com", "Aung Kyaw"},
		{"Aung", "", "a@b.com", "Aung"},
		{"", "Kyaw", "a@b.com", "Kyaw"},
		{"", "", "a@b.com", "a@b.com"},
		{"  ", "  ", "a@b.com", "a@b.com"},
	}
	for _, tc := range cases {
		if got := displayName(tc.first, tc.last, tc.email); got != tc.expected {
			t.Fatalf("displayName(%q, %q, %q) expected %q, got %q", tc.first, tc.last, tc.email, tc.expected, got)
		}
	}
}

func TestIsBenignDuplicate(t *testing.T) {
	cases := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{errors.New("Customer already exists"), true},
		{errors.New("DuplicateEntryError"), true},
		{errors.New("violates UNIQUE constraint"), true},
		{errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := isBenignDuplicate(tc.err); got != tc.expected {
			t.Fatalf("isBenignDuplicate(%v) expected %v, got %v", tc.err, tc.expected, got)
		}
	}
}

func TestBulkSyncIdempotency(t *testing.T) {
	erp := newFakeERP()
	ecom := &fakeEcommerce{customers: []saleor.Customer{
		remoteCustomer("one@shop.com", "One", "Buyer"),
		remoteCustomer("two@shop.com", "Two", "Buyer"),
	}}
	engine, _, _ := newTestEngine(ecom, erp)

	first, err := engine.BulkSyncCustomers(context.Background())
	if err != nil {
		t.Fatalf("first run error: %v", err)
	}
	if first.Summary.Synced != 2 || first.Summary.Skipped != 0 || first.Summary.Errors != 0 {
		t.Fatalf("first run summary unexpected: %+v", first.Summary)
	}

	second, err := engine.BulkSyncCustomers(context.Background())
	if err != nil {
		t.Fatalf("second run error: %v", err)
	}
	if second.Summary.Synced != 0 || second.Summary.Skipped != 2 {
		t.Fatalf("second run should skip everything: %+v", second.Summary)
	}
	if len(erp.customers) != 2 {
		t.Fatalf("expected 2 erp customers, got %d", len(erp.customers))
	}
}

func TestBulkSyncThreeCustomerScenario(t *testing.T) {
	erp := newFakeERP()
	erp.customers["a@shop.com"] = &erpnext.Customer{Name: "CUST-A", EmailID: "a@shop.com"}

	withBilling := remoteCustomer("b@shop.com", "B", "Buyer")
	withBilling.DefaultBillingAddress = &saleor.Address{
		StreetAddress1: "12 Main St",
		City:           "Yangon",
		Country:        saleor.Country{Code: "MM", Country: "Myanmar"},
	}

	ecom := &fakeEcommerce{customers: []saleor.Customer{
		remoteCustomer("a@shop.com", "A", "Buyer"),
		withBilling,
		remoteCustomer("c@shop.com", "C", "Buyer"),
	}}
	engine, _, _ := newTestEngine(ecom, erp)

	result, err := engine.BulkSyncCustomers(context.Background())
	if err != nil {
		t.Fatalf("bulk sync error: %v", err)
	}
	if result.Summary.Synced != 2 || result.Summary.Skipped != 1 || result.Summary.Errors != 0 {
		t.Fatalf("summary unexpected: %+v", result.Summary)
	}
	if erp.addressCalls != 1 {
		t.Fatalf("expected exactly one address create attempt, got %d", erp.addressCalls)
	}
	if result.Summary.Total != 3 {
		t.Fatalf("expected total 3, got %d", result.Summary.Total)
	}
}

func TestBulkSyncPartialFailureIsolation(t *testing.T) {
	erp := newFakeERP()
	erp.createErrs["bad@shop.com"] = errors.New("internal server error")

	ecom := &fakeEcommerce{customers: []saleor.Customer{
		remoteCustomer("ok1@shop.com", "One", ""),
		remoteCustomer("bad@shop.com", "Two", ""),
		remoteCustomer("ok2@shop.com", "Three", ""),
	}}
	engine, sink, _ := newTestEngine(ecom, erp)

	result, err := engine.BulkSyncCustomers(context.Background())
	if err != nil {
		t.Fatalf("bulk sync error: %v", err)
	}
	if !result.Success {
		t.Fatal("batch must succeed even with item failures")
	}
	if result.Summary.Synced != 2 || result.Summary.Errors != 1 {
		t.Fatalf("summary unexpected: %+v", result.Summary)
	}

	var errored *CustomerResult
	for i := range result.Results {
		if result.Results[i].Status == StatusError {
			errored = &result.Results[i]
		}
	}
	if errored == nil || errored.Email != "bad@shop.com" {
		t.Fatalf("expected error result for bad@shop.com, got %+v", errored)
	}
	if len(sink.byAction("bulk_customer_sync_failed")) != 1 {
		t.Fatalf("expected one failure log entry, got %d", len(sink.byAction("bulk_customer_sync_failed")))
	}
}

func TestBulkSyncDuplicateSuppression(t *testing.T) {
	erp := newFakeERP()
	erp.createErrs["dup@shop.com"] = errors.New("Customer dup@shop.com already exists")

	ecom := &fakeEcommerce{customers: []saleor.Customer{
		remoteCustomer("dup@shop.com", "Dup", "Buyer"),
	}}
	engine, sink, _ := newTestEngine(ecom, erp)

	result, err := engine.BulkSyncCustomers(context.Background())
	if err != nil {
		t.Fatalf("bulk sync error: %v", err)
	}
	if result.Summary.Errors != 0 {
		t.Fatalf("benign duplicate must not count as error: %+v", result.Summary)
	}
	if result.Results[0].Status == StatusError {
		t.Fatalf("benign duplicate must not surface as error result: %+v", result.Results[0])
	}
	if len(sink.byAction("bulk_customer_sync_failed")) != 0 {
		t.Fatal("benign duplicate must not produce an error log entry")
	}
}

func TestBulkSyncRecordsStatus(t *testing.T) {
	erp := newFakeERP()
	erp.customers["a@shop.com"] = &erpnext.Customer{Name: "CUST-A", EmailID: "a@shop.com"}
	ecom := &fakeEcommerce{customers: []saleor.Customer{
		remoteCustomer("a@shop.com", "A", ""),
		remoteCustomer("b@shop.com", "B", ""),
	}}
	engine, _, status := newTestEngine(ecom, erp)

	if _, err := engine.BulkSyncCustomers(context.Background()); err != nil {
		t.Fatalf("bulk sync error: %v", err)
	}

	if len(status.records) != 2 {
		t.Fatalf("expected 2 status upserts, got %d", len(status.records))
	}
	bySource := map[string]int{}
	for _, rec := range status.records {
		bySource[rec.Source] = rec.Count
	}
	if bySource[models.LogSourceSaleor] != 2 {
		t.Fatalf("saleor status should record total fetched, got %d", bySource[models.LogSourceSaleor])
	}
	if bySource[models.LogSourceErpnext] != 2 {
		t.Fatalf("erpnext status should record synced+skipped, got %d", bySource[models.LogSourceErpnext])
	}
}

func TestBulkSyncWithoutSaleorConfig(t *testing.T) {
	engine, _, _ := newTestEngine(nil, newFakeERP())
	engine.Ecommerce = nil
	if _, err := engine.BulkSyncCustomers(context.Background()); !errors.Is(err, ErrSaleorNotConfigured) {
		t.Fatalf("expected ErrSaleorNotConfigured, got %v", err)
	}
}

func TestWebhookSyncUpdatesExisting(t *testing.T) {
	erp := newFakeERP()
	erp.customers["x@y.com"] = &erpnext.Customer{Name: "CUST-X", EmailID: "x@y.com"}
	engine, _, _ := newTestEngine(&fakeEcommerce{}, erp)

	envelope := &webhookEnvelope{}
	envelope.Data = &struct {
		User     *wirePerson `json:"user"`
		Customer *wirePerson `json:"customer"`
	}{
		User: &wirePerson{Email: "x@y.com", FirstName: "X"},
	}

	engine.WebhookSyncCustomer(context.Background(), ClassUpdate, envelope)

	if erp.createCalls != 0 {
		t.Fatalf("existing customer must not be re-created, got %d creates", erp.createCalls)
	}
	if erp.updateCalls != 1 || erp.lastUpdated != "CUST-X" {
		t.Fatalf("expected one update of CUST-X, got %d updates (last %q)", erp.updateCalls, erp.lastUpdated)
	}
}

func TestWebhookSyncCreateClassSkipsExisting(t *testing.T) {
	erp := newFakeERP()
	erp.customers["x@y.com"] = &erpnext.Customer{Name: "CUST-X", EmailID: "x@y.com"}
	engine, _, _ := newTestEngine(&fakeEcommerce{}, erp)

	envelope := &webhookEnvelope{User: &wirePerson{Email: "x@y.com"}}
	engine.WebhookSyncCustomer(context.Background(), ClassCreate, envelope)

	if erp.createCalls != 0 || erp.updateCalls != 0 {
		t.Fatalf("create-class event on existing customer must be a no-op, got %d creates %d updates", erp.createCalls, erp.updateCalls)
	}
}

func TestWebhookSyncCreatesMissing(t *testing.T) {
	erp := newFakeERP()
	engine, sink, _ := newTestEngine(&fakeEcommerce{}, erp)

	envelope := &webhookEnvelope{Customer: &wirePerson{Email: "new@y.com", FirstName: "New", LastName: "Buyer"}}
	engine.WebhookSyncCustomer(context.Background(), ClassCreate, envelope)

	if erp.createCalls != 1 {
		t.Fatalf("expected one create, got %d", erp.createCalls)
	}
	if got := erp.customers["new@y.com"]; got == nil || got.CustomerName != "New Buyer" {
		t.Fatalf("created customer unexpected: %+v", got)
	}
	if len(sink.byAction("customer_synced")) != 1 {
		t.Fatal("expected a customer_synced log entry")
	}
}

func TestWebhookSyncMissingEmailIsNoop(t *testing.T) {
	erp := newFakeERP()
	engine, sink, _ := newTestEngine(&fakeEcommerce{}, erp)

	engine.WebhookSyncCustomer(context.Background(), ClassCreate, &webhookEnvelope{})
	engine.WebhookSyncCustomer(context.Background(), ClassUpdate, &webhookEnvelope{User: &wirePerson{FirstName: "NoEmail"}})

	if erp.createCalls != 0 || erp.updateCalls != 0 || erp.addressCalls != 0 {
		t.Fatalf("payload without email must not touch the ERP, got %+v", erp)
	}
	if len(sink.entries) != 0 {
		t.Fatalf("payload without email must not be logged by the engine, got %d entries", len(sink.entries))
	}
}

func TestWebhookSyncCreatesAddressesEveryDelivery(t *testing.T) {
	erp := newFakeERP()
	engine, _, _ := newTestEngine(&fakeEcommerce{}, erp)

	envelope := &webhookEnvelope{User: &wirePerson{
		Email: "addr@y.com",
		DefaultBillingAddressSnake: &wireAddress{
			AddressLine1: "1 Pagoda Rd",
			City:         "Mandalay",
		},
	}}

	engine.WebhookSyncCustomer(context.Background(), ClassCreate, envelope)
	engine.WebhookSyncCustomer(context.Background(), ClassUpdate, envelope)

	// Address creation is re-attempted per delivery; duplicates accumulate.
	if erp.addressCalls != 2 {
		t.Fatalf("expected 2 address attempts across 2 deliveries, got %d", erp.addressCalls)
	}
}
