package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sms-transactions/pkg/auth"
	"sms-transactions/pkg/events"
	"sms-transactions/pkg/loader"
	metricsMemory "sms-transactions/pkg/metrics/memory"
	"sms-transactions/pkg/store"
	"sms-transactions/pkg/store/memory"
	"sms-transactions/pkg/transaction"
)

var fixedNow = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func fixtures() *loader.Dataset {
	return loader.NewDataset([]*transaction.Transaction{
		{ID: 1, Type: "SEND_MONEY", Amount: 1500.75, Sender: "alice", Receiver: "bob", Timestamp: "2024-01-01T08:00:00Z", Reference: "R1", Status: "COMPLETED"},
		{ID: 2, Type: "DEPOSIT", Amount: 200, Sender: "bank", Receiver: "alice", Timestamp: "2024-01-02T08:00:00Z", Reference: "R2", Status: "PENDING"},
		{ID: 5, Type: "WITHDRAWAL", Amount: -50.5, Sender: "alice", Receiver: "agent", Timestamp: "2024-01-03T08:00:00Z", Reference: "R5", Status: "FAILED"},
	})
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Enqueue(ctx context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) all() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}

type testEnv struct {
	server  *Server
	store   *memory.Store
	metrics *metricsMemory.MemoryCollector
	sink    *recordingSink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mc := metricsMemory.NewMemoryCollector()
	st := memory.NewStore(memory.StoreConfig{Now: func() time.Time { return fixedNow }}, fixtures())
	sink := &recordingSink{}

	config := DefaultServerConfig()
	config.Metrics = mc
	config.Events = sink
	config.MaxBodyBytes = 1024
	config.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "# metrics\n")
	})

	guard := auth.NewGuard(auth.DefaultCredentials(), auth.GuardConfig{Metrics: mc})
	return &testEnv{
		server:  NewServer(st, guard, config),
		store:   st,
		metrics: mc,
		sink:    sink,
	}
}

func basicAuth(user, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+secret))
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	return e.doWithAuth(method, path, body, basicAuth("admin", "password123"))
}

func (e *testEnv) doWithAuth(method, path, body, authorization string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, description string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("Expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["error"] != description {
		t.Errorf("Expected error %q, got %v", description, body["error"])
	}
	if body["status_code"] != float64(status) {
		t.Errorf("Expected status_code %d, got %v", status, body["status_code"])
	}
	if _, ok := body["message"]; !ok {
		t.Error("Expected message field in error envelope")
	}
	for _, key := range []string{"transaction", "transactions", "deleted_transaction"} {
		if _, ok := body[key]; ok {
			t.Errorf("Error envelope must not carry %s", key)
		}
	}
}

func TestListTransactions(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/transactions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp listResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if resp.TotalCount != 3 || len(resp.Transactions) != 3 {
		t.Fatalf("Expected 3 transactions, got %d", resp.TotalCount)
	}
	for i, want := range []int{1, 2, 5} {
		if resp.Transactions[i].ID != want {
			t.Errorf("Expected id %d at position %d, got %d", want, i, resp.Transactions[i].ID)
		}
	}
	if resp.Message != "Transactions retrieved successfully" {
		t.Errorf("Unexpected message: %s", resp.Message)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Unexpected content type: %s", w.Header().Get("Content-Type"))
	}
}

func TestListTransactions_Filters(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		query string
		want  []int
	}{
		{"?status=completed", []int{1}},
		{"?type=DEPOSIT", []int{2}},
		{"?status=failed&type=withdrawal", []int{5}},
		{"?status=failed&type=deposit", []int{}},
		{"?status=", []int{1, 2, 5}},
	}

	for _, tt := range tests {
		w := env.do(http.MethodGet, "/transactions"+tt.query, "")
		var resp listResponse
		json.Unmarshal(w.Body.Bytes(), &resp)

		if resp.TotalCount != len(tt.want) {
			t.Errorf("%s: expected %d results, got %d", tt.query, len(tt.want), resp.TotalCount)
			continue
		}
		if resp.Transactions == nil {
			t.Errorf("%s: expected an empty array, not null", tt.query)
		}
		for i, id := range tt.want {
			if resp.Transactions[i].ID != id {
				t.Errorf("%s: expected id %d, got %d", tt.query, id, resp.Transactions[i].ID)
			}
		}
	}
}

func TestGetTransaction(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/transactions/2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp transactionResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Transaction.ID != 2 || resp.Transaction.Type != "DEPOSIT" {
		t.Errorf("Unexpected transaction: %+v", resp.Transaction)
	}
	if resp.Message != "Transaction found" {
		t.Errorf("Unexpected message: %s", resp.Message)
	}

	expectError(t, env.do(http.MethodGet, "/transactions/3", ""), http.StatusNotFound, "Transaction not found")
	expectError(t, env.do(http.MethodGet, "/transactions/abc", ""), http.StatusBadRequest, "Invalid transaction ID format")
	expectError(t, env.do(http.MethodGet, "/transactions/1.5", ""), http.StatusBadRequest, "Invalid transaction ID format")
	expectError(t, env.do(http.MethodGet, "/transactions/99999999999999999999", ""), http.StatusNotFound, "Transaction not found")
}

func TestTrailingSlash(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(http.MethodGet, "/transactions/", ""); w.Code != http.StatusOK {
		t.Errorf("Expected 200 for list with trailing slash, got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/transactions/1/", ""); w.Code != http.StatusOK {
		t.Errorf("Expected 200 for get with trailing slash, got %d", w.Code)
	}
}

func TestCreateTransaction(t *testing.T) {
	env := newTestEnv(t)

	body := `{"type":"airtime","amount":"25.5","sender":"carol","receiver":"telco","reference":"R9"}`
	w := env.do(http.MethodPost, "/transactions", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp transactionResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	created := resp.Transaction

	if created.ID != 6 {
		t.Errorf("Expected id 6 after loading max id 5, got %d", created.ID)
	}
	if created.Type != "AIRTIME" || created.Status != "PENDING" || created.Amount != 25.5 {
		t.Errorf("Unexpected normalization: %+v", created)
	}
	if created.Timestamp != "2024-01-15T10:30:00.000000Z" {
		t.Errorf("Unexpected default timestamp: %s", created.Timestamp)
	}
	if resp.Message != "Transaction created successfully" {
		t.Errorf("Unexpected message: %s", resp.Message)
	}

	got := env.do(http.MethodGet, "/transactions/6", "")
	var getResp transactionResponse
	json.Unmarshal(got.Body.Bytes(), &getResp)
	if getResp.Transaction != created {
		t.Errorf("Round trip mismatch: %+v vs %+v", getResp.Transaction, created)
	}

	sent := env.sink.all()
	if len(sent) != 1 || sent[0].Kind != events.KindCreated || sent[0].Actor != "admin" || sent[0].Transaction.ID != 6 {
		t.Errorf("Unexpected events: %+v", sent)
	}
}

func TestCreateTransaction_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", "Invalid JSON data"},
		{"syntax", `{"type":`, "Invalid JSON data"},
		{"not an object", `[1,2]`, "Invalid JSON data"},
		{"trailing data", `{"type":"a"} {}`, "Invalid JSON data"},
		{"missing type", `{"amount":1,"sender":"a","receiver":"b","reference":"r"}`, "Missing required field: type"},
		{"missing amount first", `{"type":"x"}`, "Missing required field: amount"},
		{"null counts as missing", `{"type":"x","amount":1,"sender":null,"receiver":"b","reference":"r"}`, "Missing required field: sender"},
		{"missing reference", `{"type":"x","amount":1,"sender":"a","receiver":"b"}`, "Missing required field: reference"},
		{"bad amount", `{"type":"x","amount":"abc","sender":"a","receiver":"b","reference":"r"}`, "Invalid data format: amount could not convert abc to a number"},
		{"bool amount", `{"type":"x","amount":true,"sender":"a","receiver":"b","reference":"r"}`, "Invalid data format: amount could not convert true to a number"},
		{"numeric type", `{"type":5,"amount":1,"sender":"a","receiver":"b","reference":"r"}`, "Invalid data format: type must be a string"},
		{"too large", `{"type":"` + strings.Repeat("x", 2048) + `"}`, "Invalid JSON data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			expectError(t, env.do(http.MethodPost, "/transactions", tt.body), http.StatusBadRequest, tt.want)

			if env.store.Len() != 3 {
				t.Errorf("Expected no record to be created, got %d", env.store.Len())
			}
			if env.store.NextID() != 6 {
				t.Errorf("Expected failed create not to consume an id, next is %d", env.store.NextID())
			}
			if len(env.sink.all()) != 0 {
				t.Error("Expected no event for a failed create")
			}
		})
	}
}

func TestUpdateTransaction(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPut, "/transactions/2", `{"status":"completed","amount":250,"id":99,"timestamp":"x","color":"red"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp transactionResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	updated := resp.Transaction
	if updated.ID != 2 || updated.Status != "COMPLETED" || updated.Amount != 250 {
		t.Errorf("Unexpected update result: %+v", updated)
	}
	if updated.Timestamp != "2024-01-02T08:00:00Z" || updated.Sender != "bank" {
		t.Errorf("Expected untouched fields preserved: %+v", updated)
	}
	if resp.Message != "Transaction updated successfully" {
		t.Errorf("Unexpected message: %s", resp.Message)
	}

	list := env.store.List(transaction.Filter{Status: "completed"})
	if len(list) != 2 || list[1].ID != 2 {
		t.Errorf("Expected the ordered view to reflect the update, got %+v", list)
	}
	if err := env.store.CheckConsistency(); err != nil {
		t.Error(err)
	}

	sent := env.sink.all()
	if len(sent) != 1 || sent[0].Kind != events.KindUpdated {
		t.Errorf("Unexpected events: %+v", sent)
	}
}

func TestUpdateTransaction_Errors(t *testing.T) {
	env := newTestEnv(t)

	// existence wins over body problems
	expectError(t, env.do(http.MethodPut, "/transactions/42", `not json`), http.StatusNotFound, "Transaction not found")
	expectError(t, env.do(http.MethodPut, "/transactions/x", `{}`), http.StatusBadRequest, "Invalid transaction ID format")
	expectError(t, env.do(http.MethodPut, "/transactions/99999999999999999999", `{}`), http.StatusNotFound, "Transaction not found")
	expectError(t, env.do(http.MethodPut, "/transactions/1", `{bad`), http.StatusBadRequest, "Invalid JSON data")

	expectError(t, env.do(http.MethodPut, "/transactions/1", `{"status":"failed","amount":"lots"}`),
		http.StatusBadRequest, "Invalid data format: amount could not convert lots to a number")

	got, _ := env.store.Get(1)
	if got.Status != "COMPLETED" || got.Amount != 1500.75 {
		t.Errorf("Expected rejected update to change nothing, got %+v", got)
	}
}

func TestDeleteTransaction(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodDelete, "/transactions/2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	deleted, ok := body["deleted_transaction"].(map[string]interface{})
	if !ok || deleted["id"] != float64(2) {
		t.Errorf("Unexpected deleted_transaction: %v", body["deleted_transaction"])
	}
	if body["message"] != "Transaction deleted successfully" {
		t.Errorf("Unexpected message: %v", body["message"])
	}

	expectError(t, env.do(http.MethodGet, "/transactions/2", ""), http.StatusNotFound, "Transaction not found")
	expectError(t, env.do(http.MethodDelete, "/transactions/2", ""), http.StatusNotFound, "Transaction not found")
	expectError(t, env.do(http.MethodDelete, "/transactions/two", ""), http.StatusBadRequest, "Invalid transaction ID format")
	expectError(t, env.do(http.MethodDelete, "/transactions/-99999999999999999999", ""), http.StatusNotFound, "Transaction not found")

	for _, tr := range env.store.List(transaction.Filter{}) {
		if tr.ID == 2 {
			t.Error("Expected deleted record gone from the ordered view")
		}
	}

	// ids are never reused
	w = env.do(http.MethodPost, "/transactions", `{"type":"x","amount":1,"sender":"a","receiver":"b","reference":"r"}`)
	var resp transactionResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Transaction.ID != 6 {
		t.Errorf("Expected id 6, got %d", resp.Transaction.ID)
	}
}

func TestUnknownEndpoints(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/"},
		{http.MethodGet, "/accounts"},
		{http.MethodGet, "/transactions/1/extra"},
		{http.MethodPost, "/transactions/1"},
		{http.MethodPut, "/transactions"},
		{http.MethodDelete, "/transactions"},
		{http.MethodPatch, "/transactions/1"},
		{http.MethodPost, "/health"},
	}

	for _, tt := range tests {
		expectError(t, env.do(tt.method, tt.path, ""), http.StatusNotFound, "Invalid endpoint")
	}
}

// countingStore fails the test if any operation is reached.
type countingStore struct {
	store.Store
	mu    sync.Mutex
	calls int
}

func (c *countingStore) touch() {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *countingStore) List(f transaction.Filter) []transaction.Transaction {
	c.touch()
	return c.Store.List(f)
}

func (c *countingStore) Get(id int) (transaction.Transaction, error) {
	c.touch()
	return c.Store.Get(id)
}

func (c *countingStore) Create(req transaction.CreateRequest) (transaction.Transaction, error) {
	c.touch()
	return c.Store.Create(req)
}

func (c *countingStore) Update(id int, req transaction.UpdateRequest) (transaction.Transaction, error) {
	c.touch()
	return c.Store.Update(id, req)
}

func (c *countingStore) Delete(id int) (transaction.Transaction, error) {
	c.touch()
	return c.Store.Delete(id)
}

func TestAuthGate(t *testing.T) {
	mc := metricsMemory.NewMemoryCollector()
	counting := &countingStore{Store: memory.NewStore(memory.StoreConfig{}, fixtures())}
	guard := auth.NewGuard(auth.DefaultCredentials(), auth.GuardConfig{Metrics: mc})
	env := &testEnv{server: NewServer(counting, guard, DefaultServerConfig()), metrics: mc}

	authorizations := []string{
		"",
		basicAuth("admin", "wrong"),
		basicAuth("ghost", "password123"),
		"Bearer token",
		"Basic not-base64!",
	}
	requests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/transactions", ""},
		{http.MethodGet, "/transactions/1", ""},
		{http.MethodPost, "/transactions", `{"type":"x","amount":1,"sender":"a","receiver":"b","reference":"r"}`},
		{http.MethodPut, "/transactions/1", `{"status":"x"}`},
		{http.MethodDelete, "/transactions/1", ""},
		{http.MethodGet, "/nowhere", ""},
	}

	for _, authorization := range authorizations {
		for _, req := range requests {
			w := env.doWithAuth(req.method, req.path, req.body, authorization)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("%s %s with %q: expected 401, got %d", req.method, req.path, authorization, w.Code)
				continue
			}
			if got := w.Header().Get("WWW-Authenticate"); got != `Basic realm="SMS Transaction API"` {
				t.Errorf("Unexpected challenge: %s", got)
			}
			if w.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Error("Expected CORS headers on 401")
			}
		}
	}

	if counting.calls != 0 {
		t.Errorf("Expected the store never to be reached, got %d calls", counting.calls)
	}
	if counting.Store.Len() != 3 {
		t.Errorf("Expected store unchanged, got %d records", counting.Store.Len())
	}

	for _, creds := range [][2]string{{"admin", "password123"}, {"user", "user123"}, {"demo", "demo123"}} {
		if w := env.doWithAuth(http.MethodGet, "/transactions", "", basicAuth(creds[0], creds[1])); w.Code != http.StatusOK {
			t.Errorf("Expected %s to authenticate, got %d", creds[0], w.Code)
		}
	}
}

func TestPreflight(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/transactions", "/transactions/1", "/anything"} {
		w := env.doWithAuth(http.MethodOptions, path, "", "")
		if w.Code != http.StatusOK {
			t.Errorf("OPTIONS %s: expected 200, got %d", path, w.Code)
		}
		if w.Body.Len() != 0 {
			t.Errorf("OPTIONS %s: expected empty body", path)
		}
		if w.Header().Get("Access-Control-Allow-Methods") != "GET, POST, PUT, DELETE, OPTIONS" {
			t.Errorf("OPTIONS %s: unexpected allow-methods %q", path, w.Header().Get("Access-Control-Allow-Methods"))
		}
		if w.Header().Get("Access-Control-Allow-Headers") != "Content-Type, Authorization" {
			t.Errorf("OPTIONS %s: unexpected allow-headers", path)
		}
	}
}

func TestCORSOnEveryResponse(t *testing.T) {
	env := newTestEnv(t)

	for _, w := range []*httptest.ResponseRecorder{
		env.do(http.MethodGet, "/transactions", ""),
		env.do(http.MethodGet, "/transactions/404", ""),
		env.do(http.MethodGet, "/bogus", ""),
	} {
		if w.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("Missing CORS origin header on %d response", w.Code)
		}
	}
}

func TestHealthAndMetricsBypassAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.doWithAuth(http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /health, got %d", w.Code)
	}
	body := decode(t, w)
	if body["status"] != "healthy" || body["transactions"] != float64(3) {
		t.Errorf("Unexpected health body: %v", body)
	}

	w = env.doWithAuth(http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "# metrics") {
		t.Errorf("Expected metrics handler to be served, got %d %q", w.Code, w.Body.String())
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/transactions", "")
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected a generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Header().Get(RequestIDHeader) != "abc-123" {
		t.Errorf("Expected inbound request id to be kept, got %q", rec.Header().Get(RequestIDHeader))
	}
}

type panickingStore struct {
	store.Store
}

func (panickingStore) List(transaction.Filter) []transaction.Transaction {
	panic("boom")
}

func TestPanicRecovery(t *testing.T) {
	guard := auth.NewGuard(auth.DefaultCredentials(), auth.GuardConfig{})
	env := &testEnv{server: NewServer(panickingStore{Store: memory.NewStore(memory.StoreConfig{}, nil)}, guard, DefaultServerConfig())}

	expectError(t, env.do(http.MethodGet, "/transactions", ""), http.StatusInternalServerError, "Internal server error")

	// the server keeps serving
	if w := env.do(http.MethodGet, "/transactions/1", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after recovery, got %d", w.Code)
	}
}

func TestRequestMetrics(t *testing.T) {
	env := newTestEnv(t)

	env.do(http.MethodGet, "/transactions/1", "")
	env.do(http.MethodGet, "/transactions/9/", "")
	env.do(http.MethodGet, "/nope", "")
	env.doWithAuth(http.MethodGet, "/transactions", "", "")

	requests := env.metrics.Snapshot().Requests
	if requests["GET /transactions/{id}"][200] != 1 || requests["GET /transactions/{id}"][404] != 1 {
		t.Errorf("Unexpected per-route counts: %v", requests["GET /transactions/{id}"])
	}
	if requests["GET unmatched"][404] != 1 {
		t.Errorf("Expected unmatched 404 to be counted, got %v", requests)
	}
	if requests["GET /transactions"][401] != 1 {
		t.Errorf("Expected 401 to be counted, got %v", requests["GET /transactions"])
	}
	if env.metrics.Snapshot().AuthFailures["missing"] != 1 {
		t.Errorf("Expected a missing-credentials failure, got %v", env.metrics.Snapshot().AuthFailures)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		desc   string
	}{
		{transaction.ErrNotFound, 404, "Transaction not found"},
		{transaction.ErrUnknownEndpoint, 404, "Invalid endpoint"},
		{transaction.ErrInvalidID, 400, "Invalid transaction ID format"},
		{transaction.ErrMalformedBody, 400, "Invalid JSON data"},
		{transaction.MissingField("sender"), 400, "Missing required field: sender"},
		{io.ErrUnexpectedEOF, 500, "Internal server error"},
	}

	for _, tt := range tests {
		status, desc := statusFor(tt.err)
		if status != tt.status || desc != tt.desc {
			t.Errorf("statusFor(%v) = (%d, %q), want (%d, %q)", tt.err, status, desc, tt.status, tt.desc)
		}
	}
}

func TestListenAndServe_Stop(t *testing.T) {
	config := DefaultServerConfig()
	config.Address = "127.0.0.1:0"
	srv := NewServer(memory.NewStore(memory.StoreConfig{}, nil), auth.NewGuard(auth.DefaultCredentials(), auth.GuardConfig{}), config)

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe() }()

	time.Sleep(20 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil after graceful shutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ListenAndServe did not return")
	}
}

func TestHandlerOverRealConnection(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/transactions", bytes.NewBufferString(
		`{"type":"deposit","amount":10,"sender":"a","receiver":"b","reference":"r"}`))
	req.Header.Set("Authorization", basicAuth("user", "user123"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	sent := env.sink.all()
	if len(sent) != 1 || sent[0].Actor != "user" {
		t.Errorf("Expected event attributed to user, got %+v", sent)
	}
}
