package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Jackyzaz/motegao/internal/domain"
	"github.com/Jackyzaz/motegao/internal/executor"
	mockpub "github.com/Jackyzaz/motegao/internal/publisher/mock"
	"github.com/Jackyzaz/motegao/internal/repository"
	mockrepo "github.com/Jackyzaz/motegao/internal/repository/mock"
	"github.com/Jackyzaz/motegao/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	router   *gin.Engine
	store    *mockrepo.JobStore
	pub      *mockpub.MockPublisher
	signaler *mockrepo.CancelSignaler
	getJobUC *usecase.GetJobUsecase
}

func testTools() executor.Tools {
	return executor.Tools{
		PingPath:           "/bin/ping",
		NmapPath:           "/usr/bin/nmap",
		GobusterPath:       "/usr/bin/gobuster",
		SubdomainWordlists: map[int]string{1: "/w/dns.txt"},
		PathWordlists:      map[int]string{2: "/w/big.txt", 1: "/w/common.txt"},
	}
}

func setupTestRouter(t *testing.T, configure func(*RouterDeps)) *testEnv {
	t.Helper()

	store := mockrepo.NewJobStore()
	pub := mockpub.NewMockPublisher()
	signaler := &mockrepo.CancelSignaler{}
	logger := zap.NewNop()

	deps := RouterDeps{
		SubmitUC: usecase.NewSubmitJobUsecase(store, pub, logger),
		GetJobUC: usecase.NewGetJobUsecase(store, logger),
		CancelUC: usecase.NewCancelJobUsecase(store, signaler, logger),
		Tools:    testTools(),
		Health:   map[string]repository.Pinger{"store": store.Inner()},
		Logger:   logger,

		RateLimitPerMin: 1000,
		MaxBodyBytes:    1 << 16,
	}
	if configure != nil {
		configure(&deps)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return &testEnv{
		router:   NewRouter(ctx, deps),
		store:    store,
		pub:      pub,
		signaler: signaler,
		getJobUC: deps.GetJobUC,
	}
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	switch b := body.(type) {
	case nil:
		buf = &bytes.Buffer{}
	case string:
		buf = bytes.NewBufferString(b)
	default:
		jsonBody, _ := json.Marshal(b)
		buf = bytes.NewBuffer(jsonBody)
	}

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) submit(t *testing.T, path string, body any) domain.SubmitResponse {
	t.Helper()

	w := e.do(http.MethodPost, path, body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp domain.SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return resp
}

func TestSubmitHandler_Ping(t *testing.T) {
	env := setupTestRouter(t, nil)

	resp := env.submit(t, "/api/v1/commands/ping", map[string]any{"host": "10.0.0.1"})

	if resp.JobID == uuid.Nil {
		t.Error("expected non-empty job ID")
	}
	if resp.Status != domain.StatusPending {
		t.Errorf("expected status PENDING, got %s", resp.Status)
	}
	if len(env.pub.Published) != 1 {
		t.Fatalf("expected 1 published job, got %d", len(env.pub.Published))
	}
	if got := env.pub.Published[0].Spec.Ping.Host; got != "10.0.0.1" {
		t.Errorf("expected host 10.0.0.1, got %q", got)
	}
}

func TestSubmitHandler_NmapAppliesDefaults(t *testing.T) {
	env := setupTestRouter(t, nil)

	env.submit(t, "/api/v1/commands/nmap", map[string]any{
		"host":        "scanme.nmap.org",
		"options":     []string{"-sV"},
		"ports_range": []int{1, 1024},
	})

	spec := env.pub.Published[0].Spec
	if spec.Kind != domain.KindPortScan {
		t.Fatalf("expected kind port_scan, got %s", spec.Kind)
	}
	if spec.PortScan.TimingTemplate != domain.DefaultTimingTemplate {
		t.Errorf("expected default timing template, got %d", spec.PortScan.TimingTemplate)
	}
}

func TestSubmitHandler_SubdomainAliasRoute(t *testing.T) {
	env := setupTestRouter(t, nil)

	env.submit(t, "/api/v1/commands/subdomain_enum", map[string]any{"domain": "example.com"})
	env.submit(t, "/api/v1/commands/subdomain_dns_enum", map[string]any{"domain": "example.org"})

	if len(env.pub.Published) != 2 {
		t.Fatalf("expected 2 published jobs, got %d", len(env.pub.Published))
	}
	for _, msg := range env.pub.Published {
		if msg.Spec.Kind != domain.KindSubdomainEnum {
			t.Errorf("expected kind subdomain_enum, got %s", msg.Spec.Kind)
		}
	}
}

func TestSubmitHandler_InvalidSpecs(t *testing.T) {
	env := setupTestRouter(t, nil)

	tests := []struct {
		name string
		path string
		body any
	}{
		{"ping without host", "/api/v1/commands/ping", map[string]any{}},
		{"nmap disallowed option", "/api/v1/commands/nmap", map[string]any{"host": "h", "options": []string{"--script=evil"}}},
		{"nmap all ports with list", "/api/v1/commands/nmap", map[string]any{"host": "h", "all_ports": true, "ports_specific": []int{80}}},
		{"subdomain public suffix", "/api/v1/commands/subdomain_enum", map[string]any{"domain": "co.uk"}},
		{"path enum ftp scheme", "/api/v1/commands/path_enum", map[string]any{"url": "ftp://example.com"}},
		{"path enum too many threads", "/api/v1/commands/path_enum", map[string]any{"url": "https://example.com", "threads": 1000}},
		{"malformed json", "/api/v1/commands/ping", `{"host":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, tt.path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}

	if len(env.store.Creates) != 0 {
		t.Errorf("invalid submissions must not create jobs, got %d", len(env.store.Creates))
	}
	if len(env.pub.Published) != 0 {
		t.Errorf("invalid submissions must not be published, got %d", len(env.pub.Published))
	}
}

func TestSubmitHandler_PublishFailure(t *testing.T) {
	env := setupTestRouter(t, nil)
	env.pub.PublishFn = func(context.Context, *domain.JobMessage) error {
		return errors.New("amqp: channel closed")
	}

	w := env.do(http.MethodPost, "/api/v1/commands/ping", map[string]any{"host": "10.0.0.1"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d: %s", w.Code, w.Body.String())
	}

	if len(env.store.Creates) != 1 {
		t.Fatalf("expected 1 created job, got %d", len(env.store.Creates))
	}
	st, err := env.store.Read(context.Background(), env.store.Creates[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if st.Status != domain.StatusFailed {
		t.Errorf("expected undispatched job to be FAILED, got %s", st.Status)
	}
}

func TestGetByIDHandler_Success(t *testing.T) {
	env := setupTestRouter(t, nil)

	resp := env.submit(t, "/api/v1/commands/ping", map[string]any{"host": "10.0.0.1"})

	w := env.do(http.MethodGet, "/api/v1/commands/"+resp.JobID.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var job domain.JobState
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("failed to unmarshal job: %v", err)
	}
	if job.JobID != resp.JobID {
		t.Errorf("expected job ID %s, got %s", resp.JobID, job.JobID)
	}
	if job.Status != domain.StatusPending {
		t.Errorf("expected status PENDING, got %s", job.Status)
	}
	if job.Kind != domain.KindPing {
		t.Errorf("expected kind ping, got %s", job.Kind)
	}
}

func TestGetByIDHandler_NotFound(t *testing.T) {
	env := setupTestRouter(t, nil)

	w := env.do(http.MethodGet, "/api/v1/commands/00000000-0000-0000-0000-000000000001", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetByIDHandler_InvalidUUID(t *testing.T) {
	env := setupTestRouter(t, nil)

	w := env.do(http.MethodGet, "/api/v1/commands/not-a-uuid", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCancelHandler_PendingJob(t *testing.T) {
	env := setupTestRouter(t, nil)

	resp := env.submit(t, "/api/v1/commands/path_enum", map[string]any{"url": "https://example.com"})

	w := env.do(http.MethodPost, "/api/v1/commands/"+resp.JobID.String()+"/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var job domain.JobState
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("failed to unmarshal job: %v", err)
	}
	if job.Status != domain.StatusCancelled {
		t.Errorf("expected status CANCELLED, got %s", job.Status)
	}
	if env.signaler.CallCount() != 1 {
		t.Errorf("expected 1 cancel signal, got %d", env.signaler.CallCount())
	}

	// A second cancel is idempotent and sends no further signal.
	w = env.do(http.MethodPost, "/api/v1/commands/"+resp.JobID.String()+"/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if env.signaler.CallCount() != 1 {
		t.Errorf("expected no extra cancel signal, got %d", env.signaler.CallCount())
	}
}

func TestCancelHandler_NotFound(t *testing.T) {
	env := setupTestRouter(t, nil)

	w := env.do(http.MethodPost, "/api/v1/commands/"+uuid.NewString()+"/cancel", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestToolsHandler(t *testing.T) {
	env := setupTestRouter(t, nil)

	w := env.do(http.MethodGet, "/api/v1/tools", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string][]domain.ToolInfo
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	tools := resp["tools"]
	if len(tools) != 4 {
		t.Fatalf("expected 4 tools, got %d", len(tools))
	}
	if tools[1].Tool != "nmap" || len(tools[1].Options) != len(domain.AllowedScanOptions) {
		t.Errorf("unexpected nmap entry: %+v", tools[1])
	}
	if got := tools[3].Wordlists; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("expected sorted path wordlist selectors [1 2], got %v", got)
	}
}

func TestHealthHandler(t *testing.T) {
	env := setupTestRouter(t, nil)

	w := env.do(http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	down := setupTestRouter(t, func(d *RouterDeps) {
		d.Health["redis"] = pingerFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") })
	})
	w = down.do(http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"redis":"unavailable"`) {
		t.Errorf("expected redis to be reported unavailable: %s", w.Body.String())
	}
}

func TestRateLimiter(t *testing.T) {
	env := setupTestRouter(t, func(d *RouterDeps) { d.RateLimitPerMin = 1 })

	env.submit(t, "/api/v1/commands/ping", map[string]any{"host": "10.0.0.1"})

	w := env.do(http.MethodPost, "/api/v1/commands/ping", map[string]any{"host": "10.0.0.1"})
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Maximum 1 requests") {
		t.Errorf("expected limit in message: %s", w.Body.String())
	}

	// Reads are not limited.
	w = env.do(http.MethodGet, "/api/v1/commands/"+uuid.NewString(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestBodySizeLimit(t *testing.T) {
	env := setupTestRouter(t, func(d *RouterDeps) { d.MaxBodyBytes = 32 })

	w := env.do(http.MethodPost, "/api/v1/commands/ping", map[string]any{"host": strings.Repeat("a", 64)})
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := setupTestRouter(t, nil)

	w := env.do(http.MethodGet, "/api/v1/tools", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestWebSocketStream_PushesUntilTerminal(t *testing.T) {
	env := setupTestRouter(t, nil)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	resp := env.submit(t, "/api/v1/commands/subdomain_enum", map[string]any{"domain": "example.com"})
	ctx := context.Background()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/commands/" + resp.JobID.String() + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first domain.JobState
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first state: %v", err)
	}
	if first.Status != domain.StatusPending {
		t.Errorf("expected first state PENDING, got %s", first.Status)
	}

	done := &domain.JobState{
		Status:   domain.StatusSucceeded,
		Progress: 100,
		Result:   domain.JobResult{Subdomains: []string{"www.example.com"}},
	}
	if err := env.store.Write(ctx, resp.JobID, done); err != nil {
		t.Fatalf("write: %v", err)
	}

	var last domain.JobState
	for last.Status != domain.StatusSucceeded {
		if err := conn.ReadJSON(&last); err != nil {
			t.Fatalf("read state: %v", err)
		}
	}
	if len(last.Result.Subdomains) != 1 {
		t.Errorf("expected final result to be pushed, got %+v", last.Result)
	}

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close after terminal state, got %v", err)
	}
}

func TestWebSocketStream_UnknownJob(t *testing.T) {
	env := setupTestRouter(t, nil)

	w := env.do(http.MethodGet, "/api/v1/commands/"+uuid.NewString()+"/stream", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}
