package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"switchyard/internal/dataset"
	"switchyard/internal/dispatch"
	"switchyard/internal/engine"
	"switchyard/internal/engines/cluster"
	"switchyard/internal/engines/local"
	"switchyard/internal/model"
	"switchyard/internal/probe"
	"switchyard/internal/selector"
	"switchyard/internal/store"
)

// stubProber returns a settable probe result so tests can steer selection
// without a live cluster endpoint.
type stubProber struct {
	mu  sync.Mutex
	res probe.Result
}

func (p *stubProber) Probe(context.Context) probe.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.res
}

func (p *stubProber) set(res probe.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.res = res
}

type testServer struct {
	ts     *httptest.Server
	prober *stubProber
	store  *store.SQLiteStore
}

func newTestServer(t *testing.T, engines ...engine.Engine) *testServer {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	reg := engine.NewRegistry()
	if len(engines) == 0 {
		engines = []engine.Engine{local.New()}
	}
	for _, e := range engines {
		if err := reg.Register(e); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	prober := &stubProber{}
	sel := selector.New(reg, prober, st, logger)
	disp := dispatch.NewDispatcher(sel, reg, st, logger)

	srv := NewServer(":0", st, reg, sel, disp, logger)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testServer{ts: ts, prober: prober, store: st}
}

func (s *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(s.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	resp, err := http.Post(s.ts.URL+path, "application/json", reader)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthzEndpoint(t *testing.T) {
	s := newTestServer(t)

	resp := s.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	payload := decode[map[string]string](t, resp)
	if payload["status"] != "ok" {
		t.Errorf("status field = %q, want ok", payload["status"])
	}
}

func TestDispatchHappyPath(t *testing.T) {
	s := newTestServer(t)

	resp := s.post(t, "/v1/dispatches", map[string]any{
		"operation": dataset.OpAggregate,
		"args": dataset.AggregateRequest{
			Rows:   []dataset.Row{{"amount": 2.0}, {"amount": 4.0}},
			Column: "amount",
			Func:   dataset.AggSum,
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	outcome := decode[dispatch.Outcome](t, resp)
	if outcome.EngineKind != model.KindLocal {
		t.Errorf("engine kind = %q, want local", outcome.EngineKind)
	}
	if outcome.Generation != 1 {
		t.Errorf("generation = %d, want 1", outcome.Generation)
	}

	var res dataset.AggregateResult
	if err := json.Unmarshal(outcome.Result, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Value != 6 {
		t.Errorf("sum = %v, want 6", res.Value)
	}

	// The dispatch is audited and readable back.
	resp = s.get(t, "/v1/dispatches/"+outcome.DispatchID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get dispatch status = %d, want 200", resp.StatusCode)
	}
	d := decode[model.Dispatch](t, resp)
	if d.Status != model.DispatchCompleted {
		t.Errorf("audited status = %q, want completed", d.Status)
	}
	if d.Operation != dataset.OpAggregate {
		t.Errorf("audited operation = %q", d.Operation)
	}
}

func TestDispatchUnsupportedOperation(t *testing.T) {
	s := newTestServer(t)

	resp := s.post(t, "/v1/dispatches", map[string]any{
		"operation": "dataset.join",
		"args":      map[string]any{},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	payload := decode[map[string]string](t, resp)
	if payload["error"] == "" {
		t.Error("422 response carries no error message")
	}
}

func TestDispatchBadRequests(t *testing.T) {
	s := newTestServer(t)

	resp := s.post(t, "/v1/dispatches", map[string]any{"args": map[string]any{}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing operation: status = %d, want 400", resp.StatusCode)
	}

	raw, err := http.Post(s.ts.URL+"/v1/dispatches", "application/json",
		bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer raw.Body.Close()
	if raw.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid body: status = %d, want 400", raw.StatusCode)
	}
}

func TestDispatchHandlerFailureSurfacesError(t *testing.T) {
	s := newTestServer(t)

	resp := s.post(t, "/v1/dispatches", map[string]any{
		"operation": dataset.OpAggregate,
		"args": dataset.AggregateRequest{
			Rows:   []dataset.Row{{"amount": 1.0}},
			Column: "amount",
			Func:   "median",
		},
	})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	payload := decode[map[string]string](t, resp)
	if payload["error"] == "" {
		t.Error("handler failure lost its error message")
	}
}

func TestDispatchNoEngineAvailable(t *testing.T) {
	s := newTestServer(t, cluster.New("", 0))

	resp := s.post(t, "/v1/dispatches", map[string]any{
		"operation": dataset.OpSort,
		"args":      dataset.SortRequest{Column: "x"},
	})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestGetDispatchNotFound(t *testing.T) {
	s := newTestServer(t)

	resp := s.get(t, "/v1/dispatches/01ARZ3NDEKTSV4RRFFQ69G5FAV")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListDispatches(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 3; i++ {
		resp := s.post(t, "/v1/dispatches", map[string]any{
			"operation": dataset.OpFilter,
			"args": dataset.FilterRequest{
				Rows: []dataset.Row{{"n": 1.0}}, Column: "n", Op: "eq", Value: 1.0,
			},
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("dispatch %d: status = %d", i, resp.StatusCode)
		}
	}

	resp := s.get(t, "/v1/dispatches?limit=2")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	list := decode[listDispatchesResponse](t, resp)
	if list.Total != 3 {
		t.Errorf("total = %d, want 3", list.Total)
	}
	if len(list.Dispatches) != 2 {
		t.Errorf("page size = %d, want 2", len(list.Dispatches))
	}
	if list.Limit != 2 || list.Offset != 0 {
		t.Errorf("limit/offset = %d/%d, want 2/0", list.Limit, list.Offset)
	}
}

func TestSelectionUnresolvedThenResolved(t *testing.T) {
	s := newTestServer(t)

	resp := s.get(t, "/v1/selection")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	sel := decode[selectionResponse](t, resp)
	if sel.Resolved {
		t.Error("selection resolved before any dispatch or reconfigure")
	}

	s.post(t, "/v1/dispatches", map[string]any{
		"operation": dataset.OpAggregate,
		"args": dataset.AggregateRequest{
			Rows: []dataset.Row{{"n": 1.0}}, Column: "n", Func: dataset.AggCount,
		},
	})

	resp = s.get(t, "/v1/selection")
	sel = decode[selectionResponse](t, resp)
	if !sel.Resolved || sel.Selection == nil {
		t.Fatal("selection still unresolved after a dispatch")
	}
	if sel.Selection.Kind != model.KindLocal {
		t.Errorf("selected kind = %q, want local", sel.Selection.Kind)
	}
}

func TestReconfigureSwitchesEngine(t *testing.T) {
	s := newTestServer(t, local.New(), cluster.New("http://cluster.internal:8265", 0))

	// Cluster unreachable at first: local wins.
	resp := s.post(t, "/v1/selection/reconfigure", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reconfigure status = %d, want 200", resp.StatusCode)
	}
	sel := decode[selectionResponse](t, resp)
	if sel.Selection.Kind != model.KindLocal {
		t.Errorf("kind = %q, want local while cluster is down", sel.Selection.Kind)
	}

	s.prober.set(probe.Result{EndpointConfigured: true, Reachable: true})

	resp = s.post(t, "/v1/selection/reconfigure", nil)
	sel = decode[selectionResponse](t, resp)
	if sel.Selection.Kind != model.KindDistributed {
		t.Errorf("kind = %q, want distributed once reachable", sel.Selection.Kind)
	}
	if sel.Selection.Generation != 2 {
		t.Errorf("generation = %d, want 2", sel.Selection.Generation)
	}

	resp = s.get(t, "/v1/selection/history")
	records := decode[[]*model.SelectionRecord](t, resp)
	if len(records) != 2 {
		t.Fatalf("history length = %d, want 2", len(records))
	}
	if records[0].Kind != model.KindDistributed || records[1].Kind != model.KindLocal {
		t.Errorf("history order = [%s %s], want newest first", records[0].Kind, records[1].Kind)
	}
}

func TestReconfigureEmptyRegistry(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	reg := engine.NewRegistry()
	sel := selector.New(reg, &stubProber{}, st, logger)
	disp := dispatch.NewDispatcher(sel, reg, st, logger)
	srv := httptest.NewServer(NewServer(":0", st, reg, sel, disp, logger).Router())
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/v1/selection/reconfigure", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestListEngines(t *testing.T) {
	s := newTestServer(t, local.New(), cluster.New("http://cluster.internal:8265", 0))

	resp := s.get(t, "/v1/engines")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	infos := decode[[]engine.Info](t, resp)
	if len(infos) != 2 {
		t.Fatalf("engines = %d, want 2", len(infos))
	}
	// Selection order: distributed outranks local.
	if infos[0].Kind != model.KindDistributed || infos[1].Kind != model.KindLocal {
		t.Errorf("order = [%s %s], want [distributed local]", infos[0].Kind, infos[1].Kind)
	}
	// No probe has run, so the distributed engine is not ready.
	if infos[0].Ready {
		t.Error("distributed engine ready before any probe")
	}
	if !infos[1].Ready {
		t.Error("local engine not ready")
	}
	if len(infos[1].Operations) != 3 {
		t.Errorf("local operations = %v, want the three dataset ops", infos[1].Operations)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t)

	s.post(t, "/v1/dispatches", map[string]any{
		"operation": dataset.OpAggregate,
		"args": dataset.AggregateRequest{
			Rows: []dataset.Row{{"n": 1.0}}, Column: "n", Func: dataset.AggSum,
		},
	})
	s.post(t, "/v1/dispatches", map[string]any{
		"operation": dataset.OpAggregate,
		"args": dataset.AggregateRequest{
			Rows: []dataset.Row{{"n": 1.0}}, Column: "n", Func: "median",
		},
	})

	resp := s.get(t, "/v1/stats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	stats := decode[statsResponse](t, resp)
	if stats.Total != 2 {
		t.Errorf("total = %d, want 2", stats.Total)
	}
	if stats.ByStatus[model.DispatchCompleted] != 1 || stats.ByStatus[model.DispatchFailed] != 1 {
		t.Errorf("by_status = %v, want one completed and one failed", stats.ByStatus)
	}
	if stats.ByEngine[model.KindLocal] != 2 {
		t.Errorf("by_engine = %v, want local:2", stats.ByEngine)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	resp := s.get(t, "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.Contains(body, []byte("switchyard_")) {
		t.Error("metrics output carries no switchyard series")
	}
}
