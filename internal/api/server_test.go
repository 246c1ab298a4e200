package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereceipt/printbridge/internal/command"
	"github.com/thereceipt/printbridge/internal/metrics"
	"github.com/thereceipt/printbridge/internal/printer"
	"github.com/thereceipt/printbridge/internal/registry"
	"github.com/thereceipt/printbridge/pkg/receiptformat"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// fakeConn records everything written to it
type fakeConn struct {
	mu      sync.Mutex
	written bytes.Buffer
}

func (c *fakeConn) Write(_ context.Context, data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written.Write(data)
}

func (c *fakeConn) Status(_ context.Context, q printer.StatusQuery) error {
	return q.Accept(0x12)
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.written.Bytes()...)
}

type testEnv struct {
	server  *Server
	store   *registry.Store
	conn    *fakeConn
	openErr error
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:api_%s?mode=memory&cache=shared", name)),
		&gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := registry.NewStore(db, zap.NewNop())
	require.NoError(t, store.Migrate(context.Background()))

	env := &testEnv{store: store, conn: &fakeConn{}}
	drv := printer.DriverFunc(func(_ context.Context, _ printer.Descriptor) (printer.PrinterConnection, error) {
		if env.openErr != nil {
			return nil, env.openErr
		}
		return env.conn, nil
	})
	drivers := printer.Drivers{
		registry.TransportUSB:     drv,
		registry.TransportNetwork: drv,
	}

	orchestrator := command.NewOrchestrator(store, nil, drivers, printer.NewLocks(), command.NewJobHistory(50),
		metrics.New(metrics.Config{ServiceName: "test"}), command.OrchestratorOptions{}, zap.NewNop())
	env.server = NewServer(store, orchestrator, metrics.New(metrics.Config{ServiceName: "test"}), zap.NewNop())
	t.Cleanup(func() { _ = env.server.Shutdown(context.Background()) })
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) createNetworkPrinter(t *testing.T, name string, isDefault bool) registry.Profile {
	t.Helper()
	w := e.do(t, http.MethodPost, "/printers", map[string]interface{}{
		"name":           name,
		"transportKind":  "NETWORK",
		"networkAddress": "10.0.0.5",
		"isDefault":      isDefault,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var p registry.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) command.PrintResult {
	t.Helper()
	var res command.PrintResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return res
}

func TestPrinterCRUD(t *testing.T) {
	env := newTestEnv(t)

	created := env.createNetworkPrinter(t, "Kitchen", false)
	assert.NotZero(t, created.ID)
	assert.Equal(t, registry.KindEpson, created.Kind)
	assert.Equal(t, 9100, created.NetworkPort)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/printers/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, fmt.Sprintf("/printers/%d", created.ID), map[string]interface{}{"name": "Bar"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated registry.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "Bar", updated.Name)
	assert.Equal(t, "10.0.0.5", updated.NetworkAddress)

	w = env.do(t, http.MethodGet, "/printers/default", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, fmt.Sprintf("/printers/%d/default", created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/printers/default", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var def registry.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &def))
	assert.Equal(t, created.ID, def.ID)

	w = env.do(t, http.MethodGet, "/printers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Printers []registry.Profile `json:"printers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Printers, 1)

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/printers/%d", created.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/printers/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodDelete, fmt.Sprintf("/printers/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPrinterErrors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/printers/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/printers", map[string]interface{}{"name": "X", "kind": "ZEBRA"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/printers", map[string]interface{}{"kind": "STAR"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/printers", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/printers/42/default", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPrintReceipt_NoPrinterConfigured(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/print-receipt", receiptformat.Sample())
	assert.Equal(t, http.StatusNotFound, w.Code)

	res := decodeResult(t, w)
	assert.False(t, res.Success)
	assert.Equal(t, command.MsgNoPrinter, res.Message)
}

func TestPrintReceipt_DefaultPrinter(t *testing.T) {
	env := newTestEnv(t)
	p := env.createNetworkPrinter(t, "Front", true)

	w := env.do(t, http.MethodPost, "/print-receipt", receiptformat.Sample())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decodeResult(t, w)
	assert.True(t, res.Success)
	assert.Equal(t, p.ID, res.PrinterID)
	assert.NotEmpty(t, res.JobID)
	assert.Contains(t, string(env.conn.Bytes()), "Test Store")
}

func TestPrintReceipt_ExplicitTarget(t *testing.T) {
	env := newTestEnv(t)
	env.createNetworkPrinter(t, "Front", true)
	other := env.createNetworkPrinter(t, "Back", false)

	body := map[string]interface{}{}
	raw, err := json.Marshal(receiptformat.Sample())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &body))
	body["printer_id"] = other.ID

	w := env.do(t, http.MethodPost, "/print-receipt", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, other.ID, decodeResult(t, w).PrinterID)

	body["printer_id"] = 999
	w = env.do(t, http.MethodPost, "/print-receipt", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPrintReceipt_InvalidPayload(t *testing.T) {
	env := newTestEnv(t)
	env.createNetworkPrinter(t, "Front", true)

	payload := receiptformat.Sample()
	payload.Items = nil

	w := env.do(t, http.MethodPost, "/print-receipt", payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, command.CodeInvalidPayload, decodeResult(t, w).Code)

	w = env.do(t, http.MethodPost, "/print-receipt", `{"items": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, decodeResult(t, w).Success)
}

func TestPrintReceipt_DeviceErrorIs503(t *testing.T) {
	env := newTestEnv(t)
	env.createNetworkPrinter(t, "Front", true)
	env.openErr = fmt.Errorf("%w: connection refused", printer.ErrUnreachable)

	w := env.do(t, http.MethodPost, "/print-receipt", receiptformat.Sample())
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	res := decodeResult(t, w)
	assert.False(t, res.Success)
	assert.Equal(t, printer.CodeUnreachable, res.Code)
}

func TestTestPrint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/test-print", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	p := env.createNetworkPrinter(t, "Front", false)

	w = env.do(t, http.MethodPost, "/test-print", map[string]interface{}{"printer_id": p.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decodeResult(t, w).Success)

	w = env.do(t, http.MethodPost, "/test-print", "{bad")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/receipts/preview?paper=58mm", receiptformat.Sample())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	invalid := receiptformat.Sample()
	invalid.StoreName = ""
	w = env.do(t, http.MethodPost, "/receipts/preview", invalid)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobs(t *testing.T) {
	env := newTestEnv(t)
	env.createNetworkPrinter(t, "Front", true)

	res := decodeResult(t, env.do(t, http.MethodPost, "/test-print", nil))
	require.True(t, res.Success)

	w := env.do(t, http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var jobs struct {
		Jobs []command.PrintJob `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	require.Len(t, jobs.Jobs, 1)
	assert.Equal(t, command.JobCompleted, jobs.Jobs[0].Status)

	w = env.do(t, http.MethodGet, "/job/"+res.JobID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/job/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCommand(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/command", map[string]string{"command": "printer add-network Bar 10.0.0.9"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/command", map[string]string{"command": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/command", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangesProfiles(t *testing.T) {
	assert.True(t, changesProfiles("printer add-network Bar 10.0.0.9"))
	assert.True(t, changesProfiles("printer default 2"))
	assert.False(t, changesProfiles("printer default"))
	assert.False(t, changesProfiles("printer list"))
	assert.False(t, changesProfiles("printer probe 2"))
	assert.False(t, changesProfiles("printer probe"))
	assert.False(t, changesProfiles("print test"))
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "printbridge_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodOptions, "/printers", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPrintStatus(t *testing.T) {
	cases := map[string]int{
		command.CodeNotFound:             http.StatusNotFound,
		command.CodeInvalidPayload:       http.StatusBadRequest,
		printer.CodeInvalidConfiguration: http.StatusBadRequest,
		printer.CodeUnsupportedTransport: http.StatusBadRequest,
		printer.CodeConnectionTimeout:    http.StatusServiceUnavailable,
		printer.CodeNotResponding:        http.StatusServiceUnavailable,
		printer.CodeTransmission:         http.StatusServiceUnavailable,
		command.CodePrinterBusy:          http.StatusServiceUnavailable,
		command.CodeInternal:             http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, printStatus(command.PrintResult{Code: code}), code)
	}
	assert.Equal(t, http.StatusOK, printStatus(command.PrintResult{Success: true}))
}

func readEvent(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_EventsAndPrint(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.server.Hub().Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	p := env.createNetworkPrinter(t, "Front", true)
	msg := readEvent(t, conn)
	assert.Equal(t, EventProfileChanged, msg.Event)
	assert.Equal(t, ActionCreated, msg.Data["action"])
	assert.EqualValues(t, p.ID, msg.Data["id"])

	require.NoError(t, conn.WriteJSON(WSMessage{
		Event: EventPrint,
		Data:  map[string]interface{}{"test": true},
	}))

	assert.Equal(t, EventPrintStarted, readEvent(t, conn).Event)
	assert.Equal(t, EventPrintFinished, readEvent(t, conn).Event)

	resp := readEvent(t, conn)
	assert.Equal(t, EventResponse, resp.Event)
	assert.Equal(t, true, resp.Data["success"])
	assert.EqualValues(t, p.ID, resp.Data["printer_id"])

	require.NoError(t, conn.WriteJSON(WSMessage{Event: "dance"}))
	errMsg := readEvent(t, conn)
	assert.Equal(t, EventError, errMsg.Event)
	assert.Contains(t, errMsg.Data["error"], "unknown event")
}

func TestHub_RemoveClosesSend(t *testing.T) {
	hub := NewHub(nil)
	client := &WSClient{send: make(chan WSMessage, 1)}

	hub.add(client)
	hub.Broadcast("x", nil)
	hub.Broadcast("y", nil) // buffer full, dropped
	assert.Equal(t, 1, hub.Count())

	hub.remove(client)
	hub.remove(client)
	assert.Equal(t, 0, hub.Count())

	msg, ok := <-client.send
	assert.True(t, ok)
	assert.Equal(t, "x", msg.Event)
	_, ok = <-client.send
	assert.False(t, ok)
}
