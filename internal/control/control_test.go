package control_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skurt/geofence-monitor/internal/config"
	"github.com/skurt/geofence-monitor/internal/control"
	"github.com/skurt/geofence-monitor/internal/logging"
	"github.com/skurt/geofence-monitor/internal/render"
)

type fakeScheduler struct {
	silenceCalls []float64
	unsilenceRet bool
}

func (f *fakeScheduler) Silence(seconds float64) {
	f.silenceCalls = append(f.silenceCalls, seconds)
}

func (f *fakeScheduler) Unsilence() bool {
	return f.unsilenceRet
}

func newSurface(t *testing.T, sched *fakeScheduler) *control.ControlSurface {
	t.Helper()
	renderer, err := render.New()
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	cfg := config.Default()
	_, files, err := logging.New(t.TempDir()+"/test", config.LogLevelInfo)
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	return control.New(sched, cfg, files, renderer, logging.Nop{})
}

func newSurfaceWithLogging(t *testing.T, sched *fakeScheduler) (*control.ControlSurface, logging.Logger, *logging.Files) {
	t.Helper()
	renderer, err := render.New()
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	cfg := config.Default()
	logger, files, err := logging.New(t.TempDir()+"/test", config.LogLevelInfo)
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	return control.New(sched, cfg, files, renderer, logger), logger, files
}

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestOK(t *testing.T) {
	cs := newSurface(t, &fakeScheduler{})
	srv := httptest.NewServer(cs.Router())
	defer srv.Close()

	status, body := get(t, srv, "/ok")
	if status != http.StatusOK || body != "ok" {
		t.Errorf("status=%d body=%q, want 200 \"ok\"", status, body)
	}
}

func TestSilence_DefaultsToOneHour(t *testing.T) {
	sched := &fakeScheduler{}
	cs := newSurface(t, sched)
	srv := httptest.NewServer(cs.Router())
	defer srv.Close()

	status, _ := get(t, srv, "/silence")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(sched.silenceCalls) != 1 || sched.silenceCalls[0] != 3600 {
		t.Errorf("silenceCalls = %v, want [3600]", sched.silenceCalls)
	}
}

func TestSilence_ParsesCombinedDuration(t *testing.T) {
	sched := &fakeScheduler{}
	cs := newSurface(t, sched)
	srv := httptest.NewServer(cs.Router())
	defer srv.Close()

	get(t, srv, "/silence/1d2h3m4s")
	want := 1*86400.0 + 2*3600.0 + 3*60.0 + 4.0
	if len(sched.silenceCalls) != 1 || sched.silenceCalls[0] != want {
		t.Errorf("silenceCalls = %v, want [%v]", sched.silenceCalls, want)
	}
}

func TestSilence_InvalidDuration_Returns200WithMessage(t *testing.T) {
	sched := &fakeScheduler{}
	cs := newSurface(t, sched)
	srv := httptest.NewServer(cs.Router())
	defer srv.Close()

	status, body := get(t, srv, "/silence/notaduration")
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200 even for invalid input", status)
	}
	if !strings.Contains(body, "Invalid silence duration") {
		t.Errorf("body = %q, want an operator-visible error message", body)
	}
	if len(sched.silenceCalls) != 0 {
		t.Errorf("Scheduler.Silence must not be called on invalid input")
	}
}

func TestSilence_ZeroDuration_Accepted(t *testing.T) {
	sched := &fakeScheduler{}
	cs := newSurface(t, sched)
	srv := httptest.NewServer(cs.Router())
	defer srv.Close()

	status, _ := get(t, srv, "/silence/0s")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(sched.silenceCalls) != 1 || sched.silenceCalls[0] != 0 {
		t.Errorf("silenceCalls = %v, want [0]", sched.silenceCalls)
	}
}

func TestUnsilence_True(t *testing.T) {
	sched := &fakeScheduler{unsilenceRet: true}
	cs := newSurface(t, sched)
	srv := httptest.NewServer(cs.Router())
	defer srv.Close()

	status, body := get(t, srv, "/unsilence")
	if status != http.StatusOK || !strings.Contains(body, "Unsilenced") {
		t.Errorf("status=%d body=%q", status, body)
	}
}

func TestUnsilence_False(t *testing.T) {
	sched := &fakeScheduler{unsilenceRet: false}
	cs := newSurface(t, sched)
	srv := httptest.NewServer(cs.Router())
	defer srv.Close()

	status, body := get(t, srv, "/unsilence")
	if status != http.StatusOK || !strings.Contains(body, "Already unsilenced") {
		t.Errorf("status=%d body=%q", status, body)
	}
}

func TestArgs_ListsSortedEntries(t *testing.T) {
	cs := newSurface(t, &fakeScheduler{})
	srv := httptest.NewServer(cs.Router())
	defer srv.Close()

	status, body := get(t, srv, "/args")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	aliIdx := strings.Index(body, "alert_emails")
	monIdx := strings.Index(body, "monitor_name")
	if aliIdx < 0 || monIdx < 0 || aliIdx > monIdx {
		t.Errorf("body not sorted ascending by key:\n%s", body)
	}
}

func TestLogs_DefaultsToInfo(t *testing.T) {
	cs := newSurface(t, &fakeScheduler{})
	srv := httptest.NewServer(cs.Router())
	defer srv.Close()

	status, _ := get(t, srv, "/logs")
	if status != http.StatusOK {
		t.Errorf("status = %d", status)
	}
}

func TestLogs_InvalidLevel(t *testing.T) {
	cs := newSurface(t, &fakeScheduler{})
	srv := httptest.NewServer(cs.Router())
	defer srv.Close()

	status, body := get(t, srv, "/logs/trace")
	if status != http.StatusOK || !strings.Contains(body, "Invalid log level") {
		t.Errorf("status=%d body=%q", status, body)
	}
}

func TestKill_404WhenNoHookWired(t *testing.T) {
	cs := newSurface(t, &fakeScheduler{})
	srv := httptest.NewServer(cs.Router())
	defer srv.Close()

	status, _ := get(t, srv, "/kill")
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no shutdown hook is wired", status)
	}
}

func TestKill_InvokesHookWhenWired(t *testing.T) {
	cs := newSurface(t, &fakeScheduler{})
	called := make(chan struct{}, 1)
	cs.Kill = func() { called <- struct{}{} }
	srv := httptest.NewServer(cs.Router())
	defer srv.Close()

	status, _ := get(t, srv, "/kill")
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Error("Kill hook was not invoked")
	}
}

func TestLogStream_InvalidLevel(t *testing.T) {
	cs := newSurface(t, &fakeScheduler{})
	srv := httptest.NewServer(cs.Router())
	defer srv.Close()

	status, _ := get(t, srv, "/logs/stream/trace")
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an invalid stream level", status)
	}
}

func TestLogStream_PushesAppendedLines(t *testing.T) {
	cs, logger, files := newSurfaceWithLogging(t, &fakeScheduler{})
	srv := httptest.NewServer(cs.Router())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/logs/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing log stream: %v", err)
	}
	defer conn.Close()

	logger.Info("streamed line")
	files.Info.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !strings.Contains(string(msg), "streamed line") {
		t.Errorf("stream message = %q, want it to contain the newly appended line", msg)
	}
}
