package notifier_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skurt/geofence-monitor/internal/notifier"
)

func TestMailgun_Send_PostsExpectedForm(t *testing.T) {
	var gotAuthUser, gotAuthPass string
	var gotSubject, gotTo, gotFrom, gotHTML string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		gotAuthUser, gotAuthPass, ok = r.BasicAuth()
		if !ok {
			t.Error("expected basic auth")
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		gotSubject = r.FormValue("subject")
		gotTo = r.FormValue("to")
		gotFrom = r.FormValue("from")
		gotHTML = r.FormValue("html")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := notifier.NewMailgun(srv.URL, "key-test")
	err := m.Send(context.Background(), notifier.Message{
		From:     "monitor@skurt.com",
		To:       []string{"a@x.com", "b@x.com"},
		Subject:  "Cars outside of geofences",
		HTMLBody: "<p>uh oh</p>",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotAuthUser != "api" || gotAuthPass != "key-test" {
		t.Errorf("basic auth = %q/%q, want api/key-test", gotAuthUser, gotAuthPass)
	}
	if gotSubject != "[ALERT] Cars outside of geofences" {
		t.Errorf("subject = %q, want [ALERT] prefix", gotSubject)
	}
	if gotTo != "a@x.com, b@x.com" {
		t.Errorf("to = %q", gotTo)
	}
	if gotFrom != "monitor@skurt.com" {
		t.Errorf("from = %q", gotFrom)
	}
	if gotHTML != "<p>uh oh</p>" {
		t.Errorf("html = %q", gotHTML)
	}
}

func TestMailgun_Send_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := notifier.NewMailgun(srv.URL, "key-test")
	err := m.Send(context.Background(), notifier.Message{To: []string{"a@x.com"}})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}
