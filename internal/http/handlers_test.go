package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/synkhq/synk/internal/config"
	"github.com/synkhq/synk/internal/mail"
)

type fakeMailer struct {
	to   string
	msg  mail.Message
	err  error
	sent int
}

func (f *fakeMailer) Send(ctx context.Context, to string, msg mail.Message) error {
	f.sent++
	f.to = to
	f.msg = msg
	return f.err
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return body
}

func testRouter(mailer mail.Sender) http.Handler {
	cfg := &config.Config{SiteURL: "https://synk.example.com"}
	return NewRouter(cfg, mailer)
}

func TestWelcomeEmailSendsAndReportsSuccess(t *testing.T) {
	mailer := &fakeMailer{}
	rec := postJSON(t, testRouter(mailer), "/welcome-email", `{"email":"ada@example.com","firstName":"Ada"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["success"] != true {
		t.Errorf("body = %v", body)
	}
	if mailer.to != "ada@example.com" {
		t.Errorf("sent to %q", mailer.to)
	}
	if !strings.Contains(mailer.msg.Subject, "Ada") {
		t.Errorf("subject = %q", mailer.msg.Subject)
	}
	if !strings.Contains(mailer.msg.HTML, "https://synk.example.com/dashboard") {
		t.Error("message missing dashboard link")
	}
}

func TestWelcomeEmailMissingFields(t *testing.T) {
	for name, body := range map[string]string{
		"no email":      `{"firstName":"Ada"}`,
		"no first name": `{"email":"ada@example.com"}`,
		"not json":      `{`,
	} {
		t.Run(name, func(t *testing.T) {
			mailer := &fakeMailer{}
			rec := postJSON(t, testRouter(mailer), "/welcome-email", body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			resp := decodeBody(t, rec)
			if resp["error"] != "Email and firstName are required" {
				t.Errorf("error = %v", resp["error"])
			}
			if mailer.sent != 0 {
				t.Error("no mail should be sent for bad requests")
			}
		})
	}
}

func TestWelcomeEmailSendFailure(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	rec := postJSON(t, testRouter(mailer), "/welcome-email", `{"email":"ada@example.com","firstName":"Ada"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Failed to send welcome email" {
		t.Errorf("error = %v", body["error"])
	}
	if body["details"] != "smtp down" {
		t.Errorf("details = %v", body["details"])
	}
}

func TestTaskReminderEndpoint(t *testing.T) {
	mailer := &fakeMailer{}
	rec := postJSON(t, testRouter(mailer), "/task-reminder",
		`{"email":"ada@example.com","firstName":"Ada","taskTitle":"File taxes","dueDate":"April 15"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(mailer.msg.Subject, `"File taxes"`) {
		t.Errorf("subject = %q", mailer.msg.Subject)
	}
}

func TestTaskReminderRequiresAllFields(t *testing.T) {
	mailer := &fakeMailer{}
	rec := postJSON(t, testRouter(mailer), "/task-reminder", `{"email":"ada@example.com","firstName":"Ada"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if mailer.sent != 0 {
		t.Error("no mail should be sent for bad requests")
	}
}

func TestWeeklyDigestEndpoint(t *testing.T) {
	mailer := &fakeMailer{}
	rec := postJSON(t, testRouter(mailer), "/weekly-digest",
		`{"email":"ada@example.com","firstName":"Ada","stats":{"tasks":3,"notes":1,"files":0,"events":2}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(mailer.msg.Text, "3 tasks completed") {
		t.Errorf("text = %q", mailer.msg.Text)
	}
}

func TestHealthz(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	testRouter(&fakeMailer{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := &config.Config{SiteURL: "https://synk.example.com", CORSAllowedOrigin: "https://app.synk.example.com"}
	handler := NewRouter(cfg, &fakeMailer{})

	req := httptest.NewRequest(http.MethodOptions, "/welcome-email", nil)
	req.Header.Set("Origin", "https://app.synk.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.synk.example.com" {
		t.Errorf("allow-origin = %q", got)
	}
}
