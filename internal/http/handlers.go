package httpserver

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/synkhq/synk/internal/mail"
	"github.com/synkhq/synk/internal/metrics"
)

// Handler serves the notifier's mail endpoints.
type Handler struct {
	mailer  mail.Sender
	siteURL string
}

func NewHandler(mailer mail.Sender, siteURL string) *Handler {
	return &Handler{mailer: mailer, siteURL: strings.TrimRight(siteURL, "/")}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WelcomeEmail sends the sign-up greeting. Responds 400 when either field is
// missing, 500 when delivery fails.
func (h *Handler) WelcomeEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.FirstName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Email and firstName are required",
		})
		return
	}

	err := h.mailer.Send(r.Context(), req.Email, mail.Welcome(req.FirstName, h.siteURL))
	metrics.CountMail("welcome", err)
	if err != nil {
		log.Printf("[ERROR] welcome email to %s: %v", req.Email, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to send welcome email",
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// TaskReminder sends a due-date nudge for one task.
func (h *Handler) TaskReminder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		TaskTitle string `json:"taskTitle"`
		DueDate   string `json:"dueDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.Email == "" || req.FirstName == "" || req.TaskTitle == "" || req.DueDate == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Email, firstName, taskTitle and dueDate are required",
		})
		return
	}

	err := h.mailer.Send(r.Context(), req.Email, mail.TaskReminder(req.FirstName, req.TaskTitle, req.DueDate, h.siteURL))
	metrics.CountMail("task_reminder", err)
	if err != nil {
		log.Printf("[ERROR] task reminder to %s: %v", req.Email, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to send task reminder",
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// WeeklyDigest sends the weekly activity summary.
func (h *Handler) WeeklyDigest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		Stats     struct {
			Tasks  int `json:"tasks"`
			Notes  int `json:"notes"`
			Files  int `json:"files"`
			Events int `json:"events"`
		} `json:"stats"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.FirstName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Email and firstName are required",
		})
		return
	}

	msg := mail.WeeklyDigest(req.FirstName, mail.DigestStats{
		Tasks:  req.Stats.Tasks,
		Notes:  req.Stats.Notes,
		Files:  req.Stats.Files,
		Events: req.Stats.Events,
	})
	err := h.mailer.Send(r.Context(), req.Email, msg)
	metrics.CountMail("weekly_digest", err)
	if err != nil {
		log.Printf("[ERROR] weekly digest to %s: %v", req.Email, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to send weekly digest",
			"details": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
