package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/synkhq/synk/internal/remote"
)

// ErrFirstNameRequired rejects signups without a first name; the welcome
// email needs one.
var ErrFirstNameRequired = errors.New("first name is required")

// WelcomeNotifier posts to the notifier service's welcome-email endpoint.
type WelcomeNotifier struct {
	BaseURL string
	Client  *http.Client
}

func NewWelcomeNotifier(baseURL string) *WelcomeNotifier {
	return &WelcomeNotifier{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Send requests a welcome email. Callers on the signup path invoke it
// without waiting; a failure here never fails the signup.
func (n *WelcomeNotifier) Send(ctx context.Context, email, firstName string) error {
	body, err := json.Marshal(map[string]string{"email": email, "firstName": firstName})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.BaseURL+"/welcome-email", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("welcome email endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// SignUp creates the account and fires the welcome email in the background.
// Email failures are logged, never surfaced: the account exists either way.
func SignUp(ctx context.Context, auth remote.Auth, notifier *WelcomeNotifier, params remote.SignUpParams) (*remote.Session, error) {
	params.FirstName = strings.TrimSpace(params.FirstName)
	params.LastName = strings.TrimSpace(params.LastName)
	if params.FirstName == "" {
		return nil, ErrFirstNameRequired
	}

	session, err := auth.SignUp(ctx, params)
	if err != nil {
		return nil, err
	}

	if notifier != nil {
		go func(email, firstName string) {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := notifier.Send(ctx, email, firstName); err != nil {
				log.Printf("[WARN] welcome email failed: %v", err)
			}
		}(params.Email, params.FirstName)
	}

	return session, nil
}
