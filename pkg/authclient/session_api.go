package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// SessionAPI talks to the first-party session endpoints. The session
// credential itself never surfaces here; it rides in the cookie jar as an
// opaque blob.
type SessionAPI interface {
	CreateSession(ctx context.Context, idToken string) error
	VerifySession(ctx context.Context) (bool, error)
	DestroySession(ctx context.Context) error
}

type restSessionAPI struct {
	baseURL string
	client  *http.Client
}

// NewSessionAPI builds a client for the given base API URL. When no HTTP
// client is supplied, one with a cookie jar is created so the session cookie
// survives across calls.
func NewSessionAPI(baseURL string, client *http.Client) SessionAPI {
	if client == nil {
		jar, _ := cookiejar.New(nil)
		client = &http.Client{Timeout: 15 * time.Second, Jar: jar}
	}
	return &restSessionAPI{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

type sessionErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateSession exchanges an identity token for a session cookie.
func (s *restSessionAPI) CreateSession(ctx context.Context, idToken string) error {
	body, err := json.Marshal(map[string]string{"idToken": idToken})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/auth/session", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var errResp sessionErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&errResp)
	if errResp.Message != "" {
		return fmt.Errorf("%w: %s", ErrSessionRejected, errResp.Message)
	}
	if errResp.Error != "" {
		return fmt.Errorf("%w: %s", ErrSessionRejected, errResp.Error)
	}
	return fmt.Errorf("%w: status %d", ErrSessionRejected, resp.StatusCode)
}

// VerifySession reports whether the server confirms the current session.
// A 401 is a definite "no"; only transport faults surface as errors.
func (s *restSessionAPI) VerifySession(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/auth/verify-session", nil)
	if err != nil {
		return false, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusUnauthorized:
		return false, nil
	default:
		return false, fmt.Errorf("verify session: unexpected status %d", resp.StatusCode)
	}
}

// DestroySession clears the server-side session cookie.
func (s *restSessionAPI) DestroySession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/auth/logout", nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("destroy session: unexpected status %d", resp.StatusCode)
	}
	return nil
}
