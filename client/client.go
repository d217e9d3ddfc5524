package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LovationAdmin/expense-api/models"
)

// HTTPError is a non-2xx answer from the API.
type HTTPError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *HTTPError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("HTTP %d: %s (%s)", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an HTTPError with the given status.
func IsStatus(err error, status int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == status
}

// Client talks to the expense API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the API mounted at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Signup registers an account.
func (c *Client) Signup(ctx context.Context, email, password string) (*models.SignupResponse, error) {
	var resp models.SignupResponse
	body := models.AuthRequest{Action: models.ActionSignup, Email: email, Password: password}
	if err := c.doRequest(ctx, http.MethodPost, "/auth", "", body, &resp); err != nil {
		return nil, fmt.Errorf("client.Signup: %w", err)
	}
	return &resp, nil
}

// Signin exchanges credentials for a session.
func (c *Client) Signin(ctx context.Context, email, password string) (*models.Session, error) {
	var resp models.SigninResponse
	body := models.AuthRequest{Action: models.ActionSignin, Email: email, Password: password}
	if err := c.doRequest(ctx, http.MethodPost, "/auth", "", body, &resp); err != nil {
		return nil, fmt.Errorf("client.Signin: %w", err)
	}
	if resp.Session.AccessToken == "" {
		return nil, errors.New("client.Signin: response has no access token")
	}
	return &resp.Session, nil
}

// List returns the caller's transactions, newest first.
func (c *Client) List(ctx context.Context, token string) ([]models.Transaction, error) {
	txs := []models.Transaction{}
	if err := c.doRequest(ctx, http.MethodGet, "/transactions", token, nil, &txs); err != nil {
		return nil, fmt.Errorf("client.List: %w", err)
	}
	return txs, nil
}

// Create adds a transaction.
func (c *Client) Create(ctx context.Context, token string, req models.CreateTransactionRequest) (*models.Transaction, error) {
	var tx models.Transaction
	if err := c.doRequest(ctx, http.MethodPost, "/transactions", token, req, &tx); err != nil {
		return nil, fmt.Errorf("client.Create: %w", err)
	}
	return &tx, nil
}

// Delete removes a transaction. Deleting an id that does not exist, or
// that belongs to someone else, also succeeds.
func (c *Client) Delete(ctx context.Context, token string, id int64) error {
	body := map[string]int64{"id": id}
	if err := c.doRequest(ctx, http.MethodDelete, "/transactions", token, body, nil); err != nil {
		return fmt.Errorf("client.Delete: %w", err)
	}
	return nil
}

// Summary returns income, expense and balance totals.
func (c *Client) Summary(ctx context.Context, token string) (*models.Summary, error) {
	var s models.Summary
	if err := c.doRequest(ctx, http.MethodGet, "/transactions/summary", token, nil, &s); err != nil {
		return nil, fmt.Errorf("client.Summary: %w", err)
	}
	return &s, nil
}

func (c *Client) doRequest(ctx context.Context, method, path, token string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error, Details: apiErr.Details}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
