package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/LovationAdmin/expense-api/models"
)

// SupabaseConfig points at a hosted auth (GoTrue) + REST (PostgREST) pair.
type SupabaseConfig struct {
	URL string
	// AnonKey is used for the public signup/token endpoints.
	AnonKey string
	// ServiceKey is used for admin user creation and table access.
	ServiceKey string
	Table      string
	Timeout    time.Duration
}

// upstreamError is a non-2xx answer from GoTrue or PostgREST.
type upstreamError struct {
	Status  int
	Code    string
	Message string
}

func (e *upstreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

type supabaseClient struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
}

func newSupabaseClient(cfg SupabaseConfig) *supabaseClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	anon := cfg.AnonKey
	if anon == "" {
		anon = cfg.ServiceKey
	}
	return &supabaseClient{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		anonKey:    anon,
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type request struct {
	method string
	path   string
	query  url.Values
	apiKey string
	bearer string
	prefer string
	body   any
	out    any
}

func (c *supabaseClient) do(ctx context.Context, r request) error {
	var reqBody io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("apikey", r.apiKey)
	bearer := r.bearer
	if bearer == "" {
		bearer = r.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeUpstreamError(resp)
	}

	if r.out != nil {
		if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// decodeUpstreamError understands both GoTrue shapes ({msg,error_code} and
// {error,error_description}) and PostgREST's {code,message}.
func decodeUpstreamError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var payload struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorCode        string `json:"error_code"`
		Code             any    `json:"code"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(body, &payload)

	e := &upstreamError{Status: resp.StatusCode}
	switch {
	case payload.ErrorCode != "":
		e.Code = payload.ErrorCode
	case payload.Error != "":
		e.Code = payload.Error
	default:
		if s, ok := payload.Code.(string); ok {
			e.Code = s
		}
	}
	for _, m := range []string{payload.Msg, payload.Message, payload.ErrorDescription, payload.Error} {
		if m != "" {
			e.Message = m
			break
		}
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

// ============================================================================
// IDENTITY (GoTrue)
// ============================================================================

// SupabaseIdentity delegates accounts and sessions to Supabase Auth.
type SupabaseIdentity struct {
	client *supabaseClient
}

func NewSupabaseIdentity(cfg SupabaseConfig) *SupabaseIdentity {
	return &SupabaseIdentity{client: newSupabaseClient(cfg)}
}

type goTrueUser struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (u goTrueUser) toModel() *models.User {
	user := &models.User{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
	if u.EmailConfirmedAt != nil && !u.EmailConfirmedAt.IsZero() {
		t := u.EmailConfirmedAt.UTC()
		user.EmailConfirmed = true
		user.EmailConfirmedAt = &t
	}
	return user
}

func (p *SupabaseIdentity) CreateUser(ctx context.Context, email, password string, autoConfirm bool) (*models.User, error) {
	const op = "supabase.CreateUser"

	if autoConfirm {
		var u goTrueUser
		err := p.client.do(ctx, request{
			method: http.MethodPost,
			path:   "/auth/v1/admin/users",
			apiKey: p.client.serviceKey,
			body: map[string]any{
				"email":         email,
				"password":      password,
				"email_confirm": true,
			},
			out: &u,
		})
		if err != nil {
			return nil, classifyAuthError(op, err)
		}
		return u.toModel(), nil
	}

	// Public signup triggers Supabase's own confirmation mail. The response
	// is either a bare user or {user, session} when the project auto-confirms.
	var raw json.RawMessage
	err := p.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		apiKey: p.client.anonKey,
		body:   map[string]any{"email": email, "password": password},
		out:    &raw,
	})
	if err != nil {
		return nil, classifyAuthError(op, err)
	}

	var wrapped struct {
		User *goTrueUser `json:"user"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && wrapped.User != nil {
		return wrapped.User.toModel(), nil
	}
	var u goTrueUser
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, providerError(op, fmt.Errorf("decode signup response: %w", err))
	}
	return u.toModel(), nil
}

func (p *SupabaseIdentity) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	const op = "supabase.SignInWithPassword"

	var resp struct {
		AccessToken  string     `json:"access_token"`
		TokenType    string     `json:"token_type"`
		ExpiresIn    int64      `json:"expires_in"`
		ExpiresAt    int64      `json:"expires_at"`
		RefreshToken string     `json:"refresh_token"`
		User         goTrueUser `json:"user"`
	}
	err := p.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		apiKey: p.client.anonKey,
		body:   map[string]any{"email": email, "password": password},
		out:    &resp,
	})
	if err != nil {
		return nil, classifyAuthError(op, err)
	}
	if resp.AccessToken == "" {
		return nil, providerError(op, fmt.Errorf("token response has no access_token"))
	}

	return &models.Session{
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
		ExpiresAt:    resp.ExpiresAt,
		RefreshToken: resp.RefreshToken,
		User:         *resp.User.toModel(),
	}, nil
}

func (p *SupabaseIdentity) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	const op = "supabase.GetUser"

	var u goTrueUser
	err := p.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/auth/v1/user",
		apiKey: p.client.anonKey,
		bearer: accessToken,
		out:    &u,
	})
	if err != nil {
		// GoTrue answers 401 or 403 for a bad JWT and 404 once the user is gone.
		if ue, ok := err.(*upstreamError); ok {
			switch ue.Status {
			case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
				return nil, authError(op, "Invalid or expired token", err)
			}
		}
		return nil, providerError(op, err)
	}
	return u.toModel(), nil
}

func classifyAuthError(op string, err error) error {
	ue, ok := err.(*upstreamError)
	if !ok {
		return providerError(op, err)
	}

	msg := strings.ToLower(ue.Message)
	switch {
	case ue.Code == "email_exists" || ue.Code == "user_already_exists" ||
		strings.Contains(msg, "already registered") || strings.Contains(msg, "already been registered"):
		return conflictError(op, "User already registered", err)
	case ue.Code == "email_not_confirmed" || strings.Contains(msg, "email not confirmed"):
		return credentialsError(op, "Email not confirmed", err)
	case ue.Code == "invalid_credentials" || ue.Code == "invalid_grant":
		return credentialsError(op, "Invalid login credentials", err)
	case ue.Code == "weak_password" || ue.Code == "validation_failed" || ue.Status == http.StatusUnprocessableEntity:
		return &Error{Kind: KindValidation, Op: op, Message: RedactSecrets(ue.Message), Err: err}
	default:
		return providerError(op, err)
	}
}

// ============================================================================
// DATA (PostgREST)
// ============================================================================

// RestStore keeps transactions in a PostgREST-exposed table. Every query
// carries an explicit user_id filter.
type RestStore struct {
	client *supabaseClient
	table  string
}

func NewRestStore(cfg SupabaseConfig) *RestStore {
	table := cfg.Table
	if table == "" {
		table = "transactions"
	}
	return &RestStore{client: newSupabaseClient(cfg), table: table}
}

const transactionColumns = "id,user_id,description,amount,type,category,created_at"

func (s *RestStore) path() string { return "/rest/v1/" + url.PathEscape(s.table) }

func (s *RestStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Transaction, error) {
	txs := []models.Transaction{}
	err := s.client.do(ctx, request{
		method: http.MethodGet,
		path:   s.path(),
		query: url.Values{
			"select":  {transactionColumns},
			"user_id": {"eq." + ownerID},
			"order":   {"created_at.desc,id.desc"},
		},
		apiKey: s.client.serviceKey,
		out:    &txs,
	})
	if err != nil {
		return nil, providerError("rest.ListByOwner", err)
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return txs, nil
}

func (s *RestStore) Insert(ctx context.Context, tx models.Transaction) (*models.Transaction, error) {
	var rows []models.Transaction
	err := s.client.do(ctx, request{
		method: http.MethodPost,
		path:   s.path(),
		query:  url.Values{"select": {transactionColumns}},
		apiKey: s.client.serviceKey,
		prefer: "return=representation",
		body: map[string]any{
			"user_id":     tx.UserID,
			"description": tx.Description,
			"amount":      tx.Amount,
			"type":        tx.Type,
			"category":    tx.Category,
		},
		out: &rows,
	})
	if err != nil {
		return nil, providerError("rest.Insert", err)
	}
	if len(rows) == 0 {
		return nil, providerError("rest.Insert", fmt.Errorf("insert returned no rows"))
	}
	return &rows[0], nil
}

func (s *RestStore) DeleteOwned(ctx context.Context, id int64, ownerID string) (int64, error) {
	var rows []struct {
		ID int64 `json:"id"`
	}
	err := s.client.do(ctx, request{
		method: http.MethodDelete,
		path:   s.path(),
		query: url.Values{
			"id":      {"eq." + strconv.FormatInt(id, 10)},
			"user_id": {"eq." + ownerID},
			"select":  {"id"},
		},
		apiKey: s.client.serviceKey,
		prefer: "return=representation",
		out:    &rows,
	})
	if err != nil {
		return 0, providerError("rest.DeleteOwned", err)
	}
	return int64(len(rows)), nil
}
