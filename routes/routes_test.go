package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/LovationAdmin/expense-api/app"
	"github.com/LovationAdmin/expense-api/config"
	"github.com/LovationAdmin/expense-api/models"
	"github.com/LovationAdmin/expense-api/routes"
)

type APITestSuite struct {
	suite.Suite
	app     *app.App
	cleanup func()
}

func TestAPI(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func (s *APITestSuite) SetupTest() {
	cfg := &config.Config{
		Port:        "8080",
		Environment: "test",
		GinMode:     gin.TestMode,
		PublicURL:   "http://localhost:8080",
		Database:    config.DatabaseConfig{URL: filepath.Join(s.T().TempDir(), "api.db")},
		Auth: config.AuthConfig{
			Provider:           config.BackendLocal,
			ConfirmationPolicy: "auto",
			JWTSecret:          "routes-test-secret-0123456789",
			AccessTTL:          time.Hour,
		},
		RateLimit: config.RateLimitConfig{Requests: 0, Window: time.Minute},
	}

	a, cleanup, err := app.New(context.Background(), cfg, zap.NewNop())
	s.Require().NoError(err)
	s.app = a
	s.cleanup = cleanup
}

func (s *APITestSuite) TearDownTest() {
	s.cleanup()
}

func (s *APITestSuite) do(method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.app.Router.ServeHTTP(w, req)
	return w
}

func (s *APITestSuite) errorOf(w *httptest.ResponseRecorder) string {
	var body struct {
		Error string `json:"error"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error
}

// signedIn registers email and returns its id and access token.
func (s *APITestSuite) signedIn(email string) (string, string) {
	w := s.do(http.MethodPost, "/auth", `{"action":"signup","email":"`+email+`","password":"secret1"}`, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/auth", `{"action":"signin","email":"`+email+`","password":"secret1"}`, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp models.SigninResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.User.ID, resp.Session.AccessToken
}

func (s *APITestSuite) list(token string) []models.Transaction {
	w := s.do(http.MethodGet, "/transactions", "", token)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var txs []models.Transaction
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &txs))
	return txs
}

func (s *APITestSuite) TestSignupAndSignin() {
	w := s.do(http.MethodPost, "/auth", `{"action":"signup","email":"a@x.com","password":"secret1"}`, "")
	s.Equal(http.StatusOK, w.Code)

	var signup models.SignupResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &signup))
	s.True(signup.Success)
	s.Equal("User created successfully", signup.Message)
	s.False(signup.NeedsConfirmation)
	s.NotEmpty(signup.User.ID)
	s.Equal("a@x.com", signup.User.Email)

	w = s.do(http.MethodPost, "/auth", `{"action":"signin","email":"a@x.com","password":"secret1"}`, "")
	s.Equal(http.StatusOK, w.Code)

	var signin models.SigninResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &signin))
	s.True(signin.Success)
	s.NotEmpty(signin.Session.AccessToken)
	s.Equal(signup.User.ID, signin.User.ID)
	s.NotContains(w.Body.String(), "password")
}

func (s *APITestSuite) TestAuthFailures() {
	s.signedIn("a@x.com")

	tests := []struct {
		name string
		body string
		want string
	}{
		{"duplicate", `{"action":"signup","email":"a@x.com","password":"secret1"}`, "User already registered"},
		{"wrong password", `{"action":"signin","email":"a@x.com","password":"secret2"}`, "Invalid login credentials"},
		{"unknown user", `{"action":"signin","email":"b@x.com","password":"secret1"}`, "Invalid login credentials"},
		{"invalid json", `{"action":`, "Invalid JSON in request body"},
		{"empty body", ``, "Invalid JSON in request body"},
		{"unknown action", `{"action":"reset","email":"a@x.com","password":"secret1"}`, "Invalid action"},
		{"missing action", `{"email":"a@x.com","password":"secret1"}`, "Invalid action"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.do(http.MethodPost, "/auth", tt.body, "")
			s.Equal(http.StatusBadRequest, w.Code)
			s.Equal(tt.want, s.errorOf(w))
		})
	}
}

func (s *APITestSuite) TestPreflightAndMethods() {
	for _, path := range []string{"/auth", "/transactions", "/.netlify/functions/auth", "/.netlify/functions/transactions"} {
		s.Run("options "+path, func() {
			w := s.do(http.MethodOptions, path, "", "")
			s.Equal(http.StatusOK, w.Code)
			s.Empty(w.Body.String())
			s.Equal("*", w.Header().Get("Access-Control-Allow-Origin"))
			s.Contains(w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
		})
	}

	s.Run("browser preflight", func() {
		req := httptest.NewRequest(http.MethodOptions, "/transactions", nil)
		req.Header.Set("Origin", "https://tracker.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
		req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
		w := httptest.NewRecorder()
		s.app.Router.ServeHTTP(w, req)

		s.Equal(http.StatusOK, w.Code)
		s.Empty(w.Body.String())
		s.Contains(w.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
	})

	notAllowed := []struct{ method, path string }{
		{http.MethodGet, "/auth"},
		{http.MethodPut, "/auth"},
		{http.MethodPut, "/transactions"},
		{http.MethodPatch, "/transactions"},
		{http.MethodPut, "/.netlify/functions/transactions"},
	}
	for _, tt := range notAllowed {
		s.Run(tt.method+" "+tt.path, func() {
			w := s.do(tt.method, tt.path, "", "")
			s.Equal(http.StatusMethodNotAllowed, w.Code)
			s.Equal("Method not allowed", s.errorOf(w))
			s.Equal("*", w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func (s *APITestSuite) TestBearerRequired() {
	w := s.do(http.MethodGet, "/transactions", "", "")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("No authentication token provided", s.errorOf(w))

	w = s.do(http.MethodGet, "/transactions", "", "not-a-token")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("Invalid or expired token", s.errorOf(w))

	w = s.do(http.MethodPost, "/transactions", `{"description":"x","amount":1,"type":"income"}`, "")
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodDelete, "/transactions", `{"id":1}`, "")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *APITestSuite) TestCreateListDelete() {
	userID, token := s.signedIn("a@x.com")

	s.Empty(s.list(token))
	s.Equal("[]", strings.TrimSpace(s.do(http.MethodGet, "/transactions", "", token).Body.String()))

	w := s.do(http.MethodPost, "/transactions",
		`{"description":"Coffee","amount":15000,"type":"expense","category":"food","user_id":"someone-else"}`, token)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var created models.Transaction
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &created))
	s.Positive(created.ID)
	s.Equal(userID, created.UserID)
	s.Equal(15000.0, created.Amount)
	s.Equal("food", created.Category)
	s.False(created.CreatedAt.IsZero())

	w = s.do(http.MethodPost, "/transactions", `{"description":"Salary","amount":"5000000","type":"income"}`, token)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	txs := s.list(token)
	s.Require().Len(txs, 2)
	s.Equal("Salary", txs[0].Description)
	s.Equal("other", txs[0].Category)
	s.Equal("Coffee", txs[1].Description)

	w = s.do(http.MethodDelete, "/transactions", `{"id":"`+jsonID(created.ID)+`"}`, token)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"success":true,"message":"Transaction deleted"}`, w.Body.String())

	txs = s.list(token)
	s.Require().Len(txs, 1)
	s.Equal("Salary", txs[0].Description)

	w = s.do(http.MethodDelete, "/transactions", `{"id":`+jsonID(created.ID)+`}`, token)
	s.Equal(http.StatusOK, w.Code, "deleting again is not an error")
}

func (s *APITestSuite) TestOwnerIsolation() {
	_, tokenA := s.signedIn("a@x.com")
	_, tokenB := s.signedIn("b@x.com")

	w := s.do(http.MethodPost, "/transactions", `{"description":"Rent","amount":700,"type":"expense"}`, tokenA)
	s.Require().Equal(http.StatusOK, w.Code)
	var tx models.Transaction
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &tx))

	s.Empty(s.list(tokenB))

	w = s.do(http.MethodDelete, "/transactions", `{"id":`+jsonID(tx.ID)+`}`, tokenB)
	s.Equal(http.StatusOK, w.Code)
	s.Len(s.list(tokenA), 1, "B cannot delete A's row")
}

func (s *APITestSuite) TestLedgerValidation() {
	_, token := s.signedIn("a@x.com")

	tests := []struct {
		name   string
		method string
		body   string
		want   string
	}{
		{"missing fields", http.MethodPost, `{"description":"x"}`, "Missing required fields: description, amount, type"},
		{"negative amount", http.MethodPost, `{"description":"x","amount":-5,"type":"expense"}`, "Amount must be a positive number"},
		{"zero amount", http.MethodPost, `{"description":"x","amount":0,"type":"expense"}`, "Amount must be a positive number"},
		{"text amount", http.MethodPost, `{"description":"x","amount":"lots","type":"expense"}`, "Amount must be a positive number"},
		{"bad type", http.MethodPost, `{"description":"x","amount":5,"type":"gift"}`, "Type must be 'income' or 'expense'"},
		{"bad json", http.MethodPost, `{"description":`, "Invalid JSON in request body"},
		{"empty create body", http.MethodPost, ``, "Invalid JSON in request body"},
		{"bad delete json", http.MethodDelete, `{"id":`, "Invalid JSON in request body"},
		{"missing id", http.MethodDelete, `{}`, "Transaction ID required"},
		{"bad id", http.MethodDelete, `{"id":"abc"}`, "Transaction ID must be a positive integer"},
		{"negative id", http.MethodDelete, `{"id":-1}`, "Transaction ID must be a positive integer"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.do(tt.method, "/transactions", tt.body, token)
			s.Equal(http.StatusBadRequest, w.Code)
			s.Equal(tt.want, s.errorOf(w))
		})
	}
	s.Empty(s.list(token))
}

func (s *APITestSuite) TestServerlessPrefix() {
	w := s.do(http.MethodPost, "/.netlify/functions/auth", `{"action":"signup","email":"n@x.com","password":"secret1"}`, "")
	s.Require().Equal(http.StatusOK, w.Code)
	w = s.do(http.MethodPost, "/.netlify/functions/auth", `{"action":"signin","email":"n@x.com","password":"secret1"}`, "")
	s.Require().Equal(http.StatusOK, w.Code)

	var signin models.SigninResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &signin))
	token := signin.Session.AccessToken

	w = s.do(http.MethodPost, "/.netlify/functions/transaction", `{"description":"Tea","amount":3,"type":"expense"}`, token)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/.netlify/functions/transactions", "", token)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "Tea")
	s.Len(s.list(token), 1)
}

func (s *APITestSuite) TestSummaryAndHealth() {
	_, token := s.signedIn("a@x.com")
	s.do(http.MethodPost, "/transactions", `{"description":"Salary","amount":1000,"type":"income"}`, token)
	s.do(http.MethodPost, "/transactions", `{"description":"Bus","amount":0.3,"type":"expense"}`, token)

	w := s.do(http.MethodGet, "/transactions/summary", "", token)
	s.Require().Equal(http.StatusOK, w.Code)
	var summary models.Summary
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &summary))
	s.Equal(models.Summary{Income: 1000, Expense: 0.3, Balance: 999.7, Count: 2}, summary)

	w = s.do(http.MethodGet, "/health", "", "")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"status":"healthy"`)
	s.Contains(w.Body.String(), app.Version)
}

func (s *APITestSuite) TestChangeNotifications() {
	_, token := s.signedIn("a@x.com")
	_, other := s.signedIn("b@x.com")

	srv := httptest.NewServer(s.app.Router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/transactions?access_token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	s.Require().NoError(err)
	defer conn.Close()

	s.Require().Eventually(func() bool { return s.app.WS.M.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Another user's write must not reach this socket.
	s.do(http.MethodPost, "/transactions", `{"description":"B","amount":1,"type":"income"}`, other)
	s.do(http.MethodPost, "/transactions", `{"description":"A","amount":1,"type":"income"}`, token)

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, data, err := conn.ReadMessage()
	s.Require().NoError(err)
	s.JSONEq(`{"type":"transactions_changed","action":"created"}`, string(data))

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/transactions", nil)
	s.Error(err, "handshake without a token is refused")
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestSetupWithoutBackends(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	require.NotPanics(t, func() {
		routes.Setup(router, routes.Dependencies{})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"1.0.0"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/transactions", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
