package routes

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/expense-api/handlers"
	"github.com/LovationAdmin/expense-api/middleware"
	"github.com/LovationAdmin/expense-api/services"
)

// Prefixes the API is mounted under. The second keeps clients written for
// the serverless deployment working unchanged.
var Prefixes = []string{"", "/.netlify/functions"}

var (
	authMethods        = []string{http.MethodPost, http.MethodOptions}
	transactionMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
)

type Dependencies struct {
	Gateway *services.Gateway
	Ledger  *services.Ledger
	WS      *handlers.WSHandler
	Version string
}

// Setup registers every endpoint on router.
func Setup(router *gin.Engine, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.Gateway)
	txHandler := handlers.NewTransactionHandler(deps.Ledger)

	for _, prefix := range Prefixes {
		root := router.Group(prefix)
		SetupAuthRoutes(root, authHandler)
		SetupTransactionRoutes(root, "/transactions", deps.Ledger, txHandler)
		if prefix != "" {
			// The serverless build also exposed the handler under its
			// singular file name.
			SetupTransactionRoutes(root, "/transaction", deps.Ledger, txHandler)
		}
		if deps.WS != nil {
			root.GET("/ws/transactions", deps.WS.HandleWS)
		}
	}

	version := deps.Version
	if version == "" {
		version = "1.0.0"
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": version,
			"time":    time.Now().Format(time.RFC3339),
		})
	})
}

// SetupAuthRoutes sets up the public identity endpoints.
func SetupAuthRoutes(rg *gin.RouterGroup, h *handlers.AuthHandler) {
	auth := rg.Group("/auth", middleware.CORS(authMethods...)...)

	auth.POST("", h.Handle)
	auth.OPTIONS("", handlers.Preflight)
	auth.Match(otherMethods(authMethods), "", handlers.MethodNotAllowed)

	auth.GET("/confirm", h.Confirm)
	auth.OPTIONS("/confirm", handlers.Preflight)
}

// SetupTransactionRoutes sets up the owner-scoped ledger endpoints. The
// bearer check runs after the method check so OPTIONS and 405 answers need
// no token.
func SetupTransactionRoutes(rg *gin.RouterGroup, path string, ledger *services.Ledger, h *handlers.TransactionHandler) {
	txs := rg.Group(path, middleware.CORS(transactionMethods...)...)
	requireUser := middleware.RequireUser(ledger, handlers.LedgerErrors)

	txs.GET("", requireUser, h.List)
	txs.POST("", requireUser, h.Create)
	txs.DELETE("", requireUser, h.Delete)
	txs.OPTIONS("", handlers.Preflight)
	txs.Match(otherMethods(transactionMethods), "", handlers.MethodNotAllowed)

	txs.GET("/summary", requireUser, h.Summary)
	txs.OPTIONS("/summary", handlers.Preflight)
}

func otherMethods(allowed []string) []string {
	all := []string{
		http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}
	var out []string
	for _, m := range all {
		if !slices.Contains(allowed, m) {
			out = append(out, m)
		}
	}
	return out
}
