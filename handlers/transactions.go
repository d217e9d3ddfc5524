package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/expense-api/middleware"
	"github.com/LovationAdmin/expense-api/models"
	"github.com/LovationAdmin/expense-api/services"
)

type TransactionHandler struct {
	Ledger *services.Ledger
}

func NewTransactionHandler(ledger *services.Ledger) *TransactionHandler {
	return &TransactionHandler{Ledger: ledger}
}

func (h *TransactionHandler) List(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No authentication token provided"})
		return
	}

	txs, err := h.Ledger.List(c.Request.Context(), user)
	if err != nil {
		RespondError(c, SurfaceLedger, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

func (h *TransactionHandler) Create(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No authentication token provided"})
		return
	}

	var req models.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON in request body"})
		return
	}

	tx, err := h.Ledger.Create(c.Request.Context(), user, req)
	if err != nil {
		RespondError(c, SurfaceLedger, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h *TransactionHandler) Delete(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No authentication token provided"})
		return
	}

	var req models.DeleteTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON in request body"})
		return
	}

	id, err := models.ParseTransactionID(req.ID)
	if err != nil {
		msg := "Transaction ID required"
		if errors.Is(err, models.ErrInvalidID) {
			msg = "Transaction ID must be a positive integer"
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if err := h.Ledger.Delete(c.Request.Context(), user, id); err != nil {
		RespondError(c, SurfaceLedger, err)
		return
	}
	c.JSON(http.StatusOK, models.DeleteResponse{Success: true, Message: "Transaction deleted"})
}

func (h *TransactionHandler) Summary(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No authentication token provided"})
		return
	}

	summary, err := h.Ledger.Summary(c.Request.Context(), user)
	if err != nil {
		RespondError(c, SurfaceLedger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
