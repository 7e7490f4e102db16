// Package handler exposes a ledger over HTTP/JSON.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/blockledger/internal/chain"
	"github.com/jmerrifield20/blockledger/internal/ledger/service"
	"go.uber.org/zap"
)

// ledgerSvc is the interface expected by LedgerHandler, satisfied by *service.LedgerService.
type ledgerSvc interface {
	Append(ctx context.Context, payload int64) (chain.AppendResult, error)
	Get(ctx context.Context, index int) (chain.Block, error)
	List(ctx context.Context, offset, limit int) ([]chain.Block, int, error)
	Info(ctx context.Context) service.Info
	Verify(ctx context.Context) error
}

// AppendRequest is the body of POST /ledger/blocks.
type AppendRequest struct {
	Payload json.RawMessage `json:"payload"`
}

// LedgerHandler exposes HTTP endpoints for a single ledger.
type LedgerHandler struct {
	ledger    ledgerSvc
	writeAuth gin.HandlerFunc
	logger    *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger ledgerSvc, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, logger: logger}
}

// SetWriteAuth installs middleware run before every write route.
func (h *LedgerHandler) SetWriteAuth(mw gin.HandlerFunc) {
	h.writeAuth = mw
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	write := []gin.HandlerFunc{h.AppendBlock}
	if h.writeAuth != nil {
		write = append([]gin.HandlerFunc{h.writeAuth}, write...)
	}

	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/verify", h.Verify)
		l.GET("/blocks", h.ListBlocks)
		l.POST("/blocks", write...)
		l.GET("/blocks/:idx", h.GetBlock)
	}
}

// Overview handles GET /ledger and returns the chain length and current head digest.
func (h *LedgerHandler) Overview(c *gin.Context) {
	info := h.ledger.Info(c.Request.Context())
	SetLedgerHeight(info.Length)
	c.JSON(http.StatusOK, info)
}

// AppendBlock handles POST /ledger/blocks by appending a block carrying the payload.
func (h *LedgerHandler) AppendBlock(c *gin.Context) {
	var req AppendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RecordAppendRejected("bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	raw := strings.TrimSpace(string(req.Payload))
	if raw == "" || raw == "null" {
		RecordAppendRejected("invalid_payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: payload is required"})
		return
	}
	payload, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		RecordAppendRejected("invalid_payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: must be an integer"})
		return
	}

	res, err := h.ledger.Append(c.Request.Context(), payload)
	if err != nil {
		if errors.Is(err, chain.ErrInvalidPayload) {
			RecordAppendRejected("invalid_payload")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		RecordAppendRejected("internal")
		h.logger.Error("ledger Append", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to append block"})
		return
	}

	RecordLedgerAppend()
	SetLedgerHeight(res.Index + 1)
	c.JSON(http.StatusCreated, res)
}

// ListBlocks handles GET /ledger/blocks?offset=&limit= with a page of blocks.
func (h *LedgerHandler) ListBlocks(c *gin.Context) {
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}
	limit, err := queryInt(c, "limit", service.DefaultPageSize)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}

	blocks, total, err := h.ledger.List(c.Request.Context(), offset, limit)
	if err != nil {
		h.logger.Error("ledger List", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"blocks": blocks,
		"offset": offset,
		"total":  total,
	})
}

// GetBlock handles GET /ledger/blocks/:idx with a single block.
func (h *LedgerHandler) GetBlock(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return
	}

	b, err := h.ledger.Get(c.Request.Context(), idx)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}

	c.JSON(http.StatusOK, b)
}

// Verify handles GET /ledger/verify and reports the integrity of the full chain.
func (h *LedgerHandler) Verify(c *gin.Context) {
	err := h.ledger.Verify(c.Request.Context())
	if err == nil {
		RecordVerify(true)
		c.JSON(http.StatusOK, gin.H{"valid": true})
		return
	}

	var ie *chain.IntegrityError
	if errors.As(err, &ie) {
		RecordVerify(false)
		c.JSON(http.StatusOK, gin.H{
			"valid": false,
			"error": ie.Error(),
			"index": ie.Index,
		})
		return
	}

	h.logger.Error("ledger Verify", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify ledger"})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
