// Package handler provides HTTP handlers for the RAG service.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/ragserve/internal/ragserve/biz"
	"github.com/kart-io/ragserve/internal/ragserve/store"
)

// answerTimeout caps how long a single answer request may run.
const answerTimeout = 60 * time.Second

// RAGHandler handles RAG HTTP requests.
type RAGHandler struct {
	service biz.Service
}

// NewRAGHandler creates a new RAGHandler.
func NewRAGHandler(service biz.Service) *RAGHandler {
	return &RAGHandler{service: service}
}

// SuccessResponse is a standard success response.
type SuccessResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SearchRequest represents a similarity search request.
type SearchRequest struct {
	Text  string `json:"text" binding:"required"`
	Limit int    `json:"limit,omitempty"`
}

// Search performs a similarity search inside a document's collection.
func (h *RAGHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	fileID := c.Param("file_id")
	docs, err := h.service.Search(c.Request.Context(), fileID, req.Text, req.Limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if len(docs) == 0 {
		c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "no matching documents"})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: docs})
}

// AnswerRequest represents a RAG answer request.
type AnswerRequest struct {
	Text  string `json:"text" binding:"required"`
	Limit int    `json:"limit,omitempty"`
}

// AnswerResponse represents a RAG answer response.
type AnswerResponse struct {
	Answer     string      `json:"answer"`
	FullPrompt string      `json:"full_prompt"`
	History    interface{} `json:"chat_history"`
}

// Answer runs retrieval augmented generation over a document's collection.
func (h *RAGHandler) Answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	// 添加 60 秒超时控制
	ctx, cancel := context.WithTimeout(c.Request.Context(), answerTimeout)
	defer cancel()

	fileID := c.Param("file_id")
	answer, err := h.service.Answer(ctx, fileID, req.Text, req.Limit)
	if err != nil {
		// 检查是否超时
		if ctx.Err() == context.DeadlineExceeded {
			c.JSON(http.StatusRequestTimeout, ErrorResponse{
				Code:    408,
				Message: "Answer timeout: the request took too long to process. Please try again or simplify your question.",
			})
			return
		}
		writeServiceError(c, err)
		return
	}

	if answer == nil {
		c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "no matching documents"})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: AnswerResponse{
		Answer:     answer.Text,
		FullPrompt: answer.FullPrompt,
		History:    answer.History,
	}})
}

// CollectionInfo returns metadata about a document's vector collection.
func (h *RAGHandler) CollectionInfo(c *gin.Context) {
	fileID := c.Param("file_id")
	info, err := h.service.GetCollectionInfo(c.Request.Context(), fileID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: info})
}

// ResetCollection drops a document's vector collection.
func (h *RAGHandler) ResetCollection(c *gin.Context) {
	fileID := c.Param("file_id")
	deleted, err := h.service.ResetCollection(c.Request.Context(), fileID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if !deleted {
		c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "collection does not exist"})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "collection deleted"})
}

// Stats returns service-wide statistics.
func (h *RAGHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: stats})
}

// writeServiceError maps service errors to HTTP status codes.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biz.ErrDocumentNotFound), errors.Is(err, store.ErrCollectionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Code: 404, Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
	}
}
