package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/ragserve/internal/ragserve/biz"
)

// maxUploadSize caps uploaded document size at 32 MiB.
const maxUploadSize = 32 << 20

// DataHandler handles document lifecycle HTTP requests.
type DataHandler struct {
	service   biz.Service
	uploadDir string
}

// NewDataHandler creates a new DataHandler.
func NewDataHandler(service biz.Service, uploadDir string) *DataHandler {
	return &DataHandler{
		service:   service,
		uploadDir: uploadDir,
	}
}

// UploadResponse represents a document upload response.
type UploadResponse struct {
	FileID string `json:"file_id"`
	Name   string `json:"name"`
	Size   int64  `json:"size"`
}

// Upload stores an uploaded document and registers it.
func (h *DataHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: "file field is required: " + err.Error()})
		return
	}

	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Code:    413,
			Message: fmt.Sprintf("file too large: %d bytes (max %d)", fileHeader.Size, maxUploadSize),
		})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	doc, err := h.service.RegisterDocument(c.Request.Context(), fileHeader.Filename, fileHeader.Size, contentType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	dest := filepath.Join(h.uploadDir, doc.FileID)
	if err := c.SaveUploadedFile(fileHeader, dest); err != nil {
		logger.Errorf("failed to save uploaded file %s: %v", doc.FileID, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	logger.Infow("uploaded document", "file_id", doc.FileID, "name", doc.Name, "size", doc.Size)
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: UploadResponse{
		FileID: doc.FileID,
		Name:   doc.Name,
		Size:   doc.Size,
	}})
}

// ProcessRequest represents a document processing request.
type ProcessRequest struct {
	ChunkSize    int  `json:"chunk_size,omitempty"`
	ChunkOverlap int  `json:"chunk_overlap,omitempty"`
	Reset        bool `json:"do_reset,omitempty"`
}

// ProcessResponse represents a document processing response.
type ProcessResponse struct {
	FileID    string `json:"file_id"`
	ChunkNum  int    `json:"inserted_chunks"`
	ChunkSize int    `json:"chunk_size"`
}

// Process splits an uploaded document into chunks and persists them.
// An empty request body means defaults.
func (h *DataHandler) Process(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	fileID := c.Param("file_id")
	inserted, err := h.service.ProcessDocument(c.Request.Context(), fileID, req.ChunkSize, req.ChunkOverlap, req.Reset)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: ProcessResponse{
		FileID:    fileID,
		ChunkNum:  inserted,
		ChunkSize: req.ChunkSize,
	}})
}

// PushRequest represents an indexing request.
type PushRequest struct {
	Reset bool `json:"do_reset,omitempty"`
}

// Push embeds a document's chunks and writes them into its vector collection.
func (h *DataHandler) Push(c *gin.Context) {
	var req PushRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	fileID := c.Param("file_id")
	if err := h.service.IndexDocument(c.Request.Context(), fileID, req.Reset); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "document indexed successfully"})
}

// List lists registered documents.
func (h *DataHandler) List(c *gin.Context) {
	docs, err := h.service.ListDocuments(c.Request.Context(), 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: docs})
}

// Delete removes a document, its chunks, its collection, and its upload.
func (h *DataHandler) Delete(c *gin.Context) {
	fileID := c.Param("file_id")
	if err := h.service.DeleteDocument(c.Request.Context(), fileID); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "document deleted"})
}
