package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/usecases"
)

const (
	uploadField     = "documents"
	multipartMemory = 8 << 20

	askFailedMessage    = "An internal server error occurred while getting an answer."
	uploadFailedMessage = "Failed to process the document(s)."
)

// QueryService answers questions against the indexed documents.
type QueryService interface {
	AnswerQuestion(ctx context.Context, question string, history entities.ConversationHistory) (string, error)
}

// UploadService indexes uploaded files and removes them afterwards.
type UploadService interface {
	IngestUploads(ctx context.Context, files []usecases.SourceFile) error
}

// UploadOptions bounds the upload endpoint.
type UploadOptions struct {
	MaxFiles int
	MaxBytes int64
	// Dir receives the temp files; empty means os.TempDir().
	Dir string
}

// Handler serves the question and upload endpoints.
type Handler struct {
	query    QueryService
	uploads  UploadService
	opts     UploadOptions
	validate *validator.Validate
}

// NewHandler builds a Handler. A non-positive MaxFiles defaults to 10.
func NewHandler(query QueryService, uploads UploadService, opts UploadOptions) *Handler {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = 10
	}
	return &Handler{
		query:    query,
		uploads:  uploads,
		opts:     opts,
		validate: validator.New(),
	}
}

type askRequest struct {
	Question json.RawMessage `json:"question"`
	History  json.RawMessage `json:"history"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// Ask handles POST /api/query/ask.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		HandleError(w, ErrInvalidBody)
		return
	}

	var question string
	if err := json.Unmarshal(req.Question, &question); err != nil || strings.TrimSpace(question) == "" {
		HandleError(w, ErrQuestionRequired)
		return
	}

	history, err := h.parseHistory(req.History)
	if err != nil {
		HandleError(w, err)
		return
	}

	answer, err := h.query.AnswerQuestion(r.Context(), question, history)
	if err != nil {
		if usecases.KindOf(err) == usecases.KindInvalidInput {
			HandleError(w, NewInvalidInputError(err))
			return
		}
		if usecases.IsCanceled(err) {
			slog.Info("question canceled by client", "error", err)
		} else {
			slog.Error("answering question", "error", err, "kind", usecases.KindOf(err).String())
		}
		HandleError(w, NewInternalError(askFailedMessage, err))
		return
	}

	JSON(w, http.StatusOK, askResponse{Answer: answer})
}

// parseHistory treats a missing or falsy history as empty, and rejects
// anything else that is not an array.
func (h *Handler) parseHistory(raw json.RawMessage) (entities.ConversationHistory, error) {
	if isFalsy(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, ErrHistoryNotArray
	}

	history := make(entities.ConversationHistory, 0, len(items))
	for i, item := range items {
		var turn entities.ConversationTurn
		if err := json.Unmarshal(item, &turn); err != nil {
			return nil, NewInvalidInputError(fmt.Errorf("history[%d]: %w", i, err))
		}
		if err := h.validate.Var(string(turn.Role), "required,oneof=user model"); err != nil {
			return nil, NewInvalidInputError(fmt.Errorf("history[%d].role: %w", i, err))
		}
		history = append(history, turn)
	}
	return history, nil
}

func isFalsy(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", "0", `""`:
		return true
	}
	return false
}

// Upload handles POST /api/document/upload.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.opts.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			HandleError(w, ErrUploadTooLarge)
			return
		}
		HandleError(w, ErrNoFiles)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		HandleError(w, ErrNoFiles)
		return
	}
	if len(headers) > h.opts.MaxFiles {
		HandleError(w, NewTooManyFilesError(h.opts.MaxFiles))
		return
	}

	files, err := h.saveUploads(headers)
	if err != nil {
		slog.Error("saving uploads", "error", err)
		HandleError(w, NewInternalError(uploadFailedMessage, err))
		return
	}

	if err := h.uploads.IngestUploads(r.Context(), files); err != nil {
		slog.Error("upload failed", "files", len(files), "error", err)
		HandleError(w, NewInternalError(uploadFailedMessage, err))
		return
	}

	JSONMessage(w, http.StatusOK, fmt.Sprintf("%d file(s) processed and indexed successfully.", len(files)))
}

// saveUploads copies each part to a temp file. On failure the files created
// so far are removed.
func (h *Handler) saveUploads(headers []*multipart.FileHeader) ([]usecases.SourceFile, error) {
	files := make([]usecases.SourceFile, 0, len(headers))
	cleanup := func() {
		for _, f := range files {
			os.Remove(f.Path)
		}
	}

	for _, hdr := range headers {
		path, err := h.saveUpload(hdr)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("saving %s: %w", hdr.Filename, err)
		}
		files = append(files, usecases.SourceFile{Path: path, Name: hdr.Filename})
	}
	return files, nil
}

func (h *Handler) saveUpload(hdr *multipart.FileHeader) (string, error) {
	src, err := hdr.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp(h.opts.Dir, "docqa-upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}
