package http

import (
	"errors"
	"net/http"
	"strconv"
)

// AppError is an error with a status code and a client-facing message.
// Err, when set, is reported in the "error" field of the body.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

var (
	ErrQuestionRequired = &AppError{Code: http.StatusBadRequest, Message: `A non-empty "question" string is required in the request body.`}
	ErrHistoryNotArray  = &AppError{Code: http.StatusBadRequest, Message: `"history" must be an array if provided.`}
	ErrInvalidBody      = &AppError{Code: http.StatusBadRequest, Message: "Request body must be valid JSON."}
	ErrNoFiles          = &AppError{Code: http.StatusBadRequest, Message: "No files uploaded."}
	ErrUploadTooLarge   = &AppError{Code: http.StatusRequestEntityTooLarge, Message: "Uploaded files are too large."}
	ErrInternalServer   = &AppError{Code: http.StatusInternalServerError, Message: "internal server error"}
)

// NewTooManyFilesError reports an upload above the file limit.
func NewTooManyFilesError(limit int) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: "Too many files uploaded. The limit is " + strconv.Itoa(limit) + "."}
}

// NewInvalidInputError reports a request the query pipeline rejected.
func NewInvalidInputError(err error) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: "Invalid request.", Err: err}
}

// NewInternalError wraps a failure behind a fixed message.
func NewInternalError(message string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: message, Err: err}
}

// HandleError writes err as JSON. Errors that are not an *AppError become a
// generic 500.
func HandleError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONError(w, appErr.Code, appErr.Message, appErr.Err)
		return
	}
	JSONError(w, http.StatusInternalServerError, ErrInternalServer.Message, nil)
}
