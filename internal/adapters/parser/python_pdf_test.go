package parser

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPythonPDFParser_Parse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/parse" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Filename") != "scheme.pdf" {
			t.Errorf("filename header missing: %q", r.Header.Get("X-Filename"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"text":  "Hello from PDF",
			"pages": 1,
		})
	}))
	defer server.Close()

	parser := NewPythonPDFParser(server.URL)
	text, err := parser.Parse(context.Background(), []byte("fake pdf"), "scheme.pdf")

	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if text != "Hello from PDF" {
		t.Errorf("unexpected text: %s", text)
	}
}

func TestPythonPDFParser_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": "parsing failed",
			"text":  "",
		})
	}))
	defer server.Close()

	_, err := NewPythonPDFParser(server.URL).Parse(context.Background(), []byte("bad"), "test.pdf")
	if err == nil || err.Error() != "PDF parse error: parsing failed" {
		t.Errorf("expected service error message, got %v", err)
	}
}

func TestPythonPDFParser_NonJSONFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewPythonPDFParser(server.URL).Parse(context.Background(), []byte("x"), "test.pdf")
	if err == nil {
		t.Error("should error on 502")
	}
}

func TestPythonPDFParser_SupportedFormats(t *testing.T) {
	formats := NewPythonPDFParser("").SupportedFormats()
	if len(formats) != 1 || formats[0] != "pdf" {
		t.Error("should support only pdf")
	}
}

func TestPythonPDFParser_DefaultURL(t *testing.T) {
	parser := NewPythonPDFParser("")
	if parser.serviceURL != "http://localhost:8081" {
		t.Error("should default to localhost:8081")
	}
}

func TestPythonPDFParser_IsServiceHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		}
	}))
	defer server.Close()

	if !NewPythonPDFParser(server.URL).IsServiceHealthy(context.Background()) {
		t.Error("should be healthy")
	}
}

func TestPythonPDFParser_WaitHealthyBecomesReady(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := NewPythonPDFParser(server.URL).WaitHealthy(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("expected service to become ready: %v", err)
	}
	if calls < 3 {
		t.Errorf("expected polling, got %d calls", calls)
	}
}

func TestPythonPDFParser_WaitHealthyTimesOut(t *testing.T) {
	parser := NewPythonPDFParser("http://127.0.0.1:1")
	err := parser.WaitHealthy(context.Background(), 300*time.Millisecond)
	if !errors.Is(err, ErrServiceNotReady) {
		t.Errorf("expected ErrServiceNotReady, got %v", err)
	}
}

func TestPythonPDFParser_StartServiceMissingScript(t *testing.T) {
	_, err := NewPythonPDFParser("").StartService(context.Background(), t.TempDir(), time.Second)
	if err == nil {
		t.Error("should fail when pdf_service.py is missing")
	}
}
