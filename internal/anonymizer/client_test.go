package anonymizer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnonymizeTextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/anonymize" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-API-Key"); got != "secret" {
			t.Errorf("X-API-Key = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("output_format"); got != "auto" {
			t.Errorf("output_format = %q", got)
		}
		if got := r.FormValue("language"); got != "de" {
			t.Errorf("language = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "cv.pdf" {
			t.Errorf("filename = %q", header.Filename)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"type":"text","original_type":"pdf","anonymized_text":"redacted cv text","pii_found":["PERSON","EMAIL_ADDRESS"]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", "de")
	content, err := client.Anonymize(context.Background(), "cv.pdf", []byte("%PDF-1.4 fake"))
	if err != nil {
		t.Fatalf("Anonymize: %v", err)
	}
	if content.IsImage() {
		t.Fatal("expected text content")
	}
	if content.Text != "redacted cv text" {
		t.Errorf("text = %q", content.Text)
	}
	if content.OriginalType != "pdf" {
		t.Errorf("original type = %q", content.OriginalType)
	}
	if len(content.PIIFound) != 2 {
		t.Errorf("pii_found = %v", content.PIIFound)
	}
}

func TestAnonymizeImageResponse(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("X-Original-Type", "image")
		w.Write(png)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", "")
	content, err := client.Anonymize(context.Background(), "scan.png", []byte("raw"))
	if err != nil {
		t.Fatalf("Anonymize: %v", err)
	}
	if !content.IsImage() {
		t.Fatal("expected image content")
	}
	if content.ImageMime != "image/png" {
		t.Errorf("mime = %q", content.ImageMime)
	}
	if content.OriginalType != "image" {
		t.Errorf("original type = %q", content.OriginalType)
	}
	if len(content.Image) != len(png) {
		t.Errorf("image bytes = %d, want %d", len(content.Image), len(png))
	}
}

func TestAnonymizeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "presidio unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", "")
	_, err := client.Anonymize(context.Background(), "cv.pdf", []byte("raw"))
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
}

func TestAnonymizeTransportError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "", "")
	_, err := client.Anonymize(context.Background(), "cv.pdf", []byte("raw"))
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.StatusCode != 0 {
		t.Errorf("transport error should have zero status, got %d", apiErr.StatusCode)
	}
}

func TestAnonymizeUnexpectedContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", "")
	if _, err := client.Anonymize(context.Background(), "cv.pdf", []byte("raw")); err == nil {
		t.Fatal("expected error for unexpected content type")
	}
}
