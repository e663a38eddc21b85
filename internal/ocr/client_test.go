package ocr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nyaya/caseflow/internal/caseerr"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTextLocalFallback(t *testing.T) {
	// No API key: local extraction handles the file directly.
	c := NewClient("http://unused.invalid", "", time.Second)
	path := writeTempFile(t, "statement.txt", "Crime No. 123/2024")
	got, err := c.Text(context.Background(), path)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if !strings.Contains(got, "Crime No. 123/2024") {
		t.Errorf("got = %q", got)
	}
}

func TestTextLocalFailureWrapsErrParse(t *testing.T) {
	c := NewClient("http://unused.invalid", "", time.Second)
	if _, err := c.Text(context.Background(), filepath.Join(t.TempDir(), "missing.pdf")); !errors.Is(err, caseerr.ErrParse) {
		t.Errorf("err = %v, want ErrParse", err)
	}
}

func TestTextRemote(t *testing.T) {
	var gotAPIKey, gotEngine string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		gotAPIKey = r.FormValue("apikey")
		gotEngine = r.FormValue("OCREngine")
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("FormFile: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ParsedResults":[{"ParsedText":"FIR No.: 123/2024"}],"IsErroredOnProcessing":false}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "key-123", time.Second, WithHTTPClient(ts.Client()))
	path := writeTempFile(t, "fir.pdf", "scanned bytes")
	got, err := c.Text(context.Background(), path)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "FIR No.: 123/2024" {
		t.Errorf("got = %q", got)
	}
	if gotAPIKey != "key-123" || gotEngine != "2" {
		t.Errorf("form values: apikey=%q engine=%q", gotAPIKey, gotEngine)
	}
}

func TestTextRemoteProcessingError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ParsedResults":[],"IsErroredOnProcessing":true,"ErrorMessage":["file corrupted"]}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "key-123", time.Second, WithHTTPClient(ts.Client()))
	path := writeTempFile(t, "fir.pdf", "scanned bytes")
	if _, err := c.Text(context.Background(), path); !errors.Is(err, caseerr.ErrParse) {
		t.Errorf("err = %v, want ErrParse", err)
	}
}

func TestTextRemoteServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "key-123", time.Second, WithHTTPClient(ts.Client()))
	path := writeTempFile(t, "fir.pdf", "scanned bytes")
	if _, err := c.Text(context.Background(), path); !errors.Is(err, caseerr.ErrParse) {
		t.Errorf("err = %v, want ErrParse", err)
	}
}
