package command

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerifyPNGAcceptsHead(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		w.Header().Set("Content-Type", "image/png")
	}))
	defer srv.Close()

	if err := NewVerifier().VerifyPNG(context.Background(), srv.URL+"/a.png"); err != nil {
		t.Fatalf("VerifyPNG() error: %v", err)
	}
	if len(methods) != 1 || methods[0] != http.MethodHead {
		t.Errorf("methods = %v, want a single HEAD", methods)
	}
}

func TestVerifyPNGFallsBackToGet(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "image/png")
	}))
	defer srv.Close()

	if err := NewVerifier().VerifyPNG(context.Background(), srv.URL+"/a.png"); err != nil {
		t.Fatalf("VerifyPNG() error: %v", err)
	}
	want := []string{http.MethodHead, http.MethodGet}
	if len(methods) != 2 || methods[0] != want[0] || methods[1] != want[1] {
		t.Errorf("methods = %v, want %v", methods, want)
	}
}

func TestVerifyPNGRejectsNonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if err := NewVerifier().VerifyPNG(context.Background(), srv.URL+"/a.png"); err == nil {
		t.Fatal("VerifyPNG() error = nil, want failure for HTTP 404")
	}
}

func TestVerifyPNGContentTypeGate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	}))
	defer srv.Close()

	// Wrong content type, but the path ends in .png: permissive fallback.
	if err := NewVerifier().VerifyPNG(context.Background(), srv.URL+"/a.png?cb=1"); err != nil {
		t.Errorf("VerifyPNG() error: %v, want permissive fallback for .png path", err)
	}

	// Wrong content type and no .png path: rejected.
	if err := NewVerifier().VerifyPNG(context.Background(), srv.URL+"/page"); err == nil {
		t.Error("VerifyPNG() error = nil, want content-type rejection")
	}
}
