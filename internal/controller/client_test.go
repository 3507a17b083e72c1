package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchStatusParsesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleExposition))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, discardLogger())
	status, err := client.FetchStatus(context.Background())
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if status == nil {
		t.Fatal("FetchStatus returned nil status for reachable endpoint")
	}
	if len(status.Hashes) != 1 || status.Hashes[0] != "0d7fcf42" {
		t.Fatalf("unexpected hashes %v", status.Hashes)
	}
}

func TestFetchStatusNonSuccessIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, discardLogger())
	_, err := client.FetchStatus(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestFetchStatusUnreachableIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(url, discardLogger())
	status, err := client.FetchStatus(context.Background())
	if err != nil {
		t.Fatalf("unreachable endpoint should not be an error, got %v", err)
	}
	if status != nil {
		t.Fatalf("expected nil status for unreachable endpoint, got %+v", status)
	}
}

func TestFetchStatusHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	client := NewClient(srv.URL, discardLogger())
	if _, err := client.FetchStatus(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWatchTriggerIsNoop(t *testing.T) {
	if err := (WatchTrigger{}).Trigger(context.Background()); err != nil {
		t.Fatalf("WatchTrigger.Trigger: %v", err)
	}
}
