package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewSafeClientTimeout はタイムアウト設定が反映されることをテストする。
func TestNewSafeClientTimeout(t *testing.T) {
	timeout := 5 * time.Second
	client := NewSafeClient(timeout)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
}

// TestNewSafeClientHasTransport はカスタムTransportが設定されていることをテストする。
func TestNewSafeClientHasTransport(t *testing.T) {
	client := NewSafeClient(5 * time.Second)

	if client.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// TestNewSafeClientBlocksLoopback はループバックへのリクエストがブロックされることをテストする。
// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSafeClient(5 * time.Second)

	resp, err := client.Get(ts.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected error for loopback address request, got nil")
	}
}

// TestNewSafeClientBlocksPlainHTTP はhttpスキームがブロックされることをテストする。
func TestNewSafeClientBlocksPlainHTTP(t *testing.T) {
	client := NewSafeClient(5 * time.Second)

	resp, err := client.Get("http://example.com/")
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected error for http scheme, got nil")
	}
}
