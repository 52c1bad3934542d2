package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient_Timeout(t *testing.T) {
	if got := NewClient(0).Timeout; got != DefaultTimeout {
		t.Errorf("zero timeout = %v, want %v", got, DefaultTimeout)
	}
	if got := NewClient(time.Minute).Timeout; got != time.Minute {
		t.Errorf("timeout = %v, want 1m", got)
	}
}

func TestNewClient_SetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	resp, err := NewClient(time.Second).Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got != UserAgent {
		t.Errorf("User-Agent = %q, want %q", got, UserAgent)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "custom")
	resp, err = NewClient(time.Second).Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got != "custom" {
		t.Errorf("User-Agent = %q, want caller's value kept", got)
	}
}
