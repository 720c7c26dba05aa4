package apihttp_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimit429(t *testing.T) {
	ts := httptest.NewServer(newRouter(t, &fakeFetcher{}, fakeStore{ok: true}, 10))
	defer ts.Close()

	var got429 int
	for i := 0; i < 11; i++ {
		resp, _ := postBalance(t, ts, []string{testWallet}, "dev-123")
		if resp.StatusCode == http.StatusTooManyRequests {
			got429++
			if resp.Header.Get("Retry-After") == "" {
				t.Fatalf("429 without Retry-After")
			}
		}
	}
	if got429 != 1 {
		t.Fatalf("got429=%d want 1", got429)
	}
}
