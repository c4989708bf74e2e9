package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func newTestClient(ts *httptest.Server, minDelay time.Duration) *Client {
	c := NewClient(Config{BaseURL: ts.URL, APIKey: "test-key", MinDelay: minDelay})
	c.httpClient = ts.Client()
	return c
}

func TestGeocodeOneSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("address") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"latitude":37.5665,"longitude":126.978}]}`))
	}))
	defer ts.Close()

	client := newTestClient(ts, -1)
	coords, err := client.GeocodeOne(context.Background(), "서울특별시 중구 세종대로 110")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coords == nil || coords.Latitude != 37.5665 || coords.Longitude != 126.978 {
		t.Fatalf("unexpected coordinates: %+v", coords)
	}
}

func TestGeocodeOneNoResultIsNotAnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer ts.Close()

	client := newTestClient(ts, -1)
	coords, err := client.GeocodeOne(context.Background(), "없는 주소")
	if err != nil {
		t.Fatalf("empty result must not be an error: %v", err)
	}
	if coords != nil {
		t.Fatalf("expected nil coordinates, got %+v", coords)
	}
}

func TestGeocodeBatchCompleteness(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch n {
		case 2:
			w.WriteHeader(http.StatusInternalServerError) // one address fails
		case 3:
			_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
		default:
			_, _ = w.Write([]byte(`{"status":"OK","results":[{"latitude":35.1796,"longitude":129.0756}]}`))
		}
	}))
	defer ts.Close()

	client := newTestClient(ts, -1)
	addresses := []string{"주소 하나", "주소 둘", "주소 셋", "주소 넷"}
	results, err := client.GeocodeBatch(context.Background(), addresses)
	if err != nil {
		t.Fatalf("per-address failures must not abort the batch: %v", err)
	}

	if len(results) != len(addresses) {
		t.Fatalf("expected %d entries, got %d", len(addresses), len(results))
	}
	for _, addr := range addresses {
		if _, ok := results[addr]; !ok {
			t.Fatalf("address %q missing from results", addr)
		}
	}
	if results["주소 둘"] != nil {
		t.Fatalf("failed lookup should yield nil, got %+v", results["주소 둘"])
	}
	if results["주소 셋"] != nil {
		t.Fatalf("empty lookup should yield nil, got %+v", results["주소 셋"])
	}
	if results["주소 하나"] == nil || results["주소 넷"] == nil {
		t.Fatalf("successful lookups should carry coordinates")
	}
}

func TestGeocodeBatchHonorsMinDelay(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"latitude":1,"longitude":1}]}`))
	}))
	defer ts.Close()

	minDelay := 30 * time.Millisecond
	client := newTestClient(ts, minDelay)

	start := time.Now()
	_, err := client.GeocodeBatch(context.Background(), []string{"가", "나", "다"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 2*minDelay {
		t.Fatalf("three sequential calls should span at least two delays, took %v", elapsed)
	}
}

func TestGeocodeBatchStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cancel() // cancel mid-batch
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"latitude":1,"longitude":1}]}`))
	}))
	defer ts.Close()

	client := newTestClient(ts, time.Hour) // the second wait would block forever
	_, err := client.GeocodeBatch(ctx, []string{"가", "나"})
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestNewClientDefaultsMinDelay(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"latitude":1,"longitude":1}]}`))
	}))
	defer ts.Close()

	// MinDelay left unset must still pace calls.
	client := newTestClient(ts, 0)

	start := time.Now()
	_, err := client.GeocodeBatch(context.Background(), []string{"가", "나"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < defaultMinDelay {
		t.Fatalf("two calls with the default delay took only %v", elapsed)
	}
}
