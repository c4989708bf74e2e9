package openapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/careseek/importer/internal/models"
	"github.com/careseek/importer/internal/ratelimit"
)

// noLimit is a no-op limiter for tests.
type noLimit struct{}

func (noLimit) Wait(_ context.Context) error { return nil }
func (noLimit) Allow() bool                  { return true }
func (noLimit) RetryAfter(int) time.Duration { return time.Millisecond }
func (noLimit) Reset()                       {}

var _ ratelimit.Limiter = noLimit{}

func newTestClient(ts *httptest.Server, format string) (*Client, *int) {
	c := NewClient(Config{BaseURL: ts.URL, ServiceKey: "test-key", Format: format, MaxRetries: 3}, noLimit{})
	c.httpClient = ts.Client()
	sleeps := 0
	c.sleep = func(_ context.Context, _ time.Duration) error {
		sleeps++
		return nil
	}
	return c, &sleeps
}

func TestFetchPageJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("serviceKey") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":{"header":{"resultCode":"00","resultMsg":"OK"},"body":{"items":{"item":[{"yadmNm":"서울중앙병원","addr":"서울특별시 중구","telno":"02-123-4567","clCdNm":"병원"},{"yadmNm":"튼튼약국","addr":"부산광역시"}]},"totalCount":250,"pageNo":1,"numOfRows":2}}}`))
	}))
	defer ts.Close()

	client, _ := newTestClient(ts, "json")
	page, err := client.FetchPage(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.TotalCount != 250 {
		t.Fatalf("expected totalCount 250, got %d", page.TotalCount)
	}
	if len(page.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(page.Records))
	}
	if got := page.Records[0].Get(models.FieldName); got != "서울중앙병원" {
		t.Fatalf("unexpected name: %q", got)
	}
	if got := page.Records[0].Get(models.FieldKind); got != "병원" {
		t.Fatalf("unexpected kind: %q", got)
	}
}

func TestFetchPageSingleItemNormalized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":{"header":{"resultCode":"00","resultMsg":"OK"},"body":{"items":{"item":{"yadmNm":"하나의원","addr":"대구광역시"}},"totalCount":1}}}`))
	}))
	defer ts.Close()

	client, _ := newTestClient(ts, "json")
	page, err := client.FetchPage(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Records) != 1 {
		t.Fatalf("single object should normalize to one-element list, got %d", len(page.Records))
	}
}

func TestFetchPageEmptyItems(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":{"header":{"resultCode":"00","resultMsg":"OK"},"body":{"totalCount":0}}}`))
	}))
	defer ts.Close()

	client, _ := newTestClient(ts, "json")
	page, err := client.FetchPage(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("absent items must not be an error: %v", err)
	}
	if len(page.Records) != 0 || page.TotalCount != 0 {
		t.Fatalf("expected empty page, got %d records / total %d", len(page.Records), page.TotalCount)
	}
}

func TestFetchPageXML(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<response><header><resultCode>00</resultCode><resultMsg>OK</resultMsg></header><body><items><item><yadmNm>연세치과</yadmNm><addr>인천광역시</addr><telno>032-111-2222</telno></item></items><totalCount>1</totalCount></body></response>`))
	}))
	defer ts.Close()

	client, _ := newTestClient(ts, "xml")
	page, err := client.FetchPage(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Records) != 1 || page.Records[0].Get(models.FieldName) != "연세치과" {
		t.Fatalf("unexpected records: %+v", page.Records)
	}
}

func TestFetchPageEmbeddedFailureCode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":{"header":{"resultCode":"22","resultMsg":"LIMITED NUMBER OF SERVICE REQUESTS EXCEEDS"},"body":{}}}`))
	}))
	defer ts.Close()

	client, sleeps := newTestClient(ts, "json")
	_, err := client.FetchPage(context.Background(), 1, 10)

	var perm *PermanentError
	if !errors.As(err, &perm) {
		t.Fatalf("expected PermanentError, got %v", err)
	}
	if perm.Code != "22" {
		t.Fatalf("expected embedded code, got %q", perm.Code)
	}
	if *sleeps != 0 {
		t.Fatalf("embedded failure must not be retried, saw %d sleeps", *sleeps)
	}
}

func TestFetchPageRetryThenSuccess(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":{"header":{"resultCode":"00","resultMsg":"OK"},"body":{"items":{"item":[{"yadmNm":"좋은병원","addr":"광주광역시"}]},"totalCount":1}}}`))
	}))
	defer ts.Close()

	client, sleeps := newTestClient(ts, "json")
	page, err := client.FetchPage(context.Background(), 7, 10)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(page.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(page.Records))
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if *sleeps != 2 {
		t.Fatalf("expected exactly 2 retry delays, observed %d", *sleeps)
	}
}

func TestFetchPageExhaustedRetries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client, _ := newTestClient(ts, "json")
	_, err := client.FetchPage(context.Background(), 3, 10)

	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if unavailable.Page != 3 {
		t.Fatalf("expected page 3 in error, got %d", unavailable.Page)
	}
	var transient *TransientError
	if !errors.As(unavailable.Err, &transient) || transient.Status != http.StatusInternalServerError {
		t.Fatalf("expected wrapped transient error, got %v", unavailable.Err)
	}
}

func TestFetchPageBadRequestNoRetry(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	client, _ := newTestClient(ts, "json")
	_, err := client.FetchPage(context.Background(), 1, 10)

	var perm *PermanentError
	if !errors.As(err, &perm) {
		t.Fatalf("expected PermanentError, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("4xx must not be retried, saw %d attempts", attempts)
	}
}

func TestFetchAllStopsAtPageCount(t *testing.T) {
	pagesServed := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":{"header":{"resultCode":"00","resultMsg":"OK"},"body":{"items":{"item":[{"yadmNm":"가나의원","addr":"서울시"},{"yadmNm":"다라약국","addr":"서울시"}]},"totalCount":6}}}`))
	}))
	defer ts.Close()

	client, _ := newTestClient(ts, "json")
	records, err := client.FetchAll(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pagesServed != 3 {
		t.Fatalf("expected 3 pages for total 6 / size 2, got %d", pagesServed)
	}
	if len(records) != 6 {
		t.Fatalf("expected 6 records, got %d", len(records))
	}
}

func TestPageCount(t *testing.T) {
	cases := []struct{ total, size, want int }{
		{0, 100, 0},
		{1, 100, 1},
		{100, 100, 1},
		{101, 100, 2},
		{250, 100, 3},
	}
	for _, tc := range cases {
		if got := PageCount(tc.total, tc.size); got != tc.want {
			t.Fatalf("PageCount(%d,%d)=%d, want %d", tc.total, tc.size, got, tc.want)
		}
	}
}
