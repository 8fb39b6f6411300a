package dlt

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dataspace/catalogue-coordinator/pkg/log"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true})
}

// TestListOfferings verifies index decoding.
func TestListOfferings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/offerings" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"addresses":["a","b","c"]}`)
	}))
	defer server.Close()

	ids, err := NewClient(server.URL).ListOfferings(context.Background())
	if err != nil {
		t.Fatalf("ListOfferings: %v", err)
	}
	if len(ids) != 3 || ids[0] != "a" {
		t.Errorf("ids = %v", ids)
	}
}

// TestGetOfferingBackfillsID verifies the id falls back to the request id.
func TestGetOfferingBackfillsID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"owner":"did:ex:1","descriptionUri":"http://a.example.org/d"}`)
	}))
	defer server.Close()

	meta, err := NewClient(server.URL).GetOffering(context.Background(), "off-9")
	if err != nil {
		t.Fatalf("GetOffering: %v", err)
	}
	if meta.ID != "off-9" || meta.Owner != "did:ex:1" {
		t.Errorf("meta = %+v", meta)
	}
}

// TestFetchDescription verifies the payload round trip.
func TestFetchDescription(t *testing.T) {
	doc := `{"@id":"urn:o:1","@type":"Offering"}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, doc)
	}))
	defer server.Close()

	payload, err := NewClient(server.URL).FetchDescription(context.Background(), server.URL+"/desc")
	if err != nil {
		t.Fatalf("FetchDescription: %v", err)
	}
	if string(payload) != doc {
		t.Errorf("payload = %s", payload)
	}
}

// TestClientErrorNoRetry verifies 4xx responses fail without retrying.
func TestClientErrorNoRetry(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := NewClient(server.URL).GetOffering(context.Background(), "gone"); err == nil {
		t.Fatal("404 must surface an error")
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("4xx retried: %d requests", got)
	}
}

// TestServerErrorRetries verifies 5xx responses retry and then succeed.
func TestServerErrorRetries(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"addresses":[]}`)
	}))
	defer server.Close()

	if _, err := NewClient(server.URL).ListOfferings(context.Background()); err != nil {
		t.Fatalf("ListOfferings after retry: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("request count = %d, want 2", got)
	}
}
