package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func newTestLookup(t *testing.T, endpoint string) StoreLookupService {
	t.Helper()
	service, err := NewStoreLookupService(StoreLookupDeps{
		Endpoint: endpoint,
		Debounce: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error constructing store lookup service: %v", err)
	}
	return service
}

func TestSearchNormalisesFullWidthInput(t *testing.T) {
	var gotCity string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCity = r.URL.Query().Get("city")
		_ = json.NewEncoder(w).Encode([]Store{{ID: "1", Name: "信義門市", City: "台北市"}})
	}))
	defer server.Close()

	service := newTestLookup(t, server.URL)
	stores, err := service.Search(context.Background(), StoreQuery{City: "台北市　１２３"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotCity != "台北市 123" {
		t.Fatalf("expected narrowed query, got %q", gotCity)
	}
	if len(stores) != 1 || stores[0].Name != "信義門市" {
		t.Fatalf("unexpected stores %+v", stores)
	}
}

func TestSearchRequiresATerm(t *testing.T) {
	service := newTestLookup(t, "http://stores.example/search")
	if _, err := service.Search(context.Background(), StoreQuery{}); !errors.Is(err, ErrStoreLookupInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSearchCancelsSupersededRequest(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("keyword") == "slow" {
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
		}
		_ = json.NewEncoder(w).Encode([]Store{{ID: "1", Name: r.URL.Query().Get("keyword")}})
	}))
	defer server.Close()

	service := newTestLookup(t, server.URL)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = service.Search(context.Background(), StoreQuery{Keyword: "slow"})
	}()

	// Give the first search time to pass its debounce and reach the server.
	time.Sleep(30 * time.Millisecond)

	stores, err := service.Search(context.Background(), StoreQuery{Keyword: "fast"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stores) != 1 || stores[0].Name != "fast" {
		t.Fatalf("unexpected stores %+v", stores)
	}

	close(release)
	wg.Wait()
	if !errors.Is(firstErr, context.Canceled) {
		t.Fatalf("expected superseded search to be cancelled, got %v", firstErr)
	}
}

func TestSearchSurfacesEndpointErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	service := newTestLookup(t, server.URL)
	if _, err := service.Search(context.Background(), StoreQuery{Keyword: "x"}); !errors.Is(err, ErrStoreLookupUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
