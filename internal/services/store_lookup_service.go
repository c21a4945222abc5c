package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/width"
)

const defaultLookupDebounce = 300 * time.Millisecond

var (
	// ErrStoreLookupInvalidInput indicates an empty or malformed search query.
	ErrStoreLookupInvalidInput = errors.New("store lookup: invalid input")
	// ErrStoreLookupUnavailable indicates the branch endpoint could not be reached.
	ErrStoreLookupUnavailable = errors.New("store lookup: unavailable")

	errStoreLookupEndpointRequired = errors.New("store lookup: endpoint is required")
)

// StoreLookupDeps wires the branch search dependencies.
type StoreLookupDeps struct {
	Endpoint   string
	HTTPClient *http.Client
	Debounce   time.Duration
	Logger     func(context.Context, string, map[string]any)
}

// storeLookupService queries the convenience-store branch endpoint as the shopper
// types. Each search supersedes the previous one: the in-flight request is cancelled
// and a short debounce runs before the new request is issued, so out-of-order
// responses never reach the caller.
type storeLookupService struct {
	endpoint string
	client   *http.Client
	debounce time.Duration
	logger   func(context.Context, string, map[string]any)

	mu         sync.Mutex
	cancelPrev context.CancelFunc
}

// NewStoreLookupService constructs a StoreLookupService.
func NewStoreLookupService(deps StoreLookupDeps) (StoreLookupService, error) {
	endpoint := strings.TrimSpace(deps.Endpoint)
	if endpoint == "" {
		return nil, errStoreLookupEndpointRequired
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("store lookup: invalid endpoint: %w", err)
	}

	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	debounce := deps.Debounce
	if debounce <= 0 {
		debounce = defaultLookupDebounce
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &storeLookupService{
		endpoint: endpoint,
		client:   client,
		debounce: debounce,
		logger:   logger,
	}, nil
}

// Search returns matching branches. A newer Search cancels this one; superseded calls
// return context.Canceled.
func (s *storeLookupService) Search(ctx context.Context, query StoreQuery) ([]Store, error) {
	if s == nil || s.client == nil {
		return nil, ErrStoreLookupUnavailable
	}

	city := normaliseLookupTerm(query.City)
	town := normaliseLookupTerm(query.Town)
	keyword := normaliseLookupTerm(query.Keyword)
	if city == "" && town == "" && keyword == "" {
		return nil, fieldError(ErrStoreLookupInvalidInput, "query", "at least one search term is required")
	}

	searchCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancelPrev != nil {
		s.cancelPrev()
	}
	s.cancelPrev = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.cancelPrev != nil {
			// Only clear the slot when it still belongs to this call.
			select {
			case <-searchCtx.Done():
			default:
				s.cancelPrev = nil
			}
		}
		s.mu.Unlock()
		cancel()
	}()

	// Debounce so rapid keystrokes collapse into the final query.
	timer := time.NewTimer(s.debounce)
	defer timer.Stop()
	select {
	case <-searchCtx.Done():
		return nil, searchCtx.Err()
	case <-timer.C:
	}

	return s.fetch(searchCtx, city, town, keyword)
}

func (s *storeLookupService) fetch(ctx context.Context, city, town, keyword string) ([]Store, error) {
	values := url.Values{}
	if city != "" {
		values.Set("city", city)
	}
	if town != "" {
		values.Set("town", town)
	}
	if keyword != "" {
		values.Set("keyword", keyword)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreLookupUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return nil, context.Canceled
		}
		s.logger(ctx, "stores.lookup_failed", map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("%w: %v", ErrStoreLookupUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger(ctx, "stores.lookup_failed", map[string]any{"status": resp.StatusCode})
		return nil, fmt.Errorf("%w: endpoint returned %d", ErrStoreLookupUnavailable, resp.StatusCode)
	}

	var stores []Store
	if err := json.NewDecoder(resp.Body).Decode(&stores); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrStoreLookupUnavailable, err)
	}
	return stores, nil
}

// normaliseLookupTerm trims and narrows full-width input so that a query typed with a
// zhuyin or full-width keyboard matches the endpoint's half-width data.
func normaliseLookupTerm(term string) string {
	return strings.TrimSpace(width.Narrow.String(term))
}
