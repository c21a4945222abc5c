package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	refPrefix       = "secret://"
	defaultVersion  = "latest"
	metricNamespace = "github.com/butchers-select/api/internal/platform/secrets"
)

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references through Google Secret Manager with in-process
// caching. Plain values pass through untouched, so config fields may hold either.
type Fetcher struct {
	client    secretManagerClient
	projectID string
	logger    *zap.Logger

	mu    sync.RWMutex
	cache map[string]string

	latency        metric.Float64Histogram
	latencyEnabled bool
}

// NewFetcher constructs a Fetcher bound to a default project.
func NewFetcher(ctx context.Context, projectID string, logger *zap.Logger, opts ...option.ClientOption) (*Fetcher, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errors.New("secrets: project id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secrets: create client: %w", err)
	}

	fetcher := &Fetcher{
		client:    client,
		projectID: projectID,
		logger:    logger,
		cache:     make(map[string]string),
	}

	meter := otel.Meter(metricNamespace)
	if histogram, err := meter.Float64Histogram("secrets.fetch.duration_ms"); err == nil {
		fetcher.latency = histogram
		fetcher.latencyEnabled = true
	}
	return fetcher, nil
}

// Resolve returns the secret value for a secret://name[@version] reference, or the
// input unchanged when it is not a reference.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	if f == nil || f.client == nil {
		return "", errors.New("secrets: fetcher is not initialised")
	}

	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, refPrefix) {
		return ref, nil
	}

	name, version := parseRef(strings.TrimPrefix(ref, refPrefix))
	if name == "" {
		return "", fmt.Errorf("secrets: invalid reference %q", ref)
	}
	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", f.projectID, name, version)

	f.mu.RLock()
	cached, ok := f.cache[resource]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	start := time.Now()
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if f.latencyEnabled {
		f.latency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}
	if err != nil {
		return "", fmt.Errorf("secrets: access %s: %w", resource, err)
	}

	value := string(resp.GetPayload().GetData())
	f.mu.Lock()
	f.cache[resource] = value
	f.mu.Unlock()

	f.logger.Debug("secrets.resolved", zap.String("resource", resource))
	return value, nil
}

// Close releases the underlying client.
func (f *Fetcher) Close() error {
	if f == nil || f.client == nil {
		return nil
	}
	return f.client.Close()
}

func parseRef(raw string) (name, version string) {
	name, version, found := strings.Cut(raw, "@")
	name = strings.TrimSpace(name)
	if !found || strings.TrimSpace(version) == "" {
		return name, defaultVersion
	}
	return name, strings.TrimSpace(version)
}
