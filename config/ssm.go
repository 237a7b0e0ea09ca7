package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/golang/groupcache/lru"
)

// DefaultParameterName is where the configuration document lives in Parameter Store
const DefaultParameterName = "/lights-out/config"

const (
	defaultCacheTTL        = 5 * time.Minute
	defaultCacheMaxEntries = 16
)

// SSMAPI is the subset of the SSM client used to fetch configuration
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParameterStoreLoader loads configuration documents from SSM Parameter Store
// and keeps parsed results in a size and time bounded cache.
type ParameterStoreLoader struct {
	client SSMAPI
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache *lru.Cache
}

type cachedConfig struct {
	cfg       *Config
	fetchedAt time.Time
}

// LoaderOption configures a ParameterStoreLoader
type LoaderOption func(*ParameterStoreLoader)

// WithCacheTTL overrides the cache entry lifetime; zero disables caching
func WithCacheTTL(ttl time.Duration) LoaderOption {
	return func(l *ParameterStoreLoader) { l.ttl = ttl }
}

// WithCacheSize overrides the maximum number of cached parameters
func WithCacheSize(n int) LoaderOption {
	return func(l *ParameterStoreLoader) { l.cache = lru.New(n) }
}

// NewParameterStoreLoader creates a loader backed by the given SSM client
func NewParameterStoreLoader(client SSMAPI, opts ...LoaderOption) *ParameterStoreLoader {
	l := &ParameterStoreLoader{
		client: client,
		ttl:    defaultCacheTTL,
		now:    time.Now,
		cache:  lru.New(defaultCacheMaxEntries),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the configuration stored under name
func (l *ParameterStoreLoader) Load(ctx context.Context, name string) (*Config, error) {
	if cfg, ok := l.cached(name); ok {
		return cfg, nil
	}

	out, err := l.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get parameter %s: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, fmt.Errorf("parameter %s has no value", name)
	}

	cfg, err := Parse([]byte(aws.ToString(out.Parameter.Value)))
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %w", name, err)
	}

	l.store(name, cfg)
	return cfg, nil
}

// Invalidate drops every cached configuration
func (l *ParameterStoreLoader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Clear()
}

func (l *ParameterStoreLoader) cached(name string) (*Config, bool) {
	if l.ttl <= 0 {
		return nil, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.cache.Get(name)
	if !ok {
		return nil, false
	}
	entry := v.(cachedConfig)
	if l.now().Sub(entry.fetchedAt) >= l.ttl {
		l.cache.Remove(name)
		return nil, false
	}
	return entry.cfg, true
}

func (l *ParameterStoreLoader) store(name string, cfg *Config) {
	if l.ttl <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Add(name, cachedConfig{cfg: cfg, fetchedAt: l.now()})
}
