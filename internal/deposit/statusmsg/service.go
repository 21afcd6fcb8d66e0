// Package statusmsg looks up the failure detail behind an object's deposit status.
package statusmsg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scholarly-tools/doideposit/internal/cachemanager"
	"github.com/scholarly-tools/doideposit/internal/deposit/client"
	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/flags"
	"github.com/scholarly-tools/doideposit/internal/log"
	"github.com/scholarly-tools/doideposit/internal/notify"
)

// ObjectReader loads objects.
type ObjectReader interface {
	Get(ctx context.Context, id string) (*domain.Object, error)
}

// StatusQuerier fetches submission results from CrossRef.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, batchID string, creds domain.Credentials, endpoint string) (string, error)
}

// Tenant carries what a status query needs for one context.
type Tenant struct {
	Credentials domain.Credentials
	Endpoints   client.Endpoints
}

// TenantFunc resolves the settings of a context.
type TenantFunc func(contextID string) (Tenant, error)

type query struct {
	batchID string
	tenant  Tenant
}

// Service returns the message behind an object's status.
type Service struct {
	objects ObjectReader
	querier StatusQuerier
	tenants TenantFunc
	catalog *notify.Catalog
	cache   *cachemanager.ReadThroughCache[string, string, query]
	ttl     time.Duration
}

// New creates a Service. Results of status queries are cached for ttl while the
// status-cache flag is on.
func New(objects ObjectReader, querier StatusQuerier, tenants TenantFunc, catalog *notify.Catalog, registry *flags.Registry, ttl time.Duration) *Service {
	s := &Service{
		objects: objects,
		querier: querier,
		tenants: tenants,
		catalog: catalog,
		ttl:     ttl,
	}
	manager := cachemanager.NewInMemoryCacheManager[string, string]("status-message", ttl, cachemanager.DefaultCleanupInterval)
	s.cache = cachemanager.NewReadThroughCache[string, string, query](manager, s.fetch, func() bool {
		return registry.Enabled(flags.FlagStatusCache)
	})
	return s
}

// Lookup returns the stored failure message of the object if there is one. Otherwise
// CrossRef is asked for the result of the object's last batch. When CrossRef cannot be
// reached the catalog's deposit error text is returned instead of an error.
func (s *Service) Lookup(ctx context.Context, objectID string) (string, error) {
	obj, err := s.objects.Get(ctx, objectID)
	if err != nil {
		return "", err
	}
	if msg := obj.FailedMessage(); msg != "" {
		return msg, nil
	}
	if obj.BatchID() == "" {
		return "", fmt.Errorf("object %s has no deposit batch to look up", objectID)
	}

	tenant, err := s.tenants(obj.ContextID())
	if err != nil {
		return "", err
	}

	result, err := s.cache.Get(ctx, obj.BatchID(), query{batchID: obj.BatchID(), tenant: tenant}, s.ttl)
	var noResp *domain.NoResponseError
	if errors.As(err, &noResp) {
		return s.catalog.Text(notify.KeyDepositError, notify.NoResponseParam), nil
	}
	return result, err
}

func (s *Service) fetch(ctx context.Context, q query) (string, error) {
	log.Debug(log.CatHTTP, "Querying submission result", "batch", q.batchID)
	return s.querier.QueryStatus(ctx, q.batchID, q.tenant.Credentials, q.tenant.Endpoints.Status)
}
