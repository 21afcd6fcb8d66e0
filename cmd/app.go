package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/scholarly-tools/doideposit/internal/config"
	"github.com/scholarly-tools/doideposit/internal/deposit/client"
	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/deposit/interpret"
	"github.com/scholarly-tools/doideposit/internal/deposit/orchestrator"
	"github.com/scholarly-tools/doideposit/internal/deposit/status"
	"github.com/scholarly-tools/doideposit/internal/deposit/statusmsg"
	"github.com/scholarly-tools/doideposit/internal/deposit/xmlexport"
	"github.com/scholarly-tools/doideposit/internal/flags"
	"github.com/scholarly-tools/doideposit/internal/identifier"
	"github.com/scholarly-tools/doideposit/internal/infrastructure/sqlite"
	"github.com/scholarly-tools/doideposit/internal/log"
	"github.com/scholarly-tools/doideposit/internal/notify"
	"github.com/scholarly-tools/doideposit/internal/pubsub"
	"github.com/scholarly-tools/doideposit/internal/storage/exportfile"
	"github.com/scholarly-tools/doideposit/internal/tracing"
)

// app holds the wired deposit pipeline for one command invocation.
type app struct {
	cfg          config.Config
	db           *sqlite.DB
	store        *status.Store
	orchestrator *orchestrator.Orchestrator
	messages     *statusmsg.Service
	catalog      *notify.Catalog
	flags        *flags.Registry

	events   *pubsub.Broker[domain.DepositedEvent]
	provider *tracing.Provider
	cancel   context.CancelFunc
}

// newApp validates the configuration and wires every component against it.
func newApp(c config.Config) (*app, error) {
	if err := config.Validate(c); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	provider, err := tracing.NewProvider(c.Tracing)
	if err != nil {
		return nil, fmt.Errorf("creating tracing provider: %w", err)
	}
	tracer := provider.Tracer()

	db, err := sqlite.NewDB(c.DatabasePath)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("opening database: %w", err)
	}

	registry := flags.New(c.Flags)
	gen := identifier.NewGenerator(c.Identifiers())
	store := status.NewStore(db.ObjectRepository(), identifier.NewRegistrar(gen),
		status.WithTracer(tracer))

	depositor := client.New(c.HTTP.ClientConfig(), client.WithTracer(tracer))

	ctx, cancel := context.WithCancel(context.Background())
	events := pubsub.NewBroker[domain.DepositedEvent]()
	if registry.Enabled(flags.FlagDepositEvents) {
		pubsub.Handle[domain.DepositedEvent](ctx, events, func(ev pubsub.Event[domain.DepositedEvent]) {
			log.Info(log.CatDeposit, "Deposit accepted",
				"object", ev.Payload.ObjectID,
				"context", ev.Payload.ContextID,
				"batch", ev.Payload.BatchID,
				"outcome", ev.Payload.Outcome,
				"bytes", len(ev.Payload.Response))
		})
	}

	doi := func(obj *domain.Object) string {
		if obj.DOI() != "" {
			return obj.DOI()
		}
		value, err := gen.DOI(obj)
		if err != nil {
			log.Warn(log.CatExport, "No DOI for object", "object", obj.ID(), "error", err)
			return ""
		}
		return value
	}

	orch := orchestrator.New(orchestrator.Deps{
		Exporter:    xmlexport.NewExporter(xmlexport.DefaultRegistry()),
		Depositor:   depositor,
		Interpreter: interpret.New(events),
		Status:      store,
		Files:       exportfile.New(c.ExportDir),
		Tracer:      tracer,
		Tenants: func(contextID string) (orchestrator.Tenant, error) {
			t, ok := c.Tenant(contextID)
			if !ok {
				return orchestrator.Tenant{}, fmt.Errorf("no tenant configured for context %q", contextID)
			}
			return orchestrator.Tenant{
				Credentials: t.Credentials(),
				Endpoints:   t.Endpoints(),
				Deployment:  t.Deployment(doi),
			}, nil
		},
	})

	catalog := notify.DefaultCatalog()
	messages := statusmsg.New(store, depositor, func(contextID string) (statusmsg.Tenant, error) {
		t, ok := c.Tenant(contextID)
		if !ok {
			return statusmsg.Tenant{}, fmt.Errorf("no tenant configured for context %q", contextID)
		}
		return statusmsg.Tenant{Credentials: t.Credentials(), Endpoints: t.Endpoints()}, nil
	}, catalog, registry, c.StatusCacheTTL)

	log.Debug(log.CatConfig, "Pipeline wired",
		"database", c.DatabasePath,
		"tenants", len(c.Tenants),
		"tracing", provider.Enabled())

	return &app{
		cfg:          c,
		db:           db,
		store:        store,
		orchestrator: orch,
		messages:     messages,
		catalog:      catalog,
		flags:        registry,
		events:       events,
		provider:     provider,
		cancel:       cancel,
	}, nil
}

// request builds a run request for the resolved context.
func (a *app) request(kind domain.ObjectKind, ids []string) (orchestrator.Request, error) {
	ctxID, err := a.cfg.ResolveContext(contextID)
	if err != nil {
		return orchestrator.Request{}, err
	}
	return orchestrator.Request{ContextID: ctxID, Kind: kind, ObjectIDs: ids}, nil
}

// Close releases the database, stops event handlers and flushes traces.
func (a *app) Close() {
	a.cancel()
	a.events.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.provider.Shutdown(shutdownCtx); err != nil {
		log.ErrorErr(log.CatConfig, "Tracing shutdown failed", err)
	}
	if err := a.db.Close(); err != nil {
		log.ErrorErr(log.CatDB, "Closing database failed", err)
	}
}
