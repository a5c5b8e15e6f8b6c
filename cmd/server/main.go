package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"vettinghub/internal/audit"
	auditstore "vettinghub/internal/audit/store"
	caseservice "vettinghub/internal/caseflow/service"
	casestore "vettinghub/internal/caseflow/store"
	"vettinghub/internal/identity"
	identitystore "vettinghub/internal/identity/store"
	"vettinghub/internal/institution"
	institutionstore "vettinghub/internal/institution/store"
	"vettinghub/internal/platform/config"
	"vettinghub/internal/platform/db"
	"vettinghub/internal/platform/httpserver"
	"vettinghub/internal/platform/logger"
	"vettinghub/internal/platform/metrics"
	"vettinghub/internal/protocol"
	protocolstore "vettinghub/internal/protocol/store"
	"vettinghub/internal/tenancy"
	tenancystore "vettinghub/internal/tenancy/store"
	httptransport "vettinghub/internal/transport/http"
)

// main wires dependencies and owns the process lifecycle. Business rules live
// in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := db.Open(ctx, db.Config{DatabaseURL: cfg.DatabaseURL, SQLitePath: cfg.SQLitePath})
	if err != nil {
		return err
	}
	defer handle.Close()
	if err := handle.EnsureSchema(ctx); err != nil {
		return err
	}

	users := identitystore.NewSQL(handle)
	tenants := tenancystore.NewSQL(handle)
	institutions := institutionstore.NewSQL(handle)
	protocols := protocolstore.NewSQL(handle)
	cases := casestore.NewSQL(handle)
	events := auditstore.NewSQL(handle)

	instruments := metrics.New()
	runner := db.NewTxRunner(handle, cfg.TxTimeout)
	guard := tenancy.NewGuard(tenants, tenants)

	identitySvc := identity.NewService(users, identity.NewTokenIssuer([]byte(cfg.JWTSigningKey)),
		identity.WithLogger(log))
	tenancySvc := tenancy.NewService(tenants, tenancy.WithLogger(log))
	institutionSvc := institution.NewService(institutions, institution.WithLogger(log))
	protocolSvc := protocol.NewService(protocols, protocol.WithLogger(log))
	recorder := audit.NewRecorder(events, audit.WithLogger(log))
	caseSvc := caseservice.NewService(cases, recorder, institutions, tenants, protocols, runner,
		caseservice.WithLogger(log), caseservice.WithMetrics(instruments))

	if err := bootstrap(ctx, cfg, log, users, tenants, institutions, protocolSvc); err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Auth:          httptransport.NewAuthHandler(identitySvc, log),
		Orgs:          httptransport.NewOrgHandler(tenancySvc, guard, log),
		Institutions:  httptransport.NewInstitutionHandler(institutionSvc, guard, log),
		Protocols:     httptransport.NewProtocolHandler(protocolSvc, guard, log),
		Cases:         httptransport.NewCaseHandler(caseSvc, guard, log),
		Authenticator: identitySvc,
		Logger:        log,
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting vettinghub", "addr", cfg.Addr, "dialect", string(handle.Dialect()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
