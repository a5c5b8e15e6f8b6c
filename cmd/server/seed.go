package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"vettinghub/internal/identity"
	identitystore "vettinghub/internal/identity/store"
	"vettinghub/internal/institution"
	institutionstore "vettinghub/internal/institution/store"
	"vettinghub/internal/platform/config"
	"vettinghub/internal/protocol"
	"vettinghub/internal/tenancy"
	tenancystore "vettinghub/internal/tenancy/store"
	"vettinghub/pkg/domain"
	"vettinghub/pkg/platform/sentinel"
	"vettinghub/pkg/requestcontext"
)

const demoOrgSlug = "demo"

// defaultInstitutions are the referring sites every fresh demo tenant starts
// with, each with its own turnaround window in hours.
var defaultInstitutions = []struct {
	name     string
	slaHours int
}{
	{"UHCL", 48},
	{"Nuffield Hospital", 24},
	{"Local Medical Centre", 72},
}

// bootstrap creates the initial operator account and, when enabled, a demo
// organisation. Both steps are idempotent across restarts.
func bootstrap(ctx context.Context, cfg config.Server, log *slog.Logger,
	users *identitystore.SQL, tenants *tenancystore.SQL, institutions *institutionstore.SQL,
	protocols *protocol.Service) error {
	if cfg.BootstrapPassword != "" {
		if err := ensureOperator(ctx, cfg, log, users); err != nil {
			return err
		}
	}
	if cfg.SeedDemo {
		if err := ensureDemoOrg(ctx, log, tenants, institutions, protocols); err != nil {
			return err
		}
	}
	return nil
}

func ensureOperator(ctx context.Context, cfg config.Server, log *slog.Logger, users *identitystore.SQL) error {
	_, err := users.FindByUsername(ctx, cfg.BootstrapUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("bootstrap: look up operator: %w", err)
	}

	u, err := identity.NewUser(domain.UserID(uuid.New()), cfg.BootstrapUsername, "",
		cfg.BootstrapPassword, true, requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("bootstrap: operator account: %w", err)
	}
	if err := users.Create(ctx, u); err != nil {
		return fmt.Errorf("bootstrap: create operator: %w", err)
	}
	log.Info("bootstrap operator created", "username", cfg.BootstrapUsername)
	return nil
}

func ensureDemoOrg(ctx context.Context, log *slog.Logger, tenants *tenancystore.SQL,
	institutions *institutionstore.SQL, protocols *protocol.Service) error {
	_, err := tenants.FindBySlug(ctx, demoOrgSlug)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("bootstrap: look up demo org: %w", err)
	}

	now := requestcontext.Now(ctx)
	org, err := tenancy.NewOrganisation(domain.OrgID(uuid.New()), "Demo Radiology Network", demoOrgSlug, now)
	if err != nil {
		return fmt.Errorf("bootstrap: demo org: %w", err)
	}
	if err := tenants.CreateOrganisation(ctx, org); err != nil {
		return fmt.Errorf("bootstrap: create demo org: %w", err)
	}
	for _, seed := range defaultInstitutions {
		inst, err := institution.New(domain.InstitutionID(uuid.New()), org.ID, seed.name, seed.slaHours, now)
		if err != nil {
			return fmt.Errorf("bootstrap: institution %q: %w", seed.name, err)
		}
		if err := institutions.Create(ctx, inst); err != nil {
			return fmt.Errorf("bootstrap: create institution %q: %w", seed.name, err)
		}
	}
	if err := protocols.SeedDefaults(ctx, org.ID); err != nil {
		return fmt.Errorf("bootstrap: seed protocols: %w", err)
	}
	log.Info("demo organisation seeded", "org_id", org.ID.String(),
		"institutions", len(defaultInstitutions))
	return nil
}
