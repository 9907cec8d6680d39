package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/willow/internal/crm"
	"github.com/sells-group/willow/internal/intel"
	"github.com/sells-group/willow/internal/scoring"
	"github.com/sells-group/willow/internal/smartdefaults"
	"github.com/sells-group/willow/internal/store"
	"github.com/sells-group/willow/pkg/attom"
	"github.com/sells-group/willow/pkg/cloudcma"
	"github.com/sells-group/willow/pkg/fub"
	"github.com/sells-group/willow/pkg/zestimate"
)

// appEnv bundles the shared dependencies a command needs.
type appEnv struct {
	Store    store.Store
	CRM      fub.Client
	Pipeline *intel.Pipeline
	Webhook  *crm.WebhookProcessor
}

func (e *appEnv) Close() {
	_ = e.Store.Close()
}

// initEnv builds the store, API clients, engines, and pipeline from config.
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.RequireSecrets("fub", "cloudcma", "attom", "bridge"); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	crmClient := fub.NewClient(cfg.FUB.Key,
		fub.WithBaseURL(cfg.FUB.BaseURL),
		fub.WithRateLimit(cfg.FUB.RateLimit),
	)
	cmaClient := cloudcma.NewClient(cfg.CloudCMA.Key,
		cloudcma.WithBaseURL(cfg.CloudCMA.BaseURL),
	)
	propClient := attom.NewClient(cfg.Attom.Key,
		attom.WithBaseURL(cfg.Attom.BaseURL),
	)
	valClient := zestimate.NewClient(cfg.Bridge.Token,
		zestimate.WithBaseURL(cfg.Bridge.BaseURL),
	)

	engineCfg := scoring.Config{
		FelloWeight:    cfg.Scoring.FelloWeight,
		CloudCMAWeight: cfg.Scoring.CloudCMAWeight,
		WillowWeight:   cfg.Scoring.WillowWeight,
		SierraWeight:   cfg.Scoring.SierraWeight,
		CriticalAt:     cfg.Scoring.CriticalAt,
		SuperHotAt:     cfg.Scoring.SuperHotAt,
		HotAt:          cfg.Scoring.HotAt,
		WarmAt:         cfg.Scoring.WarmAt,
	}
	if err := scoring.Validate(engineCfg); err != nil {
		_ = st.Close()
		return nil, err
	}

	pipe := intel.New(crmClient, cmaClient, propClient, valClient, st,
		scoring.NewEngine(engineCfg), intel.Config{
			AgentEmail:       cfg.FUB.AgentEmail,
			WebhookURL:       cfg.CloudCMA.WebhookURL,
			PropertyCacheTTL: time.Duration(cfg.Pipeline.PropertyCacheTTLHours) * time.Hour,
			MaxConcurrent:    cfg.Pipeline.MaxConcurrentLeads,
			Market: smartdefaults.MarketConditions{
				InventoryLow:      cfg.Pipeline.LowInventory,
				RapidAppreciation: cfg.Pipeline.RapidAppreciation,
			},
		})

	return &appEnv{
		Store:    st,
		CRM:      crmClient,
		Pipeline: pipe,
		Webhook:  crm.NewWebhookProcessor(st, crmClient),
	}, nil
}

// openStore opens the configured database backend and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
