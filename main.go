package main

import (
	"errors"
	"os"

	"github.com/patrickmn/go-cache"

	"github.com/username/kabufolio/src/config"
	"github.com/username/kabufolio/src/formats"
	"github.com/username/kabufolio/src/ledger"
	"github.com/username/kabufolio/src/logger"
	"github.com/username/kabufolio/src/services"
)

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	registry := formats.NewDefaultRegistry()
	store := ledger.NewStore(config.Cfg.DataDir)
	tracker := ledger.NewTracker(config.Cfg.DataDir)
	resultCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	svc := services.NewImportService(registry, store, tracker, resultCache)
	svc.MaxImportSizeBytes = config.Cfg.MaxImportSizeBytes

	batch, err := svc.ImportDirectory(config.Cfg.ImportDir)
	if err != nil {
		logger.L.Error("batch import aborted", "dir", config.Cfg.ImportDir, "error", err)
		os.Exit(1)
	}
	for _, outcome := range batch.Outcomes {
		if outcome.Err != nil {
			if errors.Is(outcome.Err, formats.ErrUnknownFormat) {
				logger.L.Warn("skipped file with unknown format", "path", outcome.Path)
			}
			continue
		}
		logger.L.Info("imported", "path", outcome.Path, "layout", outcome.Result.Layout,
			"kind", outcome.Result.Kind, "rows", outcome.Result.RowCount)
	}

	summary, err := svc.Summary()
	if err != nil {
		logger.L.Error("could not build portfolio summary", "error", err)
		os.Exit(1)
	}
	if summary == nil {
		logger.L.Info("portfolio value ledger is empty")
		return
	}
	logger.L.Info("portfolio summary",
		"currentValue", summary.CurrentValue.String(),
		"netInvested", summary.NetInvested.String(),
		"totalReturn", summary.TotalReturn.String(),
		"totalReturnRate", summary.TotalReturnRate.String(),
		"periodDays", summary.PeriodDays)
}
