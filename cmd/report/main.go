// Package main implements qulab-report, a one-shot command that prints
// the operational Quantum Experience backends as a fixed-width table on
// stdout, one row per backend in API order.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/qulab/qulab/internal/clients/qx"
	"github.com/qulab/qulab/internal/config"
	"github.com/qulab/qulab/internal/modules/backends"
	"github.com/qulab/qulab/pkg/logger"
)

func main() {
	asJSON := flag.Bool("json", false, "emit the overview as JSON instead of a table")
	timeout := flag.Duration("timeout", 30*time.Second, "deadline for the remote calls")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.NewCLI("info").Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Logs go to stderr so stdout stays clean for the report.
	log := logger.NewCLI(cfg.LogLevel)

	if cfg.QXToken == "" {
		log.Fatal().Msg("QULAB_QX_TOKEN is required")
	}

	client := qx.NewClient(cfg.QXToken, log,
		qx.WithBaseURL(cfg.QXURL),
		qx.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSecs) * time.Second}),
	)
	service := backends.NewService(client, nil, nil, log)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	overviews, err := service.Overview(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch backend overview")
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(overviews); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode overview")
		}
		return
	}

	fmt.Print(backends.FormatReport(overviews))
}
