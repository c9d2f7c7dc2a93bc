// Package main implements qulab-demos, which runs the local concept
// demonstrations and renders the Boltzmann distribution figure. Every
// computation runs locally; no network access is needed.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/qulab/qulab/internal/modules/charts"
	"github.com/qulab/qulab/internal/modules/demos"
	"github.com/qulab/qulab/pkg/logger"
)

func main() {
	asJSON := flag.Bool("json", false, "emit the results as JSON instead of a report")
	out := flag.String("out", "boltzmann.svg", "path for the rendered Boltzmann figure")
	level := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	// Logs go to stderr so stdout stays clean for the report.
	log := logger.NewCLI(*level)

	service := demos.NewService(log)

	report, err := service.All()
	if err != nil {
		log.Fatal().Err(err).Msg("Demonstrations failed")
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode report")
		}
	} else {
		fmt.Print(demos.FormatReport(report))
	}

	if err := charts.RenderThermal(report.Thermal, *out); err != nil {
		log.Fatal().Err(err).Msg("Failed to render Boltzmann figure")
	}
	log.Info().Str("path", *out).Msg("Rendered Boltzmann figure")
}
