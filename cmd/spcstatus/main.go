package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"spc2mqtt/internal/config"
	"spc2mqtt/internal/log"
	"spc2mqtt/internal/panel"
)

// spcstatus performs one fetch against the panel and prints the result
// as JSON, for cron jobs and manual diagnosis. It shares the session
// cache with the watchdog, so running it does not cost a login.
func main() {
	configFile := flag.String("config", "/etc/spc2mqtt/config.yml", "Path to configuration file")
	pretty := flag.Bool("pretty", true, "Indent JSON output")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := log.NewLogger("error")

	p, err := panel.NewPanel(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating panel client: %v\n", err)
		os.Exit(1)
	}

	status, err := p.Client().Fetch()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(status); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode status: %v\n", err)
		os.Exit(1)
	}
}
