package main

import (
	"fmt"
	"os"

	"github.com/AnishMulay/vtfs/internal/config"
	"github.com/AnishMulay/vtfs/servers/simple"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		configPath string
		envFile    string
		nodeID     string
		listen     string
		dataDir    string
		logLevel   string
		logSink    string
	)

	flagSet := pflag.NewFlagSet("vtfs", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "vtfs.yaml", "path to the YAML config (written with defaults if missing)")
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file with VTFS_* overrides")
	flagSet.StringVar(&nodeID, "node-id", "", "node ID (overrides config)")
	flagSet.StringVar(&listen, "listen", "", "listen address (overrides config)")
	flagSet.StringVar(&dataDir, "data-dir", "", "data directory for log files (overrides config)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	flagSet.StringVar(&logSink, "log-sink", "", "console or localdisc (overrides config)")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}

	// Flags win over file and environment.
	overrides := map[string]*string{
		"node-id":   &cfg.NodeID,
		"listen":    &cfg.ListenAddr,
		"data-dir":  &cfg.DataDir,
		"log-level": &cfg.Log.Level,
		"log-sink":  &cfg.Log.Sink,
	}
	values := map[string]string{
		"node-id":   nodeID,
		"listen":    listen,
		"data-dir":  dataDir,
		"log-level": logLevel,
		"log-sink":  logSink,
	}
	for name, dst := range overrides {
		if flagSet.Changed(name) {
			*dst = values[name]
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	server, err := simple.Build(cfg)
	if err != nil {
		return err
	}
	return server.Run()
}
