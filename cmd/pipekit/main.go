// Command pipekit serves DAG pipelines over HTTP and WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kbukum/pipekit/config"
	"github.com/kbukum/pipekit/version"
)

const serviceName = "pipekit"

func main() {
	configFile := flag.String("config", "", "path to config.yml (default: search ./cmd/pipekit, ./config, .)")
	envFile := flag.String("env", "", "path to a .env file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}

	var cfg Config
	if err := config.LoadConfig(serviceName, &cfg, config.WithConfigFile(*configFile), config.WithEnvFile(*envFile)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.Version == "" {
		cfg.Version = version.Get().Version
	}

	if err := run(context.Background(), &cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
