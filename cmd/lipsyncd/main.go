// Command lipsyncd runs the lipsync daemon using the default configuration
// file. It is equivalent to `lipsync daemon` and exists for service managers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"lipsync/internal/config"
	"lipsync/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Override logging.level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "lipsyncd: %v\n", err)
		os.Exit(1)
	}
}
