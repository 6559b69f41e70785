package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/plantgate/internal/flagx"
)

// Flags is the set of global flags parseFlags owns. Command arguments
// must not reuse these names.
var Flags = []string{"-a", "-state", "-timeout", "-raw-threshold"}

// parseFlags populates Config fields from command-line flags.
//
//	-a string            base URL of the gateway (e.g., "https://gw.example")
//	-state string        path of the local state database
//	-timeout duration    per-request timeout
//	-raw-threshold int   sealed size in bytes above which uploads go raw
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], Flags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "gateway base URL")
	fs.StringVar(&cfg.StatePath, "state", cfg.StatePath, "local state database")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "request timeout")
	fs.Int64Var(&cfg.RawThreshold, "raw-threshold", cfg.RawThreshold, "raw upload threshold in bytes")

	return fs.Parse(args)
}
