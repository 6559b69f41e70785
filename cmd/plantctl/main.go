package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"

	"github.com/dmitrijs2005/plantgate/internal/client/api"
	"github.com/dmitrijs2005/plantgate/internal/client/cli"
	"github.com/dmitrijs2005/plantgate/internal/client/config"
	"github.com/dmitrijs2005/plantgate/internal/client/state"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("config: %v", err)
		return 2
	}

	st, err := state.Open(ctx, cfg.StatePath)
	if err != nil {
		log.Printf("state: %v", err)
		return 1
	}
	defer st.Close()

	app := cli.NewApp(api.New(cfg.ServerURL, cfg.Timeout), st, cfg.RawThreshold, os.Stdin, os.Stdout)
	if err := app.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		log.Printf("%v", err)
		return 1
	}
	return 0
}
