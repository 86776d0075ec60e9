package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sheetops/internal/app"
)

func main() {
	var (
		cfgPath    string
		runJob     string
		restoreRef string
		force      bool
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.StringVar(&runJob, "run", "", "run a single job immediately and exit")
	flag.StringVar(&restoreRef, "restore", "", "restore sheets from a snapshot ref and exit")
	flag.BoolVar(&force, "force", false, "bypass the pre-restore integrity guard")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApp(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	switch {
	case runJob != "":
		err = a.RunJob(ctx, runJob)
	case restoreRef != "":
		err = a.Restore(ctx, restoreRef, force)
	default:
		if err = a.Start(ctx); err == nil {
			<-ctx.Done()
		}
	}

	stopErr := a.Stop(context.Background())
	if err == nil {
		err = stopErr
	}
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}
