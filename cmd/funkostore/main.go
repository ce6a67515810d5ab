package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/funkostack/funkostore/config"
	"github.com/funkostack/funkostore/internal/app"
	"github.com/funkostack/funkostore/internal/graphapi"
	"github.com/funkostack/funkostore/internal/webserver"
)

var (
	h      bool
	x      bool
	cfile  string
	initdb bool
)

func init() {
	flag.BoolVar(&h, "h", false, "help usage")
	flag.BoolVar(&x, "x", false, "print version")
	flag.StringVar(&cfile, "c", "funkostore.yml", "config file")
	flag.BoolVar(&initdb, "initdb", false, "drop and recreate the database schema")
}

var (
	buildVersion = "dev"
	buildTime    = "unknown"
)

func printVersion() {
	fmt.Printf("funkostore %s (built %s)\n", buildVersion, buildTime)
}

func main() {
	flag.Parse()
	if h {
		flag.Usage()
		os.Exit(0)
	}
	if x {
		printVersion()
		os.Exit(0)
	}

	appConfig := config.LoadConfig(cfile)
	application := app.NewApplication(appConfig)
	if err := application.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
		os.Exit(1)
	}
	defer application.Release()

	if initdb {
		application.InitDb()
		zap.S().Info("database initialized")
		return
	}

	gql, err := graphapi.New(application.FunkoService(), application.CategoryService())
	if err != nil {
		zap.S().Fatalf("graphql schema build failed: %v", err)
	}

	server, err := webserver.New(
		appConfig,
		application.FunkoService(),
		application.CategoryService(),
		application.UserService(),
		application.Files(),
		application.FunkoHub(),
		application.CategoryHub(),
		gql,
		application.Bridge(),
	)
	if err != nil {
		zap.S().Fatalf("web server build failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.S().Errorf("server exited: %v", err)
	}
}
