package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cbegin/sonoscope-go/internal/config"
	"github.com/cbegin/sonoscope-go/internal/dataserver"
	"github.com/cbegin/sonoscope-go/internal/embedding"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		addr       = flag.String("addr", "", "listen address (overrides config)")
		csvPath    = flag.String("csv", "", "serve a numeric CSV instead of the bundled Iris table")
		origins    = flag.String("origins", "", "comma-separated CORS origins; * allows any")
		clusters   = flag.Int("clusters", 0, "number of k-means clusters")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *csvPath != "" {
		cfg.Server.CSV = *csvPath
	}
	if *origins != "" {
		cfg.Server.AllowedOrigins = strings.Split(*origins, ",")
	}
	if *clusters > 0 {
		cfg.Server.Clusters = *clusters
	}

	tbl := embedding.Iris()
	source := "iris"
	if cfg.Server.CSV != "" {
		tbl, err = embedding.LoadCSV(cfg.Server.CSV)
		if err != nil {
			log.Fatal(err)
		}
		source = cfg.Server.CSV
	}
	points, err := embedding.Build(tbl, embedding.Options{Clusters: cfg.Server.Clusters, Seed: cfg.Server.Seed})
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("prepared %d points from %s (%d features, %d clusters)", len(points), source, len(tbl.Names), cfg.Server.Clusters)

	logger := log.New(os.Stderr, "", log.LstdFlags)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           dataserver.New(points, cfg.Server.AllowedOrigins, logger).Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()
	log.Printf("serving on %s (CORS origins %v)", cfg.Server.Addr, cfg.Server.AllowedOrigins)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatal(err)
		}
	case <-ctx.Done():
		log.Println("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}
}
