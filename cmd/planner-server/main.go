package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"github.com/danielpatrickdp/trust-planner/internal/config"
	"github.com/danielpatrickdp/trust-planner/internal/logging"
	"github.com/danielpatrickdp/trust-planner/internal/rpc"
)

// #region main
func main() {
	configPath := flag.String("config", "", "YAML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	workers := flag.Int("workers", 0, "planner workers per stage (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.RPC.Addr = *addr
	}
	if *workers > 0 {
		cfg.Robot.Planner.Workers = *workers
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("log level: %v", err)
	}
	if err := logging.Init(level, cfg.Log.Format, nil); err != nil {
		log.Fatalf("log format: %v", err)
	}
	logger := logging.New("rpc")

	lis, err := net.Listen("tcp", cfg.RPC.Addr)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.RPC.Addr, err)
	}

	srv := grpc.NewServer()
	rpc.RegisterPlannerServiceServer(srv, rpc.NewServer(cfg.Robot.Planner, logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		srv.GracefulStop()
	}()

	fmt.Printf("Planner server listening on %s (workers=%d)\n", lis.Addr(), cfg.Robot.Planner.Workers)
	if err := srv.Serve(lis); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// #endregion main
