package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/common/logging"
	"github.com/lightsparkdev/kylan-go/ledger"
	ledgergrpc "github.com/lightsparkdev/kylan-go/ledger/grpc"
	"github.com/lightsparkdev/kylan-go/ledger/native"
	"github.com/lightsparkdev/kylan-go/ledger/store"
	"github.com/lightsparkdev/kylan-go/ledger/task"
	"github.com/lightsparkdev/kylan-go/program"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// loadArgs applies command line flags over the environment configuration.
func loadArgs() (*ledger.Config, error) {
	config, err := ledger.LoadConfig()
	if err != nil {
		return nil, err
	}

	flag.Uint64Var(&config.Port, "port", config.Port, "Port value")
	flag.StringVar(&config.DatabasePath, "database", config.DatabasePath, "Path to database file, postgres connection string or :memory:")
	flag.StringVar(&config.ProgramID, "program", config.ProgramID, "Issuance program address")
	flag.DurationVar(&config.AuditInterval, "audit-interval", config.AuditInterval, "Custody audit interval, 0 to disable")
	flag.IntVar(&config.SubscriptionBuffer, "subscription-buffer", config.SubscriptionBuffer, "Per subscription change buffer")
	flag.StringVar(&config.ServerCertPath, "cert", config.ServerCertPath, "TLS certificate file")
	flag.StringVar(&config.ServerKeyPath, "tls-key", config.ServerKeyPath, "TLS key file")
	flag.Parse()

	if config.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if !common.IsAddress(config.ProgramID) {
		return nil, fmt.Errorf("program %q is not a valid address", config.ProgramID)
	}
	if (config.ServerCertPath == "") != (config.ServerKeyPath == "") {
		return nil, fmt.Errorf("cert and tls-key must be set together")
	}
	return config, nil
}

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)

	config, err := loadArgs()
	if err != nil {
		log.Fatalf("Failed to load args: %v", err)
	}

	logger := slog.Default()
	ctx, stop := signal.NotifyContext(logging.Inject(context.Background(), logger), os.Interrupt, syscall.SIGTERM)
	defer stop()

	accountStore, err := store.Open(ctx, config)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	programID := common.MustParseAddress(config.ProgramID)
	programs := append(native.Programs(), program.New(programID))
	l := ledger.New(accountStore, programs, ledger.WithSubscriptionBuffer(config.SubscriptionBuffer))
	defer l.Close()

	s, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := task.Schedule(ctx, s, l, programID, task.AllTasks(config)); err != nil {
		log.Fatalf("Failed to schedule tasks: %v", err)
	}
	s.Start()

	serverOpts := append(ledgergrpc.ServerOptions(), grpc.StatsHandler(otelgrpc.NewServerHandler()))
	if config.TLSEnabled() {
		creds, err := credentials.NewServerTLSFromFile(config.ServerCertPath, config.ServerKeyPath)
		if err != nil {
			log.Fatalf("Failed to load TLS credentials: %v", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}
	grpcServer := grpc.NewServer(serverOpts...)
	ledgergrpc.RegisterLedgerServer(grpcServer, ledgergrpc.NewServer(l))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", config.Port))
	if err != nil {
		log.Fatalf("Failed to listen on port %d: %v", config.Port, err)
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down")
		if err := s.Shutdown(); err != nil {
			logger.Error("Failed to stop scheduler", "error", err)
		}
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(10 * time.Second):
			grpcServer.Stop()
		}
	}()

	logger.Info("Serving ledger",
		"port", config.Port,
		"program", programID,
		"database", config.DatabaseDriver(),
		"tls", config.TLSEnabled(),
	)
	if err := grpcServer.Serve(lis); err != nil {
		log.Fatalf("Failed to serve: %v", err)
	}
}
