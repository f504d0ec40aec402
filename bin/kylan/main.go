package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	kylan "github.com/lightsparkdev/kylan-go"
	"github.com/lightsparkdev/kylan-go/client"
	"github.com/lightsparkdev/kylan-go/common"
	ledgergrpc "github.com/lightsparkdev/kylan-go/ledger/grpc"
)

func main() {
	address := flag.String("ledger", "localhost:8535", "Ledger gRPC address")
	certPath := flag.String("cert", "", "Ledger TLS certificate, empty for plaintext")
	programID := flag.String("program", kylan.DefaultProgramID, "Issuance program address")
	flag.Parse()

	if !common.IsAddress(*programID) {
		log.Fatalf("Invalid program address %q", *programID)
	}

	conn, err := common.NewGRPCConnection(*address, certPath, nil)
	if err != nil {
		log.Fatalf("Failed to connect to ledger: %v", err)
	}
	defer conn.Close()

	cli := NewCLI(os.Stdin, os.Stdout)
	fmt.Println("Welcome to the Kylan CLI!")
	signer, err := cli.ReadSigner()
	if err != nil {
		log.Fatalf("Failed to read signer: %v", err)
	}

	config := client.DefaultConfig(signer)
	config.ProgramID = common.MustParseAddress(*programID)
	cli.client = client.New(config, ledgergrpc.NewClient(conn))

	ctx := context.Background()
	registerCommands(ctx, cli)
	cli.registry.RegisterCommand(Command{
		Name:        "exit",
		Description: "Exit the program",
		Usage:       "exit",
		Handler: func(_ []string) error {
			fmt.Println("Goodbye!")
			os.Exit(0)
			return nil
		},
	})

	fmt.Printf("\nSigner %s ready for commands.\n", signer.Address())
	if err := cli.Run(); err != nil {
		log.Fatalf("CLI failed: %v", err)
	}
}
