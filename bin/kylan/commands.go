package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/lightsparkdev/kylan-go/client"
	"github.com/lightsparkdev/kylan-go/schema"
)

// registerCommands adds every issuance command to cli.
func registerCommands(ctx context.Context, cli *CLI) {
	cli.registry.RegisterCommand(Command{
		Name:        "address",
		Description: "Show the signer address",
		Usage:       "address",
		Handler: func(_ []string) error {
			cli.printf("%s\n", cli.client.Config.SignerAddress())
			return nil
		},
	})

	cli.registry.RegisterCommand(Command{
		Name:        "create_printer",
		Description: "Create a printer and its stable token",
		Usage:       "create_printer [decimals]",
		Handler: func(args []string) error {
			decimals := uint64(6)
			if len(args) > 0 {
				var err error
				if decimals, err = strconv.ParseUint(args[0], 10, 8); err != nil {
					return fmt.Errorf("invalid decimals: %w", err)
				}
			}
			result, err := cli.client.CreatePrinter(ctx, uint8(decimals))
			if err != nil {
				return err
			}
			cli.printf("Printer: %s\nStable token: %s\nSignature: %s\n", result.Printer, result.StableToken, result.Signature)
			return nil
		},
	})

	cli.registry.RegisterCommand(Command{
		Name:        "init_cert",
		Description: "Whitelist a secure token on a printer",
		Usage:       "init_cert <printer> <secure_token> <taxman> <price> <fee>",
		Args:        5,
		Handler: func(args []string) error {
			addresses, err := parseAddresses(args, "printer", "secure token", "taxman")
			if err != nil {
				return err
			}
			price, err := parseRate("price", args[3])
			if err != nil {
				return err
			}
			fee, err := parseRate("fee", args[4])
			if err != nil {
				return err
			}
			signature, cert, err := cli.client.InitializeCert(ctx, addresses[0], addresses[1], addresses[2], price, fee)
			if err != nil {
				return err
			}
			cli.printf("Cert: %s\nSignature: %s\n", cert, signature)
			return nil
		},
	})

	cli.registry.RegisterCommand(Command{
		Name:        "init_cheque",
		Description: "Open your cheque for a cert",
		Usage:       "init_cheque <printer> <secure_token>",
		Args:        2,
		Handler: func(args []string) error {
			addresses, err := parseAddresses(args, "printer", "secure token")
			if err != nil {
				return err
			}
			signature, cheque, err := cli.client.InitializeCheque(ctx, addresses[0], addresses[1])
			if err != nil {
				return err
			}
			cli.printf("Cheque: %s\nSignature: %s\n", cheque, signature)
			return nil
		},
	})

	cli.registry.RegisterCommand(Command{
		Name:        "print",
		Description: "Deposit secure tokens and print stable tokens",
		Usage:       "print <printer> <secure_token> <amount>",
		Args:        3,
		Handler: func(args []string) error {
			addresses, err := parseAddresses(args, "printer", "secure token")
			if err != nil {
				return err
			}
			amount, err := parseAmount("amount", args[2])
			if err != nil {
				return err
			}
			result, err := cli.client.Print(ctx, addresses[0], addresses[1], amount)
			if err != nil {
				return err
			}
			cli.printf("Printed %d to %s\nSignature: %s\n", result.Amount, result.Destination, result.Signature)
			return nil
		},
	})

	cli.registry.RegisterCommand(Command{
		Name:        "burn",
		Description: "Burn stable tokens and redeem secure tokens",
		Usage:       "burn <printer> <secure_token> <amount>",
		Args:        3,
		Handler: func(args []string) error {
			addresses, err := parseAddresses(args, "printer", "secure token")
			if err != nil {
				return err
			}
			amount, err := parseAmount("amount", args[2])
			if err != nil {
				return err
			}
			result, err := cli.client.Burn(ctx, addresses[0], addresses[1], amount)
			if err != nil {
				return err
			}
			cli.printf("Redeemed %d to %s, fee %d\nSignature: %s\n", result.Amount, result.Destination, result.Fee, result.Signature)
			return nil
		},
	})

	cli.registry.RegisterCommand(Command{
		Name:        "set_state",
		Description: "Set the state of a cert",
		Usage:       "set_state <cert> <Active|PrintOnly|BurnOnly|Paused>",
		Args:        2,
		Handler: func(args []string) error {
			addresses, err := parseAddresses(args, "cert")
			if err != nil {
				return err
			}
			state, err := schema.ParseCertState(args[1])
			if err != nil {
				return err
			}
			signature, err := cli.client.SetCertState(ctx, addresses[0], state)
			if err != nil {
				return err
			}
			cli.printf("Signature: %s\n", signature)
			return nil
		},
	})

	cli.registry.RegisterCommand(Command{
		Name:        "set_fee",
		Description: "Set the burn fee of a cert",
		Usage:       "set_fee <cert> <fee>",
		Args:        2,
		Handler: func(args []string) error {
			addresses, err := parseAddresses(args, "cert")
			if err != nil {
				return err
			}
			fee, err := parseRate("fee", args[1])
			if err != nil {
				return err
			}
			signature, err := cli.client.SetCertFee(ctx, addresses[0], fee)
			if err != nil {
				return err
			}
			cli.printf("Signature: %s\n", signature)
			return nil
		},
	})

	cli.registry.RegisterCommand(Command{
		Name:        "set_taxman",
		Description: "Send the fees of a cert to a new collector",
		Usage:       "set_taxman <cert> <taxman_authority>",
		Args:        2,
		Handler: func(args []string) error {
			addresses, err := parseAddresses(args, "cert", "taxman authority")
			if err != nil {
				return err
			}
			signature, taxman, err := cli.client.SetCertTaxman(ctx, addresses[0], addresses[1])
			if err != nil {
				return err
			}
			cli.printf("Taxman: %s\nSignature: %s\n", taxman, signature)
			return nil
		},
	})

	cli.registry.RegisterCommand(Command{
		Name:        "transfer_authority",
		Description: "Hand a printer to a new authority",
		Usage:       "transfer_authority <printer> <new_authority>",
		Args:        2,
		Handler: func(args []string) error {
			addresses, err := parseAddresses(args, "printer", "new authority")
			if err != nil {
				return err
			}
			signature, err := cli.client.TransferAuthority(ctx, addresses[0], addresses[1])
			if err != nil {
				return err
			}
			cli.printf("Signature: %s\n", signature)
			return nil
		},
	})

	cli.registry.RegisterCommand(Command{
		Name:        "printer",
		Description: "Show a printer",
		Usage:       "printer <printer>",
		Args:        1,
		Handler: func(args []string) error {
			addresses, err := parseAddresses(args, "printer")
			if err != nil {
				return err
			}
			printer, err := cli.client.GetPrinterData(ctx, addresses[0])
			if err != nil {
				return err
			}
			treasurer, err := cli.client.DeriveTreasurerAddress(printer.StableToken)
			if err != nil {
				return err
			}
			cli.printf("Stable token: %s\nAuthority: %s\nDecimals: %d\nTreasurer: %s\n",
				printer.StableToken, printer.Authority, printer.Decimals, treasurer)
			return nil
		},
	})

	cli.registry.RegisterCommand(Command{
		Name:        "cert",
		Description: "Derive and show the cert of a pair",
		Usage:       "cert <printer> <secure_token>",
		Args:        2,
		Handler: func(args []string) error {
			addresses, err := parseAddresses(args, "printer", "secure token")
			if err != nil {
				return err
			}
			address, err := cli.client.DeriveCertAddress(ctx, addresses[0], addresses[1], true)
			if err != nil {
				return err
			}
			cert, err := cli.client.GetCertData(ctx, address)
			if err != nil {
				return err
			}
			cli.printf("Cert: %s\nState: %s\nPrice: %d\nFee: %d\nTaxman: %s\n",
				address, cert.State, cert.Price, cert.Fee, cert.Taxman)
			return nil
		},
	})

	cli.registry.RegisterCommand(Command{
		Name:        "cheque",
		Description: "Show your cheque for a pair",
		Usage:       "cheque <printer> <secure_token>",
		Args:        2,
		Handler: func(args []string) error {
			addresses, err := parseAddresses(args, "printer", "secure token")
			if err != nil {
				return err
			}
			address, err := cli.client.DeriveChequeAddress(ctx, addresses[0], addresses[1], cli.client.Config.SignerAddress(), true)
			if err != nil {
				return err
			}
			cheque, err := cli.client.GetChequeData(ctx, address)
			if err != nil {
				return err
			}
			cli.printf("Cheque: %s\nOutstanding: %d\n", address, cheque.Amount)
			return nil
		},
	})

	cli.registry.RegisterCommand(Command{
		Name:        "watch",
		Description: "Print every change to program records",
		Usage:       "watch",
		Handler: func(_ []string) error {
			handle, err := cli.client.Watch(ctx, func(change *client.Change, err error) {
				if err != nil {
					cli.printf("[watch] %v\n", err)
					return
				}
				cli.printf("[watch] %s %s %+v\n", change.Type, change.Address, change.Record)
			})
			if err != nil {
				return err
			}
			cli.printf("Watching: %s\n", handle)
			return nil
		},
	})

	cli.registry.RegisterCommand(Command{
		Name:        "unwatch",
		Description: "Stop a watch",
		Usage:       "unwatch <handle>",
		Args:        1,
		Handler: func(args []string) error {
			handle, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid handle: %w", err)
			}
			return cli.client.Unwatch(handle)
		},
	})
}
