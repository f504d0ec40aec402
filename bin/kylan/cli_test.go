package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	kylan "github.com/lightsparkdev/kylan-go"
	"github.com/lightsparkdev/kylan-go/client"
	testutil "github.com/lightsparkdev/kylan-go/test_util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInput(t *testing.T) {
	tests := []struct {
		input   string
		command string
		args    []string
	}{
		{input: "", command: ""},
		{input: "  PRINT a b  1 ", command: "print", args: []string{"a", "b", "1"}},
		{input: "exit", command: "exit"},
	}
	for _, tt := range tests {
		command, args := parseInput(tt.input)
		assert.Equal(t, tt.command, command)
		assert.Equal(t, tt.args, args)
	}
}

func TestReadSigner(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)
	var out bytes.Buffer
	cli := NewCLI(strings.NewReader("not hex\nabcd\n"+hex.EncodeToString(seed)+"\n"), &out)

	signer, err := cli.ReadSigner()
	require.NoError(t, err)
	assert.Equal(t, seed, signer.Seed())
	assert.Contains(t, out.String(), "Invalid seed. Please enter a valid hex string.")
	assert.Contains(t, out.String(), "Invalid seed: seed must be 32 bytes")
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		want  uint64
		err   bool
	}{
		{input: "0", want: 0},
		{input: "18446744073709551615", want: 1<<64 - 1},
		{input: "-5", err: true},
		{input: "18446744073709551616", err: true},
		{input: "1.5", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			amount, err := parseAmount("amount", tt.input)
			if tt.err {
				assert.True(t, kylan.IsKind(err, kylan.KindInvalidAmount), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, amount)
		})
	}

	_, err := parseRate("price", "-1")
	assert.True(t, kylan.IsKind(err, kylan.KindInvalidRateParameters))
}

func TestCommands(t *testing.T) {
	ctx := context.Background()
	l, err := testutil.NewTestLedger()
	require.NoError(t, err)
	issuance, err := l.SetupIssuance(ctx, kylan.Precision, 0)
	require.NoError(t, err)
	holder, err := l.NewHolder(ctx, issuance, 1_000)
	require.NoError(t, err)

	var out bytes.Buffer
	cli := NewCLI(strings.NewReader(""), &out)
	cli.client = client.New(&client.Config{ProgramID: l.ProgramID, Signer: holder}, l)
	registerCommands(ctx, cli)

	printer, secure := issuance.Key.Printer, issuance.Key.SecureToken
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "signer address", input: "address", want: holder.Address().String()},
		{name: "print", input: fmt.Sprintf("print %s %s 600", printer, secure), want: "Printed 600 to"},
		{name: "cheque", input: fmt.Sprintf("cheque %s %s", printer, secure), want: "Outstanding: 600"},
		{name: "burn", input: fmt.Sprintf("burn %s %s 100", printer, secure), want: "Redeemed 100 to"},
		{name: "cert", input: fmt.Sprintf("cert %s %s", printer, secure), want: "State: Active"},
		{name: "printer", input: fmt.Sprintf("printer %s", printer), want: "Authority: " + issuance.Authority.Address().String()},
		{name: "missing args", input: "print " + printer.String(), want: "Usage: print <printer> <secure_token> <amount>"},
		{name: "bad address", input: fmt.Sprintf("print %s nope 1", printer), want: "secure token is not a valid address"},
		{name: "bad amount", input: fmt.Sprintf("print %s %s ten", printer, secure), want: "invalid amount"},
		{name: "negative amount", input: fmt.Sprintf("burn %s %s -5", printer, secure), want: "InvalidAmount"},
		{name: "negative fee", input: fmt.Sprintf("set_fee %s -1", issuance.Taxman), want: "InvalidRateParameters"},
		{name: "zero amount", input: fmt.Sprintf("print %s %s 0", printer, secure), want: "InvalidAmount"},
		{name: "not authority", input: fmt.Sprintf("set_fee %s 1", issuance.Taxman), want: "Error executing command"},
		{name: "bad state", input: fmt.Sprintf("set_state %s Frozen", printer), want: `unknown cert state "Frozen"`},
		{name: "unknown command", input: "mint", want: "Unknown command. Available commands:\n  address - Show the signer address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			cli.Execute(tt.input)
			assert.Contains(t, out.String(), tt.want)
		})
	}
}
