package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	kylan "github.com/lightsparkdev/kylan-go"
	"github.com/lightsparkdev/kylan-go/client"
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/guard"
)

// Command represents a CLI command and its handler function
type Command struct {
	Name        string
	Description string
	Usage       string
	// Args is the number of required arguments.
	Args    int
	Handler func(args []string) error
}

// CommandRegistry manages the available commands
type CommandRegistry struct {
	commands map[string]Command
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]Command),
	}
}

// RegisterCommand adds a new command to the registry
func (r *CommandRegistry) RegisterCommand(cmd Command) {
	r.commands[strings.ToLower(cmd.Name)] = cmd
}

// GetCommand retrieves a command from the registry
func (r *CommandRegistry) GetCommand(name string) (Command, bool) {
	cmd, exists := r.commands[strings.ToLower(name)]
	return cmd, exists
}

// ListCommands returns all available commands sorted by name
func (r *CommandRegistry) ListCommands() []Command {
	cmdList := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmdList = append(cmdList, cmd)
	}
	sort.Slice(cmdList, func(i, j int) bool { return cmdList[i].Name < cmdList[j].Name })
	return cmdList
}

// CLI represents the command-line interface
type CLI struct {
	registry *CommandRegistry
	reader   *bufio.Reader
	client   *client.Client

	mu  sync.Mutex
	out io.Writer
}

// NewCLI creates a new CLI instance
func NewCLI(in io.Reader, out io.Writer) *CLI {
	return &CLI{
		registry: NewCommandRegistry(),
		reader:   bufio.NewReader(in),
		out:      out,
	}
}

func (cli *CLI) printf(format string, args ...any) {
	cli.mu.Lock()
	defer cli.mu.Unlock()
	fmt.Fprintf(cli.out, format, args...)
}

// parseInput splits the input into command and arguments
func parseInput(input string) (string, []string) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return "", nil
	}

	command := strings.ToLower(parts[0])
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return command, args
}

// ReadSigner prompts for the hex seed of the signing key.
func (cli *CLI) ReadSigner() (*common.Keypair, error) {
	for {
		cli.printf("Enter your secret seed: ")
		input, err := cli.reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("error reading input: %w", err)
		}

		seed, err := hex.DecodeString(strings.TrimSpace(input))
		if err != nil {
			cli.printf("Invalid seed. Please enter a valid hex string.\n")
			continue
		}
		keypair, err := common.KeypairFromSeed(seed)
		if err != nil {
			cli.printf("Invalid seed: %v\n", err)
			continue
		}
		return keypair, nil
	}
}

// Execute runs one line of input.
func (cli *CLI) Execute(input string) {
	command, args := parseInput(strings.TrimSpace(input))
	if command == "" {
		return
	}

	cmd, exists := cli.registry.GetCommand(command)
	if !exists {
		cli.printf("Unknown command. Available commands:\n")
		for _, cmd := range cli.registry.ListCommands() {
			cli.printf("  %s - %s\n", cmd.Usage, cmd.Description)
		}
		return
	}
	if len(args) < cmd.Args {
		cli.printf("Usage: %s\n", cmd.Usage)
		return
	}
	if err := cmd.Handler(args); err != nil {
		cli.printf("Error executing command: %v\n", err)
	}
}

// Run starts the CLI loop. It returns nil at end of input.
func (cli *CLI) Run() error {
	for {
		cli.printf("> ")
		input, err := cli.reader.ReadString('\n')
		if err == io.EOF {
			cli.Execute(input)
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading input: %w", err)
		}
		cli.Execute(input)
	}
}

func parseAddresses(args []string, fields ...string) ([]common.Address, error) {
	addresses := make([]common.Address, len(fields))
	for i, field := range fields {
		address, err := guard.ValidateAddress(field, args[i])
		if err != nil {
			return nil, err
		}
		addresses[i] = address
	}
	return addresses, nil
}

func parseAmount(field, s string) (uint64, error) {
	return parseUint(kylan.KindInvalidAmount, field, s)
}

func parseRate(field, s string) (uint64, error) {
	return parseUint(kylan.KindInvalidRateParameters, field, s)
}

func parseUint(kind kylan.Kind, field, s string) (uint64, error) {
	value, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, kylan.WrapError(kind, err, "invalid %s %q", field, s)
	}
	return value, nil
}
