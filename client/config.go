package client

import (
	kylan "github.com/lightsparkdev/kylan-go"
	"github.com/lightsparkdev/kylan-go/common"
)

// Config is the configuration for the client.
type Config struct {
	// ProgramID is the address of the issuance program.
	ProgramID common.Address
	// Signer signs and pays for every submission. It is the printer
	// authority for admin operations and the cheque owner for conversions.
	Signer common.Signer
}

// DefaultConfig returns a config for signer against the default program.
func DefaultConfig(signer common.Signer) *Config {
	return &Config{
		ProgramID: common.MustParseAddress(kylan.DefaultProgramID),
		Signer:    signer,
	}
}

// SignerAddress returns the address of the signer.
func (c *Config) SignerAddress() common.Address {
	return c.Signer.Address()
}
