// Package derive computes the addresses of the accounts controlled by the
// issuance program from their natural keys.
package derive

import (
	kylan "github.com/lightsparkdev/kylan-go"
	"github.com/lightsparkdev/kylan-go/common"
)

// TreasurerAddress is the custodian of a stable token: it holds the mint and
// freeze authority and owns every treasury.
func TreasurerAddress(stableToken, programID common.Address) (common.Address, uint8, error) {
	return common.FindProgramAddress([][]byte{stableToken[:]}, programID)
}

// CertAddress is the cert binding secureToken to printer.
func CertAddress(printer, secureToken, programID common.Address) (common.Address, uint8, error) {
	return common.FindProgramAddress([][]byte{kylan.CertSeed, printer[:], secureToken[:]}, programID)
}

// ChequeAddress is owner's outstanding issuance record for one cert.
func ChequeAddress(printer, secureToken, owner, programID common.Address) (common.Address, uint8, error) {
	return common.FindProgramAddress([][]byte{kylan.ChequeSeed, printer[:], secureToken[:], owner[:]}, programID)
}

// TreasurerSeeds returns the seeds the program signs with for the treasurer.
func TreasurerSeeds(stableToken common.Address, bump uint8) [][]byte {
	return [][]byte{stableToken[:], {bump}}
}

// CertSeeds returns the seeds of a cert including its bump.
func CertSeeds(printer, secureToken common.Address, bump uint8) [][]byte {
	return [][]byte{kylan.CertSeed, printer[:], secureToken[:], {bump}}
}

// ChequeSeeds returns the seeds of a cheque including its bump.
func ChequeSeeds(printer, secureToken, owner common.Address, bump uint8) [][]byte {
	return [][]byte{kylan.ChequeSeed, printer[:], secureToken[:], owner[:], {bump}}
}
