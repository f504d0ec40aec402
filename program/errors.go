package program

import (
	kylan "github.com/lightsparkdev/kylan-go"
	"github.com/lightsparkdev/kylan-go/ledger"
)

// Program errors start at 6000.
var (
	ErrOverflow           = ledger.NewCustomError(6000, "Overflow", "operation overflowed")
	ErrUninitializedCert  = ledger.NewCustomError(6001, "UninitializedCert", "cannot set the cert to uninitialized")
	ErrNotPrintable       = ledger.NewCustomError(6002, "NotPrintable", "the token isn't available to print")
	ErrNotBurnable        = ledger.NewCustomError(6003, "NotBurnable", "the token isn't available to burn")
	ErrInsufficientCheque = ledger.NewCustomError(6004, "InsufficientCheque", "the cheque has less outstanding than requested")
	ErrInvalidAmount      = ledger.NewCustomError(6005, "InvalidAmount", "the amount is zero or too small to convert")
	ErrInvalidPrice       = ledger.NewCustomError(6006, "InvalidPrice", "the price must be positive")
	ErrInvalidFee         = ledger.NewCustomError(6007, "InvalidFee", "the fee cannot exceed the precision")
)

// Instruction and account constraint errors.
var (
	ErrInvalidInstruction           = ledger.NewCustomError(100, "InstructionFallbackNotFound", "fallback functions are not supported")
	ErrInstructionDidNotDeserialize = ledger.NewCustomError(102, "InstructionDidNotDeserialize", "the program could not deserialize the given instruction")
	ErrConstraintHasOne             = ledger.NewCustomError(2001, "ConstraintHasOne", "a has one constraint was violated")
	ErrConstraintSigner             = ledger.NewCustomError(2002, "ConstraintSigner", "a signer constraint was violated")
	ErrConstraintSeeds              = ledger.NewCustomError(2006, "ConstraintSeeds", "a seeds constraint was violated")
	ErrConstraintAssociated         = ledger.NewCustomError(2009, "ConstraintAssociated", "an associated constraint was violated")
	ErrConstraintTokenMint          = ledger.NewCustomError(2014, "ConstraintTokenMint", "a token mint constraint was violated")
	ErrAccountDiscriminatorMismatch = ledger.NewCustomError(3002, "AccountDiscriminatorMismatch", "account discriminator did not match what was expected")
	ErrAccountDidNotDeserialize     = ledger.NewCustomError(3003, "AccountDidNotDeserialize", "failed to deserialize the account")
	ErrAccountOwnedByWrongProgram   = ledger.NewCustomError(3007, "AccountOwnedByWrongProgram", "the given account is owned by a different program than expected")
	ErrAccountNotInitialized        = ledger.NewCustomError(3012, "AccountNotInitialized", "the program expected this account to be already initialized")
)

// fromGuard converts a local check failure into the program error reported
// on the ledger. stateErr is used for state violations.
func fromGuard(err error, stateErr *ledger.ProgramError) error {
	if err == nil {
		return nil
	}
	message := err.Error()
	switch kylan.KindOf(err) {
	case kylan.KindStateViolation:
		return stateErr.Withf("%s", message)
	case kylan.KindInvalidAmount:
		return ErrInvalidAmount.Withf("%s", message)
	case kylan.KindInvalidRateParameters:
		return ErrInvalidPrice.Withf("%s", message)
	case kylan.KindOverflow:
		return ErrOverflow.Withf("%s", message)
	case kylan.KindInsufficientLedgerBalance:
		return ErrInsufficientCheque.Withf("%s", message)
	case kylan.KindCertificateViolation, kylan.KindLedgerRecordUninitialized:
		return ErrAccountNotInitialized.Withf("%s", message)
	default:
		return err
	}
}
