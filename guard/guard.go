// Package guard enforces the cert state machine and the local checks that
// must pass before a conversion is attempted. The same checks run in the
// client before a submission is built and in the program when it executes.
package guard

import (
	kylan "github.com/lightsparkdev/kylan-go"
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/lightsparkdev/kylan-go/conversion"
	"github.com/lightsparkdev/kylan-go/schema"
)

// ValidateAddress parses a caller supplied address.
func ValidateAddress(field, s string) (common.Address, error) {
	address, err := common.ParseAddress(s)
	if err != nil {
		return common.ZeroAddress, kylan.WrapError(kylan.KindInvalidIdentity, err, "%s is not a valid address", field)
	}
	return address, nil
}

// ValidateAmount rejects a zero conversion amount.
func ValidateAmount(amount uint64) error {
	if amount == 0 {
		return kylan.NewError(kylan.KindInvalidAmount, "amount must be positive")
	}
	return nil
}

// ValidateRate checks the price and fee of a new cert.
func ValidateRate(price, fee uint64) error {
	if price == 0 {
		return kylan.NewError(kylan.KindInvalidRateParameters, "price must be positive")
	}
	return ValidateFee(fee)
}

// ValidateFee checks that a fee is a share of at most Precision.
func ValidateFee(fee uint64) error {
	if fee > kylan.Precision {
		return kylan.NewError(kylan.KindInvalidRateParameters, "fee %d exceeds precision %d", fee, kylan.Precision)
	}
	return nil
}

// ValidateState checks a state the authority asks to set.
func ValidateState(state schema.CertState) error {
	if !state.Operational() {
		return kylan.NewError(kylan.KindStateViolation, "cert state cannot be set to %s", state)
	}
	return nil
}

func checkInitialized(cert *schema.Cert) error {
	if cert == nil || cert.State == schema.CertStateUninitialized {
		return kylan.NewError(kylan.KindCertificateViolation, "cert is not initialized")
	}
	return nil
}

// CheckPrint fails unless cert allows printing.
func CheckPrint(cert *schema.Cert) error {
	if err := checkInitialized(cert); err != nil {
		return err
	}
	if !cert.State.IsPrintable() {
		return kylan.NewError(kylan.KindStateViolation, "cert in state %s does not allow print", cert.State)
	}
	return nil
}

// CheckBurn fails unless cert allows burning.
func CheckBurn(cert *schema.Cert) error {
	if err := checkInitialized(cert); err != nil {
		return err
	}
	if !cert.State.IsBurnable() {
		return kylan.NewError(kylan.KindStateViolation, "cert in state %s does not allow burn", cert.State)
	}
	return nil
}

// Print validates a print of amount secure units and returns the stable units minted.
func Print(cert *schema.Cert, amount uint64) (uint64, error) {
	if err := ValidateAmount(amount); err != nil {
		return 0, err
	}
	if err := CheckPrint(cert); err != nil {
		return 0, err
	}
	return conversion.PrintAmount(amount, cert.Price)
}

// Burn validates a burn of amount stable units against the owner's cheque and
// returns the secure side of the redemption. The cheque is debited by amount.
func Burn(cert *schema.Cert, cheque *schema.Cheque, amount uint64) (conversion.Burn, error) {
	if err := ValidateAmount(amount); err != nil {
		return conversion.Burn{}, err
	}
	if err := CheckBurn(cert); err != nil {
		return conversion.Burn{}, err
	}
	if cheque == nil {
		return conversion.Burn{}, kylan.NewError(kylan.KindLedgerRecordUninitialized, "cheque is not initialized")
	}
	if cheque.Amount < amount {
		return conversion.Burn{}, kylan.NewError(kylan.KindInsufficientLedgerBalance,
			"burn of %d exceeds outstanding cheque balance %d", amount, cheque.Amount)
	}
	return conversion.BurnAmount(amount, cert.Price, cert.Fee)
}
