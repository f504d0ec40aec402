package ledger

import (
	"errors"
	"fmt"

	"github.com/lightsparkdev/kylan-go/common"
)

var (
	// ErrAccountNotFound is returned when no account is stored at an address.
	ErrAccountNotFound = errors.New("account not found")
	// ErrNoInstructions is returned for a transaction without instructions.
	ErrNoInstructions = errors.New("transaction has no instructions")
	// ErrSignatureVerification is returned when a required signature is missing or invalid.
	ErrSignatureVerification = errors.New("transaction signature verification failed")
	// ErrAlreadyProcessed is returned when a transaction with the same signature was committed.
	ErrAlreadyProcessed = errors.New("transaction already processed")
	// ErrInvalidTransaction is returned when a transaction cannot be decoded.
	ErrInvalidTransaction = errors.New("invalid transaction encoding")
	// ErrSubscriptionNotFound is returned when unsubscribing an unknown handle.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// ProgramError is a failure raised while a program executes an instruction.
// Custom errors carry a program defined code; builtin errors are raised by the
// ledger runtime itself.
type ProgramError struct {
	Code    uint32
	Name    string
	Message string
	Custom  bool
}

func (e *ProgramError) Error() string {
	if e.Custom {
		return fmt.Sprintf("custom program error %d (%s): %s", e.Code, e.Name, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Is matches program errors by code regardless of message.
func (e *ProgramError) Is(target error) bool {
	t, ok := target.(*ProgramError)
	if !ok {
		return false
	}
	return t.Custom == e.Custom && t.Code == e.Code
}

// Withf returns a copy of the error with a more specific message.
func (e *ProgramError) Withf(format string, args ...any) *ProgramError {
	return &ProgramError{Code: e.Code, Name: e.Name, Message: fmt.Sprintf(format, args...), Custom: e.Custom}
}

// NewCustomError defines a program specific error.
func NewCustomError(code uint32, name, message string) *ProgramError {
	return &ProgramError{Code: code, Name: name, Message: message, Custom: true}
}

func builtin(code uint32, name, message string) *ProgramError {
	return &ProgramError{Code: code, Name: name, Message: message}
}

var (
	ErrGenericProgram              = builtin(0, "GenericError", "program failed")
	ErrInvalidArgument             = builtin(1, "InvalidArgument", "invalid argument provided to program")
	ErrInvalidInstructionData      = builtin(2, "InvalidInstructionData", "invalid instruction data")
	ErrInvalidAccountData          = builtin(3, "InvalidAccountData", "invalid account data for instruction")
	ErrMissingRequiredSignature    = builtin(4, "MissingRequiredSignature", "missing required signature for instruction")
	ErrNotEnoughAccountKeys        = builtin(5, "NotEnoughAccountKeys", "insufficient account keys for instruction")
	ErrExternalAccountDataModified = builtin(6, "ExternalAccountDataModified", "program modified an account it does not own")
	ErrReadonlyDataModified        = builtin(7, "ReadonlyDataModified", "instruction modified data of a read-only account")
	ErrModifiedProgramID           = builtin(8, "ModifiedProgramId", "instruction illegally modified the owner of an account")
	ErrPrivilegeEscalation         = builtin(9, "PrivilegeEscalation", "cross-program invocation with unauthorized signer or writable account")
	ErrUnknownProgram              = builtin(10, "UnknownProgram", "instruction targets an unknown program")
	ErrCallDepth                   = builtin(11, "CallDepth", "cross-program invocation call depth too deep")
	ErrInvalidSeeds                = builtin(12, "InvalidSeeds", "provided seeds do not result in a valid address")
)

// InstructionError reports which instruction of a transaction failed, the
// program that raised the failure, and the failure itself.
type InstructionError struct {
	Index   int
	Program common.Address
	Err     *ProgramError
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d failed in program %s: %v", e.Index, e.Program, e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}

// toProgramError converts whatever a program returned into a program error.
func toProgramError(err error) *ProgramError {
	var programErr *ProgramError
	if errors.As(err, &programErr) {
		if programErr.Message == "" {
			return programErr.Withf("%s", err.Error())
		}
		return programErr
	}
	return ErrGenericProgram.Withf("%s", err.Error())
}
