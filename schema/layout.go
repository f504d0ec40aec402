package schema

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

// DiscriminatorLength is the size of the tag that prefixes every record.
const DiscriminatorLength = 8

const (
	// PrinterSize is discriminator, stable_token, authority, decimals.
	PrinterSize = DiscriminatorLength + 32 + 32 + 1
	// CertSize is discriminator, printer, secure_token, price, fee, taxman, state.
	CertSize = DiscriminatorLength + 32 + 32 + 8 + 8 + 32 + 1
	// ChequeSize is discriminator, amount, printer, secure_token, authority.
	ChequeSize = DiscriminatorLength + 8 + 32 + 32 + 32
)

// RecordType names one of the three records owned by the issuance program.
type RecordType string

const (
	RecordTypePrinter RecordType = "Printer"
	RecordTypeCert    RecordType = "Cert"
	RecordTypeCheque  RecordType = "Cheque"
)

var (
	// ErrUnmatchedType is returned when a buffer length matches none of the records.
	ErrUnmatchedType = errors.New("unmatched record type")
	// ErrDiscriminatorMismatch is returned when a buffer carries another record's tag.
	ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")
)

var (
	PrinterDiscriminator = AccountDiscriminator(string(RecordTypePrinter))
	CertDiscriminator    = AccountDiscriminator(string(RecordTypeCert))
	ChequeDiscriminator  = AccountDiscriminator(string(RecordTypeCheque))
)

// AccountDiscriminator is the first eight bytes of sha256("account:<name>").
func AccountDiscriminator(name string) [DiscriminatorLength]byte {
	return prefixHash("account:" + name)
}

// InstructionDiscriminator is the first eight bytes of sha256("global:<name>").
func InstructionDiscriminator(name string) [DiscriminatorLength]byte {
	return prefixHash("global:" + name)
}

func prefixHash(preimage string) [DiscriminatorLength]byte {
	sum := sha256.Sum256([]byte(preimage))
	var d [DiscriminatorLength]byte
	copy(d[:], sum[:DiscriminatorLength])
	return d
}

// Size returns the fixed byte length of a record type.
func (t RecordType) Size() int {
	switch t {
	case RecordTypePrinter:
		return PrinterSize
	case RecordTypeCert:
		return CertSize
	case RecordTypeCheque:
		return ChequeSize
	default:
		return 0
	}
}

// Classify identifies a record by its exact length.
func Classify(data []byte) (RecordType, error) {
	switch len(data) {
	case PrinterSize:
		return RecordTypePrinter, nil
	case CertSize:
		return RecordTypeCert, nil
	case ChequeSize:
		return RecordTypeCheque, nil
	default:
		return "", fmt.Errorf("%w: %d bytes", ErrUnmatchedType, len(data))
	}
}

// Decode classifies data and decodes it into *Printer, *Cert or *Cheque.
func Decode(data []byte) (RecordType, any, error) {
	recordType, err := Classify(data)
	if err != nil {
		return "", nil, err
	}
	switch recordType {
	case RecordTypePrinter:
		printer, err := UnmarshalPrinter(data)
		return recordType, printer, err
	case RecordTypeCert:
		cert, err := UnmarshalCert(data)
		return recordType, cert, err
	default:
		cheque, err := UnmarshalCheque(data)
		return recordType, cheque, err
	}
}

func checkHeader(data []byte, recordType RecordType, discriminator [DiscriminatorLength]byte) error {
	if len(data) >= DiscriminatorLength && [DiscriminatorLength]byte(data[:DiscriminatorLength]) != discriminator {
		return fmt.Errorf("%w: expected %s", ErrDiscriminatorMismatch, recordType)
	}
	if len(data) != recordType.Size() {
		return fmt.Errorf("%s record must be %d bytes, got %d", recordType, recordType.Size(), len(data))
	}
	return nil
}
