package ledger

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/lightsparkdev/kylan-go/common"
	"github.com/mr-tron/base58"
	"google.golang.org/protobuf/encoding/protowire"
)

// AccountMeta is one account referenced by an instruction and the privileges
// the instruction grants the program over it.
type AccountMeta struct {
	Address    common.Address
	IsSigner   bool
	IsWritable bool
}

// Writable is a writable, non-signing account reference.
func Writable(address common.Address) AccountMeta {
	return AccountMeta{Address: address, IsWritable: true}
}

// Readonly is a read-only, non-signing account reference.
func Readonly(address common.Address) AccountMeta {
	return AccountMeta{Address: address}
}

// Signer is a writable account reference that must sign.
func Signer(address common.Address) AccountMeta {
	return AccountMeta{Address: address, IsSigner: true, IsWritable: true}
}

// Instruction is a call into one program.
type Instruction struct {
	ProgramID common.Address
	Accounts  []AccountMeta
	Data      []byte
}

// Signature pairs a signer with its signature over the transaction message.
type Signature struct {
	Signer common.Address
	Bytes  []byte
}

// Transaction is an ordered list of instructions that commits atomically.
type Transaction struct {
	// Nonce makes otherwise identical transactions distinct.
	Nonce        uuid.UUID
	Instructions []Instruction
	Signatures   []Signature
}

// NewTransaction returns an unsigned transaction with a fresh nonce.
func NewTransaction(instructions ...Instruction) *Transaction {
	return &Transaction{Nonce: uuid.New(), Instructions: instructions}
}

// RequiredSigners returns, in first-seen order, every address any top level
// instruction marks as a signer.
func (tx *Transaction) RequiredSigners() []common.Address {
	var signers []common.Address
	for _, ix := range tx.Instructions {
		for _, meta := range ix.Accounts {
			if meta.IsSigner {
				signers = append(signers, meta.Address)
			}
		}
	}
	return common.Unique(signers)
}

// Sign adds a signature for each signer, replacing any earlier one by the same signer.
func (tx *Transaction) Sign(signers ...common.Signer) error {
	message := tx.Message()
	for _, signer := range signers {
		sig, err := signer.Sign(message)
		if err != nil {
			return fmt.Errorf("failed to sign transaction with %s: %w", signer.Address(), err)
		}
		replaced := false
		for i := range tx.Signatures {
			if tx.Signatures[i].Signer == signer.Address() {
				tx.Signatures[i].Bytes = sig
				replaced = true
			}
		}
		if !replaced {
			tx.Signatures = append(tx.Signatures, Signature{Signer: signer.Address(), Bytes: sig})
		}
	}
	return nil
}

// Verify checks that every required signer produced a valid signature.
func (tx *Transaction) Verify() error {
	if len(tx.Instructions) == 0 {
		return ErrNoInstructions
	}
	message := tx.Message()
	signed := make(map[common.Address][]byte, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		if !common.VerifySignature(sig.Signer, message, sig.Bytes) {
			return fmt.Errorf("%w: invalid signature by %s", ErrSignatureVerification, sig.Signer)
		}
		signed[sig.Signer] = sig.Bytes
	}
	for _, signer := range tx.RequiredSigners() {
		if _, ok := signed[signer]; !ok {
			return fmt.Errorf("%w: missing signature by %s", ErrSignatureVerification, signer)
		}
	}
	return nil
}

// ID is the base58 encoding of the first signature, or "" when unsigned.
func (tx *Transaction) ID() string {
	if len(tx.Signatures) == 0 {
		return ""
	}
	return base58.Encode(tx.Signatures[0].Bytes)
}

const (
	txFieldMessage    protowire.Number = 1
	txFieldSignatures protowire.Number = 2

	messageFieldNonce        protowire.Number = 1
	messageFieldInstructions protowire.Number = 2

	instructionFieldProgram  protowire.Number = 1
	instructionFieldAccounts protowire.Number = 2
	instructionFieldData     protowire.Number = 3

	metaFieldAddress  protowire.Number = 1
	metaFieldSigner   protowire.Number = 2
	metaFieldWritable protowire.Number = 3

	signatureFieldSigner    protowire.Number = 1
	signatureFieldSignature protowire.Number = 2
)

func appendBytesField(b []byte, num protowire.Number, value []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, value)
}

func appendBoolField(b []byte, num protowire.Number, value bool) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(value))
}

// Message is the byte string every signer signs.
func (tx *Transaction) Message() []byte {
	var b []byte
	b = appendBytesField(b, messageFieldNonce, tx.Nonce[:])
	for _, ix := range tx.Instructions {
		var ixb []byte
		ixb = appendBytesField(ixb, instructionFieldProgram, ix.ProgramID[:])
		for _, meta := range ix.Accounts {
			var mb []byte
			mb = appendBytesField(mb, metaFieldAddress, meta.Address[:])
			mb = appendBoolField(mb, metaFieldSigner, meta.IsSigner)
			mb = appendBoolField(mb, metaFieldWritable, meta.IsWritable)
			ixb = appendBytesField(ixb, instructionFieldAccounts, mb)
		}
		ixb = appendBytesField(ixb, instructionFieldData, ix.Data)
		b = appendBytesField(b, messageFieldInstructions, ixb)
	}
	return b
}

// MarshalTransaction encodes a signed transaction for submission.
func MarshalTransaction(tx *Transaction) []byte {
	var b []byte
	b = appendBytesField(b, txFieldMessage, tx.Message())
	for _, sig := range tx.Signatures {
		var sb []byte
		sb = appendBytesField(sb, signatureFieldSigner, sig.Signer[:])
		sb = appendBytesField(sb, signatureFieldSignature, sig.Bytes)
		b = appendBytesField(b, txFieldSignatures, sb)
	}
	return b
}

// UnmarshalTransaction decodes a transaction written by MarshalTransaction.
func UnmarshalTransaction(b []byte) (*Transaction, error) {
	tx := &Transaction{}
	err := walkFields(b, func(num protowire.Number, value []byte) error {
		switch num {
		case txFieldMessage:
			return decodeMessage(tx, value)
		case txFieldSignatures:
			sig, err := decodeSignature(value)
			if err != nil {
				return err
			}
			tx.Signatures = append(tx.Signatures, sig)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	return tx, nil
}

func decodeMessage(tx *Transaction, b []byte) error {
	return walkFields(b, func(num protowire.Number, value []byte) error {
		switch num {
		case messageFieldNonce:
			nonce, err := uuid.FromBytes(value)
			if err != nil {
				return err
			}
			tx.Nonce = nonce
		case messageFieldInstructions:
			ix, err := decodeInstruction(value)
			if err != nil {
				return err
			}
			tx.Instructions = append(tx.Instructions, ix)
		}
		return nil
	})
}

func decodeInstruction(b []byte) (Instruction, error) {
	var ix Instruction
	err := walkFields(b, func(num protowire.Number, value []byte) error {
		var err error
		switch num {
		case instructionFieldProgram:
			ix.ProgramID, err = common.AddressFromBytes(value)
		case instructionFieldAccounts:
			var meta AccountMeta
			meta, err = decodeMeta(value)
			ix.Accounts = append(ix.Accounts, meta)
		case instructionFieldData:
			ix.Data = bytes.Clone(value)
		}
		return err
	})
	return ix, err
}

func decodeMeta(b []byte) (AccountMeta, error) {
	var meta AccountMeta
	err := walkFields(b, func(num protowire.Number, value []byte) error {
		var err error
		switch num {
		case metaFieldAddress:
			meta.Address, err = common.AddressFromBytes(value)
		case metaFieldSigner:
			meta.IsSigner, err = decodeBool(value)
		case metaFieldWritable:
			meta.IsWritable, err = decodeBool(value)
		}
		return err
	})
	return meta, err
}

func decodeSignature(b []byte) (Signature, error) {
	var sig Signature
	err := walkFields(b, func(num protowire.Number, value []byte) error {
		var err error
		switch num {
		case signatureFieldSigner:
			sig.Signer, err = common.AddressFromBytes(value)
		case signatureFieldSignature:
			sig.Bytes = bytes.Clone(value)
		}
		return err
	})
	return sig, err
}

func decodeBool(b []byte) (bool, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return false, protowire.ParseError(n)
	}
	return protowire.DecodeBool(v), nil
}
