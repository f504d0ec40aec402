package ledger

import (
	"bytes"
	"fmt"

	"github.com/lightsparkdev/kylan-go/common"
	"google.golang.org/protobuf/encoding/protowire"
)

// SystemProgramID owns every address that holds no data.
var SystemProgramID = common.ZeroAddress

// Account is the state stored at one address.
type Account struct {
	Address common.Address
	Owner   common.Address
	Data    []byte
}

// IsEmpty reports whether the account has never been assigned to a program.
func (a *Account) IsEmpty() bool {
	return a.Owner == SystemProgramID && len(a.Data) == 0
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	return &Account{Address: a.Address, Owner: a.Owner, Data: bytes.Clone(a.Data)}
}

func (a *Account) Equal(b *Account) bool {
	return a.Address == b.Address && a.Owner == b.Owner && bytes.Equal(a.Data, b.Data)
}

func emptyAccount(address common.Address) *Account {
	return &Account{Address: address, Owner: SystemProgramID}
}

const (
	accountFieldAddress protowire.Number = 1
	accountFieldOwner   protowire.Number = 2
	accountFieldData    protowire.Number = 3
)

// MarshalAccount encodes an account in protobuf wire format.
func MarshalAccount(a *Account) []byte {
	var b []byte
	b = protowire.AppendTag(b, accountFieldAddress, protowire.BytesType)
	b = protowire.AppendBytes(b, a.Address[:])
	b = protowire.AppendTag(b, accountFieldOwner, protowire.BytesType)
	b = protowire.AppendBytes(b, a.Owner[:])
	b = protowire.AppendTag(b, accountFieldData, protowire.BytesType)
	b = protowire.AppendBytes(b, a.Data)
	return b
}

// UnmarshalAccount decodes an account written by MarshalAccount.
func UnmarshalAccount(b []byte) (*Account, error) {
	account := &Account{}
	err := walkFields(b, func(num protowire.Number, value []byte) error {
		var err error
		switch num {
		case accountFieldAddress:
			account.Address, err = common.AddressFromBytes(value)
		case accountFieldOwner:
			account.Owner, err = common.AddressFromBytes(value)
		case accountFieldData:
			account.Data = bytes.Clone(value)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	return account, nil
}

// walkFields calls fn for each length-delimited field of a message. Varint
// fields are passed as their protowire encoding.
func walkFields(b []byte, fn func(protowire.Number, []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.BytesType:
			value, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			if err := fn(num, value); err != nil {
				return err
			}
			b = b[n:]
		case protowire.VarintType:
			_, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			if err := fn(num, b[:n]); err != nil {
				return err
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}
