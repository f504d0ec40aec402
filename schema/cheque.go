package schema

import (
	"encoding/binary"

	"github.com/lightsparkdev/kylan-go/common"
)

// Cheque is one owner's outstanding issuance against a cert, in stable units.
type Cheque struct {
	Amount      uint64
	Printer     common.Address
	SecureToken common.Address
	Authority   common.Address
}

func (c *Cheque) Marshal() []byte {
	data := make([]byte, ChequeSize)
	copy(data, ChequeDiscriminator[:])
	binary.LittleEndian.PutUint64(data[8:16], c.Amount)
	copy(data[16:48], c.Printer[:])
	copy(data[48:80], c.SecureToken[:])
	copy(data[80:112], c.Authority[:])
	return data
}

func UnmarshalCheque(data []byte) (*Cheque, error) {
	if err := checkHeader(data, RecordTypeCheque, ChequeDiscriminator); err != nil {
		return nil, err
	}
	return &Cheque{
		Amount:      binary.LittleEndian.Uint64(data[8:16]),
		Printer:     common.Address(data[16:48]),
		SecureToken: common.Address(data[48:80]),
		Authority:   common.Address(data[80:112]),
	}, nil
}
