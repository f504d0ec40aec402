package schema

import (
	"encoding/binary"
	"fmt"

	"github.com/lightsparkdev/kylan-go/common"
)

// Cert binds one secure token to a printer with a price, a redemption fee and
// the token account that collects that fee.
type Cert struct {
	Printer     common.Address
	SecureToken common.Address
	// Price is stable units per secure unit, scaled by kylan.Precision.
	Price uint64
	// Fee is the share of a redemption kept by the taxman, scaled by kylan.Precision.
	Fee    uint64
	Taxman common.Address
	State  CertState
}

func (c *Cert) Marshal() []byte {
	data := make([]byte, CertSize)
	copy(data, CertDiscriminator[:])
	copy(data[8:40], c.Printer[:])
	copy(data[40:72], c.SecureToken[:])
	binary.LittleEndian.PutUint64(data[72:80], c.Price)
	binary.LittleEndian.PutUint64(data[80:88], c.Fee)
	copy(data[88:120], c.Taxman[:])
	data[120] = uint8(c.State)
	return data
}

func UnmarshalCert(data []byte) (*Cert, error) {
	if err := checkHeader(data, RecordTypeCert, CertDiscriminator); err != nil {
		return nil, err
	}
	state := CertState(data[120])
	if !state.Valid() {
		return nil, fmt.Errorf("invalid cert state %d", data[120])
	}
	return &Cert{
		Printer:     common.Address(data[8:40]),
		SecureToken: common.Address(data[40:72]),
		Price:       binary.LittleEndian.Uint64(data[72:80]),
		Fee:         binary.LittleEndian.Uint64(data[80:88]),
		Taxman:      common.Address(data[88:120]),
		State:       state,
	}, nil
}
