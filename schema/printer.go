package schema

import (
	"github.com/lightsparkdev/kylan-go/common"
)

// Printer is the issuance root for one stable token.
type Printer struct {
	StableToken common.Address
	Authority   common.Address
	Decimals    uint8
}

func (p *Printer) Marshal() []byte {
	data := make([]byte, PrinterSize)
	copy(data, PrinterDiscriminator[:])
	copy(data[8:40], p.StableToken[:])
	copy(data[40:72], p.Authority[:])
	data[72] = p.Decimals
	return data
}

func UnmarshalPrinter(data []byte) (*Printer, error) {
	if err := checkHeader(data, RecordTypePrinter, PrinterDiscriminator); err != nil {
		return nil, err
	}
	return &Printer{
		StableToken: common.Address(data[8:40]),
		Authority:   common.Address(data[40:72]),
		Decimals:    data[72],
	}, nil
}
