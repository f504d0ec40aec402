package kylan

const (
	// Precision is the fixed-point scale of cert prices and fees. A cert with
	// price p mints p / Precision stable units per secure unit deposited.
	Precision uint64 = 1_000_000

	// DefaultDecimals is the decimals of a stable token when none is given.
	DefaultDecimals uint8 = 6

	// DefaultProgramID is the address of the issuance program.
	DefaultProgramID = "57bCSmBzSiVyZEDb8n8W33tyxAcqDCcVnkb1eJ2jfnmP"

	// DefaultLedgerAddress is the gRPC address of a local ledger node.
	DefaultLedgerAddress = "localhost:8535"
)

// Seed tags used to derive program-owned record addresses.
var (
	CertSeed   = []byte("cert")
	ChequeSeed = []byte("cheque")
)
