package schema

import (
	"fmt"
	"strings"
)

// CertState gates which conversions a certificate currently allows.
type CertState uint8

const (
	CertStateUninitialized CertState = iota
	CertStateActive
	CertStatePrintOnly
	CertStateBurnOnly
	CertStatePaused
)

var certStateNames = map[CertState]string{
	CertStateUninitialized: "Uninitialized",
	CertStateActive:        "Active",
	CertStatePrintOnly:     "PrintOnly",
	CertStateBurnOnly:      "BurnOnly",
	CertStatePaused:        "Paused",
}

func (s CertState) String() string {
	if name, ok := certStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CertState(%d)", uint8(s))
}

// Valid reports whether s is one of the five defined states.
func (s CertState) Valid() bool {
	return s <= CertStatePaused
}

// Operational reports whether s may be set by the printer authority.
func (s CertState) Operational() bool {
	return s >= CertStateActive && s <= CertStatePaused
}

// IsPrintable reports whether secure to stable conversion is allowed.
func (s CertState) IsPrintable() bool {
	return s == CertStateActive || s == CertStatePrintOnly
}

// IsBurnable reports whether stable to secure conversion is allowed.
func (s CertState) IsBurnable() bool {
	return s == CertStateActive || s == CertStateBurnOnly
}

// ParseCertState accepts a state name, case insensitive, with or without
// separators ("print_only", "PrintOnly", "print-only").
func ParseCertState(s string) (CertState, error) {
	normalized := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	for state, name := range certStateNames {
		if strings.ToLower(name) == normalized {
			return state, nil
		}
	}
	return CertStateUninitialized, fmt.Errorf("unknown cert state %q", s)
}
