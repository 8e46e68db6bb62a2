// Package engineapi exposes the ve3 accounting engine over HTTP: read-only
// query routes backed directly by the book stores, and command routes that
// dispatch through coordinator.Coordinator so every write passes the same
// capability checks and metrics recording a non-HTTP caller would get.
package engineapi

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

func addrFromHex(s string) ([20]byte, error) {
	var out [20]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("address: %w", err)
	}
	if len(b) != 20 {
		return out, fmt.Errorf("address: want 20 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func addrToHex(a [20]byte) string {
	return hex.EncodeToString(a[:])
}

func bigFromString(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed integer %q", s)
	}
	return v, nil
}

func bigToString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
