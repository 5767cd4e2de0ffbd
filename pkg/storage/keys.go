package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema. Prefix-based so each entity kind can be range-scanned
// on startup; numeric ids are zero-padded for lexicographic ordering.
const (
	prefixRegistration = "reg:"
	prefixOrder        = "ord:"
	prefixRound        = "round:"
)

// registrationKey: "reg:{address}"
func registrationKey(addr common.Address) []byte {
	return []byte(prefixRegistration + addr.Hex())
}

// orderKey: "ord:{id}" with a 20-digit zero-padded id.
func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

// roundKey: "round:{index}" with a 20-digit zero-padded index.
func roundKey(index uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixRound, index))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
