package ir

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/gomlx/exceptions"
)

// Hash is the structural hash of an IR node. Two nodes with the same op, the same
// attributes and the same operands have the same Hash.
type Hash uint64

// HashCombine folds b into a. The fold is deterministic and order dependent.
func HashCombine(a, b Hash) Hash {
	return a ^ (b + 0x9e3779b97f4a7c15 + (a << 6) + (a >> 2))
}

// MHash hashes the given values in order.
//
// Supported values are the integer types, bool, string and Hash. It panics (throws an exception)
// for anything else.
func MHash(values ...any) Hash {
	d := xxhash.New()
	var buf [8]byte
	for _, value := range values {
		var u uint64
		switch v := value.(type) {
		case int:
			u = uint64(v)
		case int32:
			u = uint64(v)
		case int64:
			u = uint64(v)
		case uint64:
			u = v
		case Hash:
			u = uint64(v)
		case bool:
			if v {
				u = 1
			}
		case float64:
			u = math.Float64bits(v)
		case string:
			_, _ = d.WriteString(v)
			u = uint64(len(v))
		default:
			exceptions.Panicf("ir.MHash: unsupported value type %T", value)
		}
		binary.LittleEndian.PutUint64(buf[:], u)
		_, _ = d.Write(buf[:])
	}
	return Hash(d.Sum64())
}
