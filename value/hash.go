package value

import "github.com/cespare/xxhash/v2"

// Hash returns the 32-bit routing hash of v.
//
// The hash is computed over the canonical text form, so callers must
// convert a value to the ID column kind before hashing it. The 64-bit
// xxhash is folded into 32 bits so every input bit reaches the high bits
// that partition masks inspect.
func Hash(v Value) uint32 {
	return HashText(v.Text())
}

// HashText hashes a canonical text form directly.
func HashText(text string) uint32 {
	h := xxhash.Sum64String(text)
	return uint32(h) ^ uint32(h>>32)
}
