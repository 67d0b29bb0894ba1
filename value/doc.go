// Package value provides the dynamically typed cell value stored in arriba
// columns.
//
// A Value carries one of a small set of kinds (bool, int, float, string,
// time, uuid) and has a canonical text form. The canonical text is what the
// partition router hashes, so two values that convert to the same logical
// value of the ID column kind always land in the same partition:
//
//	value.Hash(value.Int(5)) == value.Hash(value.Float(5)) // true
//	value.Hash(value.String("5")) == value.Hash(value.Int(5)) // true
package value
