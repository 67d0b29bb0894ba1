// Package shortset implements ShortSet, a fixed-capacity bitset over the
// row slots of a single partition.
//
// A ShortSet is the currency of predicate evaluation: predicates write the
// matching row slots into one, boolean combinators (And, Or, Not, ...) fold
// sets together, and deletes read the final set back in ascending or
// descending order.
//
// When two sets of different capacity are combined, only the words both
// sets store are combined. Words of the receiver beyond the smaller operand
// keep their previous contents.
package shortset
