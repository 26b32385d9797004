// Package resolver maps hardware descriptors to architecture identifiers.
//
// Resolution is a pure function of the descriptor and the pattern table:
// the longest pattern contained in the descriptor (case-insensitively) wins,
// and equal-length matches fall back to table order.
package resolver
