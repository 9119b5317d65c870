// Package links allocates short-link keys against Redis. Creation is a
// single conditional write so concurrent callers can never silently
// overwrite each other's mappings.
package links
