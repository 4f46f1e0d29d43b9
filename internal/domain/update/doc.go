// Package update contains the durable record of an in-flight binary swap.
//
// The record replaces a loose set of marker files: one State value says which
// phase the swap reached, when it started and which versions were involved.
package update
