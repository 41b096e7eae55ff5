// Package xapi provides the in-memory learning record statement model.
//
// This package contains type definitions only. Every other internal package
// imports xapi; xapi imports nothing internal.
//
// Key design constraints:
//   - Actor and Object are sealed unions (marker methods); every mapper must
//     switch over all variants and reject anything else
//   - Optional scalars are pointers, absent collections are nil
//   - Values are immutable after construction; With* methods return copies
//   - A Statement never stores its own "stored" timestamp on save; the store
//     assigns it
package xapi
