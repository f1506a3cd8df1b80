// Package storage is a small key-value store with per-entry expiry, used to
// persist client input such as the last prompt.
//
// Entries are stored under prefix + "_" + key as the JSON document
// {"value":...,"time":<stored at, unix ms>,"expire":<ttl ms, 0 = never>}.
// An entry found expired on read is deleted and reported absent.
package storage
