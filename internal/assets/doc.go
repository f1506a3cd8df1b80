// Package assets retrieves immutable binary model assets (weights, tokenizer,
// config) by URL and caches them for the lifetime of the process.
//
// A single URL is served from the Cache when present and fetched over HTTP
// otherwise. Several URLs form a sharded asset: the parts are fetched
// concurrently and concatenated in URL order. Entries are content-addressed by
// URL and never invalidated; use an LRUCache to bound memory.
package assets
