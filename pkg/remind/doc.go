// Package remind turns free-form date/time expressions into concrete reminder
// triggers and evaluates repeat rules.
//
// Everything here is pure and synchronous:
//   - Resolve parses text against an injected now/location and a compiled Catalog
//   - DecodeRule/EncodeRule round-trip the compact repeat-rule string
//   - NextTrigger and Postpone compute the next (date, time) pair
//
// The only shared state is the compiled keyword Catalog, which is immutable
// once built. Registry swaps catalogs atomically on explicit Rebuild.
package remind
