// Package dispatch routes inbound envelopes to type handlers.
//
// A table maps each envelope type to a handler; COMMAND envelopes go
// through a second dispatch keyed by the command name in the content.
// Built-in commands are matched before the custom command table, so a
// custom handler registered under a built-in name is shadowed.
//
// Handler faults never reach the event loop: errors and panics are caught
// at the dispatch boundary, logged, and answered with an ERROR envelope,
// leaving the connection open.
package dispatch
