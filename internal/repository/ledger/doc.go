// Package ledger is the durable store of modules, alarm events and users.
//
// Ledger keeps every record in SQLite and routes all mutations through a
// single-writer transaction worker, so multi-step writes (triggering an
// alarm, removing a module, bootstrapping the administrator) are atomic.
// Absent targets are reported as false or ErrModuleNotFound rather than as
// failures; storage faults are logged and returned wrapped.
package ledger
