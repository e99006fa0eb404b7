// Package instance keeps a single controller process in charge of the GPIO
// lines and the ledger, using a pid lock file checked against the process
// table.
package instance
