// Package runner wires loaded chain files to the executor and runs them
// with bounded parallelism.
//
// Every chain gets its own dispatcher and cookie jar; iterations of one
// chain start from an empty jar. Credentials are resolved per chain against
// the environment and the chain's initial variables, and OAuth tokens are
// cached across chains by a shared auth.Acquirer.
//
// Observers (history, metrics) are shared by all runs and must be safe for
// concurrent use.
package runner
