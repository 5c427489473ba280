// Package cli provides the command-line interface for reqchain.
//
// Commands:
//   - run: Execute chain files against live APIs
//   - validate: Check chain files without sending requests
//   - new: Scaffold a chain file, interactively when flags are omitted
//   - import: Convert OpenAPI, Postman, HAR or cURL sources into a chain
//   - env: List and inspect environments (secrets masked)
//   - history: Browse and clear the local run history
//   - config: Show the effective configuration and where each value came from
//   - version: Show reqchain version
//
// Configuration is layered: flags > REQCHAIN_* environment variables >
// .reqchain.yaml > the global config file > defaults (see pkg/cliconfig).
//
// Output contract: with --json, stdout carries only the JSON document.
// Logs and warnings always go to stderr.
package cli
