// Package contract validates step responses against an OpenAPI 3 document.
//
// A Checker plugs into workflow.Chain as its ResponseChecker. Each
// dispatched response yields one extra assertion result with path
// "contract": Passed when the response conforms to the matched operation,
// Failed when it violates it, and Errored when no operation matches the
// request.
package contract
