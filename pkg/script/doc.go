// Package script runs step hooks written in the expr language
// (github.com/expr-lang/expr).
//
// A script is a sequence of expressions, one per line. Blank lines and lines
// starting with # or // are ignored. Each line sees:
//
//	vars                    merged variables (read-only snapshot)
//	request                 method, url, headers, query, body
//	response                status, headers, body, json, duration (post only)
//	getVar(name)            variable value or nil
//	setVar(name, value)     write a variable visible to later steps
//	unsetVar(name)          remove a variable written during the run
//	setHeader(name, value)  change the outgoing request (pre only)
//	setQuery(name, value)
//	setBody(text)
//	log(args...)            append a line to the step log
//	fail(message)           stop the script with an error
//
// Example:
//
//	setVar("ts", now().Unix())
//	setHeader("X-Trace", vars.traceId + "-" + string(vars.ts))
package script
