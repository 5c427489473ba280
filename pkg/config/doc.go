// Package config loads chain documents and turns them into runnable
// workflow chains.
//
// Chain documents are YAML or JSON; the format is picked from the file
// extension (.yaml and .yml are YAML, everything else JSON). Loading runs
// three stages and stops at the first that fails:
//
//   - syntax: the document must parse, errors carry line and column
//   - schema: the document must match the embedded JSON Schema
//   - semantics: matchers, paths and credentials must be usable
//
// A minimal chain:
//
//	name: login flow
//	steps:
//	  - name: login
//	    request:
//	      method: POST
//	      url: "{{baseUrl}}/login"
//	      body: {user: "{{user}}", password: "{{password}}"}
//	    extract:
//	      token: $.token
//	    assertions:
//	      - status equals 200
//	  - name: profile
//	    request:
//	      url: "{{baseUrl}}/me"
//	      headers: {Authorization: "Bearer {{token}}"}
//	    assertions:
//	      - path: $.email
//	        matcher: contains
//	        expected: "@"
package config
