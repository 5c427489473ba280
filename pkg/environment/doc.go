// Package environment loads named variable sets that form the lowest layer
// of a chain's variable store.
//
// An environment file looks like:
//
//	name: staging
//	description: Shared staging cluster
//	variables:
//	  baseUrl: https://staging.example.com
//	  apiKey:
//	    value: s3cr3t
//	    secret: true
//	  debug:
//	    value: true
//	    enabled: false
//
// Variables given as a plain value are enabled and not secret. Process
// environment variables named REQCHAIN_VAR_<NAME> override file values.
package environment
