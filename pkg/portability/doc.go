// Package portability turns requests described in other tools' formats into
// chain documents that reqchain can run.
//
// # Supported Formats
//
//   - OpenAPI 3.x and Swagger 2.0: one step per operation
//   - Postman Collection v2.x: one step per request, collection variables kept
//   - HAR (HTTP Archive): one step per recorded request, static assets skipped
//   - cURL commands: one step per command
//
// Importers produce skeletons. Every step asserts the status the source
// documents or recorded, and the chain variables hold what the source
// declared (a baseUrl at minimum). Edit the result before relying on it.
//
// # Usage
//
//	data, _ := os.ReadFile("openapi.yaml")
//	doc, err := portability.Import(data, "openapi.yaml", portability.FormatUnknown, nil)
//	if err != nil {
//		return err
//	}
//	return config.SaveDocument("chain.yaml", doc)
package portability
