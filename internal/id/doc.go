// Package id generates identifiers for runs and history entries.
//
//   - UUID: random v4 identifiers, backed by github.com/google/uuid
//   - ULID: 26-character, time-sortable identifiers used for run IDs so
//     history listings sort chronologically by ID
package id
