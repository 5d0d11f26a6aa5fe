// Package internal contains helper utilities that are intentionally private
// to the engine: attempt ID and secret generation, and the syntax
// validators used by the enrollment wizards.
//
// # What this package must NOT do
//
//   - Export types that appear in the public module API.
//   - Be imported by any package outside this module.
package internal
