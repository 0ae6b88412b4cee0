// Package sanitizer normalizes free-form caller input before it is validated
// or stored.
//
// All functions are idempotent: applying them twice gives the same result.
// Invalid input is never an error here; it normalizes to the empty string and
// validation decides what to do with it.
package sanitizer
