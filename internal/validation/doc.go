// Package validation classifies a measured media duration against an
// expected runtime or, when none is known, against minimum-duration floors.
//
// Floors are plain mutable settings; SetFloors takes effect for the next
// Classify call without rebuilding the Validator.
package validation
