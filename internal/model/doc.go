// Package model defines the unit-of-change data model for orbit.
//
// This package contains the record, operation and transform types shared by
// every other internal package. model imports nothing internal, which keeps it
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Attribute values are a sealed Value set with one canonical form each
//     (floats use the RFC 8785 number form), so state digests stay
//     deterministic across forks and replays
//   - Operations are immutable values; a Transform never changes after From
//   - Transform ids are content independent (UUIDv7), so "already applied"
//     is a pure id-membership check
//   - All JSON tags use camelCase to match the operation wire envelope
package model
