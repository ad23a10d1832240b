// Package cache holds the in-memory record graph and applies operations to
// it through the operation processor pipeline.
//
// Every operation passed to Patch is validated against the schema, run past
// each processor's Before, After, Immediate and Finally hooks, applied, and
// paired with the inverse operation that undoes it. Cascades are driven by
// an explicit worklist; an operation never re-enters the pipeline while its
// own cascade is outstanding.
//
// Patch is not atomic: if a cascaded operation fails, operations already
// applied stay applied.
package cache
