// Package harness runs conformance scenarios against orbit stores.
//
// A scenario builds stores on a CUE schema, drives them through updates,
// syncs, forks, merges and rollbacks, and asserts on the final records and
// transform logs.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schema: ../schemas/planets.cue
//	steps:
//	  - update:
//	      id: add-earth            # optional, generated ids are t-1, t-2, ...
//	      operations:
//	        - op: addRecord
//	          record: {type: planet, id: earth, attributes: {name: Earth}}
//	  - fork: draft                # fork the active store
//	  - use: draft                 # switch the active store
//	  - merge: {from: draft, sequential: true}
//	  - sync: {from: draft, transform: t-2}
//	  - rollback: add-earth
//	    expect_error: TRANSFORM_NOT_LOGGED
//	assertions:
//	  - type: has_one
//	    store: main                # default
//	    record: {type: moon, id: luna}
//	    relationship: planet
//	    related: {type: planet, id: earth}
//
// Operations use the same JSON field names as persisted transforms.
//
// # Assertion Types
//
//   - record_exists, record_missing: the record is (not) in the cache
//   - attribute: an attribute equals value; no value means unset
//   - has_one, has_many: a relationship links exactly the given records
//   - log_head, log_length, log_ids: the transform log
//
// # Deterministic Testing
//
// Every scenario runs on fresh in-memory stores whose transform ids come
// from one testutil.SequentialIDs, so a scenario always produces the same
// trace and state. RunWithGolden compares that output against
// testdata/golden/<name>.golden with goldie.
package harness
