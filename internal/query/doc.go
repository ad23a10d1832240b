// Package query defines the query expressions a store answers and
// evaluates them against a record reader.
//
// Expression and Predicate are sealed interfaces using the marker method
// pattern, so evaluators can switch over every variant:
//
//	switch e := expr.(type) {
//	case FindRecord:
//	case FindRecords:
//	case FindRelatedRecord:
//	case FindRelatedRecords:
//	}
//
// Results are deterministic: record lists are ordered by id.
package query
