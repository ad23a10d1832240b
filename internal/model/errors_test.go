package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	id := Identity{Type: "planet", ID: "1"}

	err := NewRecordNotFoundError(id)
	assert.Equal(t, "RECORD_NOT_FOUND: record not found: planet:1 (record=planet:1)", err.Error())

	err = NewDuplicateTransformError("t1")
	assert.Equal(t, "DUPLICATE_TRANSFORM: transform is already in the log (transform=t1)", err.Error())

	err = NewSchemaConsistencyError("planet", "rings", "relationship is not declared")
	assert.Equal(t, "SCHEMA_CONSISTENCY: relationship is not declared", err.Error())
	assert.Equal(t, "rings", err.Details["relationship"])
}

func TestErrorPredicatesUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("update: %w", NewTransformNotLoggedError("t9"))

	assert.True(t, IsTransformNotLogged(wrapped))
	assert.False(t, IsRecordNotFound(wrapped))
	assert.False(t, IsSchemaConsistency(nil))
	assert.False(t, IsDuplicateTransform(fmt.Errorf("plain")))
	assert.True(t, IsRecordIdentity(NewRecordIdentityError(OpAddRecord, Identity{})))
}
