package grading

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academic-records/records-hub/internal/domain/shared"
)

func TestAssessment_WithScoreReturnsCopy(t *testing.T) {
	original := Assessment{ID: "a1", VF: Some(5)}

	updated, err := original.WithScore(FieldVFE, Some(7))
	require.NoError(t, err)

	assert.False(t, original.VFE.IsSet())
	assert.Equal(t, 7.0, updated.VFE.Or(0))
}

func TestAssessment_WithoutScore(t *testing.T) {
	a := Assessment{VF: Some(5), VFE: Some(7)}

	cleared, err := a.WithoutScore(FieldVFE)
	require.NoError(t, err)
	assert.False(t, cleared.VFE.IsSet())

	_, err = a.WithoutScore(FieldVF)
	assert.ErrorIs(t, err, shared.ErrRequiredScore)
}

func TestAssessment_WithScoreRejectsOutOfRange(t *testing.T) {
	_, err := Assessment{}.WithScore(FieldAVI, Some(10.5))
	assert.ErrorIs(t, err, shared.ErrInvalidScore)
}

func TestBehavior_WithMonth(t *testing.T) {
	b := Behavior{}

	updated, err := b.WithMonth(3, Some(8))
	require.NoError(t, err)
	assert.Equal(t, 8.0, updated.Month(3).Or(0))
	assert.False(t, b.Month(3).IsSet())

	_, err = b.WithMonth(13, Some(8))
	assert.ErrorIs(t, err, shared.ErrInvalidMonth)
}

func TestGrade_JSON(t *testing.T) {
	type wrapper struct {
		A Grade `json:"a"`
		B Grade `json:"b"`
	}

	data, err := json.Marshal(wrapper{A: Some(6.5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":6.5,"b":null}`, string(data))

	var w wrapper
	require.NoError(t, json.Unmarshal(data, &w))
	assert.Equal(t, 6.5, w.A.Or(0))
	assert.False(t, w.B.IsSet())
}
