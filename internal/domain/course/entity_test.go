package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpected(t *testing.T) {
	tests := []struct {
		in      string
		want    Expected
		wantErr bool
	}{
		{"VF", ExpectedVF, false},
		{"avi vf", ExpectedAVIVF, false},
		{"AVI  AVII   VF", ExpectedAVIAVIIVF, false},
		{"AVII VF", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseExpected(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFormula(t *testing.T) {
	f, err := ParseFormula(" cfo ")
	require.NoError(t, err)
	assert.Equal(t, FormulaCFO, f)

	_, err = ParseFormula("XYZ")
	assert.Error(t, err)
}

func TestCourseGrouping(t *testing.T) {
	assert.Equal(t, GroupingPeriod, (&Course{IsPeriod: true}).Grouping())
	assert.Equal(t, GroupingModule, (&Course{Modules: true}).Grouping())
}

func TestDisciplineIndex(t *testing.T) {
	idx := NewDisciplineIndex([]CourseDiscipline{
		{DisciplineID: "d1", Hours: 30},
		{DisciplineID: "d2", Hours: 20},
	})

	d, ok := idx.Lookup("d2")
	require.True(t, ok)
	assert.Equal(t, 20, d.Hours)

	_, ok = idx.Lookup("d3")
	assert.False(t, ok)
}
