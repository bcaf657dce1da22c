package uf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "SP", Normalize("sp"))
	assert.Equal(t, "SP", Normalize("35"))
	assert.Equal(t, "DF", Normalize(" 53 "))
	assert.Equal(t, "", Normalize("99"))
	assert.Equal(t, "", Normalize("XX"))
	assert.Equal(t, "", Normalize(""))
}

func TestAllStates(t *testing.T) {
	assert.Len(t, All(), 27)
	assert.Equal(t, "33", IBGECode("rj"))
	assert.True(t, IsSigla("BA"))
	assert.False(t, IsSigla("ba"))
}
