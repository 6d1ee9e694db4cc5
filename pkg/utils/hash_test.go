package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStableID(t *testing.T) {
	a := StableID("kb", "legal_updates", "Nghị định mới")
	b := StableID("kb", "legal_updates", "Nghị định mới")
	c := StableID("kb", "legal_updates", "Nghị định khác")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, len("kb_")+24)
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "luật lao động", NormalizeQuery("  Luật   LAO động \n"))
	assert.Equal(t, "", NormalizeQuery("   "))
}
