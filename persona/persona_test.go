package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetFallsBackToDefault(t *testing.T) {
	p := Get("does-not-exist")
	assert.Equal(t, "default", p.Name)
	assert.NotEmpty(t, p.Prompt)
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("coder"))
	assert.False(t, Known("pirate"))
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "default")
	assert.Contains(t, names, "reviewer")
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}
