package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `[1]`, StripCodeFence("```\n[1]\n```"))
	assert.Equal(t, `plain`, StripCodeFence("  plain  "))
	assert.Equal(t, ``, StripCodeFence("```"))
}
