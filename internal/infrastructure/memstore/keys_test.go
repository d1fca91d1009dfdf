package memstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashKey(t *testing.T) {
	// 确定性
	assert.Equal(t, HashKey("a", "b"), HashKey("a", "b"))

	// 分隔符保证拼接歧义不产生同键
	assert.NotEqual(t, HashKey("ab", "c"), HashKey("a", "bc"))
	assert.NotEqual(t, HashKey("a"), HashKey("a", ""))
}
