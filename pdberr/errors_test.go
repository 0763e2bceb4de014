package pdberr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := Errorf(KindAlignment, "addr 0x%08x misaligned", 0x1001)
	assert.True(t, Is(err, KindAlignment))
	assert.False(t, Is(err, KindRange))
}

func TestIsThroughWrap(t *testing.T) {
	err := Wrap(Errorf(KindFlashError, "SR error"), "while erasing sector %d", 3)
	assert.True(t, Is(err, KindFlashError))
}

func TestCmdStatusErrorKind(t *testing.T) {
	err := &CmdStatusError{Status: 0x10, Opcode: 0xF2}
	assert.True(t, Is(err, KindCmdStatus))
	assert.Contains(t, err.Error(), "0x10")
}

func TestWrapNilIsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "unreachable"))
}
