package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_AreDistinct(t *testing.T) {
	assert.NotEqual(t, ErrMissingSessionService.Error(), ErrInvalidPorts.Error())
}

func TestErrMissingSessionService_Message(t *testing.T) {
	assert.Contains(t, ErrMissingSessionService.Error(), "session service")
}

func TestErrInvalidPorts_Message(t *testing.T) {
	assert.Contains(t, ErrInvalidPorts.Error(), "invalid ports")
}
