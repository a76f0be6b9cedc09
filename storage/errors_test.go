package storage

import (
	"errors"
	"testing"

	"github.com/poiesic/chatbinder/core"
	"github.com/stretchr/testify/assert"
)

func TestDomainError(t *testing.T) {
	assert.NoError(t, DomainError(nil))

	err := DomainError(ErrNotFound)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, core.ErrStorage)

	boom := errors.New("disk full")
	err = DomainError(boom)
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.ErrorIs(t, err, boom)

	err = DomainError(ErrConflict)
	assert.ErrorIs(t, err, core.ErrStorage)
}
