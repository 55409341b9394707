package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"fulfillment/internal/repository"
)

func TestErrorCategories(t *testing.T) {
	for kind, category := range categories {
		err := newError(kind, "boom")
		assert.True(t, errors.Is(err, kind))
		assert.Equal(t, category, Category(err))
		assert.Equal(t, category, Category(fmt.Errorf("wrapped: %w", err)))
	}
	assert.Empty(t, Category(errors.New("db down")))
}

func TestStoreErr(t *testing.T) {
	assert.NoError(t, storeErr(nil, "booking", "b1"))

	err := storeErr(repository.ErrNotFound, "booking", "b1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "booking b1 not found")

	err = storeErr(fmt.Errorf("update: %w", repository.ErrVersionConflict), "booking", "b1")
	assert.ErrorIs(t, err, ErrInvalidState)

	biz := newError(ErrUnauthorized, "nope")
	assert.Same(t, biz, storeErr(biz, "booking", "b1"))

	infra := errors.New("connection reset")
	err = storeErr(infra, "booking", "b1")
	assert.ErrorIs(t, err, infra)
	assert.Empty(t, Category(err))
}
