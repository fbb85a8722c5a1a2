package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_InvalidURL(t *testing.T) {
	db, err := New(context.Background(), "not a url ://")
	assert.Error(t, err)
	assert.Nil(t, db)
}
