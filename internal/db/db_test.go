package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnect_InvalidURL(t *testing.T) {
	conn, err := Connect(context.Background(), "not a connection string")
	assert.Error(t, err)
	assert.Nil(t, conn)
}

func TestClose_NilPool(t *testing.T) {
	db := &DB{}
	assert.NotPanics(t, func() { db.Close() })
}
