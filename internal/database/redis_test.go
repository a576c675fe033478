package database

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	rdb, err := NewRedisClient(context.Background(), "http://not-redis", zerolog.Nop())

	assert.Nil(t, rdb)
	assert.ErrorContains(t, err, "parse redis URL")
}
