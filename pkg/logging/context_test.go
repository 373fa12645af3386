package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetLogFields(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithKeyword(ctx, "비타민")

	assert.Equal(t, []interface{}{"request_id", "req-1", "keyword", "비타민"}, GetLogFields(ctx))
	assert.Equal(t, "비타민", GetKeyword(ctx))
	assert.Equal(t, "", GetCompetitor(ctx))
}
