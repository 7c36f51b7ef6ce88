package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenError(t *testing.T) {
	inner := errors.New("connection refused")

	err := GenError("driver",
		inner,
		map[string]interface{}{"camera": "Front Door"},
		"error probing camera %s", "Front Door")

	assert.Equal(t, "driver", err.Processor)
	assert.Equal(t, "error probing camera Front Door", err.Error())
	assert.Equal(t, "Front Door", err.Misc["camera"])
	assert.NotEmpty(t, err.StackTrace)

	// The inner error stays reachable through the chain.
	assert.ErrorIs(t, err, inner)

	var custom CustomError
	require.ErrorAs(t, error(err), &custom)
	assert.Equal(t, "driver", custom.Processor)
}

func TestStatusCodeString(t *testing.T) {
	assert.Equal(t, "OK", StatusOK.String())
	assert.Equal(t, "BAD_REQUEST", StatusBadRequest.String())
	assert.Equal(t, "SERVER_ERROR", StatusServerError.String())
	assert.Equal(t, "STATUS_418", StatusCode(418).String())
}
