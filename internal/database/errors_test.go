package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionError_Format(t *testing.T) {
	cause := errors.New("password authentication failed")
	err := newConnectionError("dial", cause)

	assert.Equal(t, UserMessage, err.Error())
	assert.Equal(t, UserMessage, fmt.Sprintf("%v", err))
	assert.Equal(t, UserMessage, fmt.Sprintf("%s", err))

	detail := fmt.Sprintf("%+v", err)
	assert.Contains(t, detail, "dial")
	assert.Contains(t, detail, "errors_test.go")
	assert.Contains(t, detail, cause.Error())
	assert.NotContains(t, err.Error(), cause.Error())
}
