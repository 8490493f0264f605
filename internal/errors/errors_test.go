package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"gocnt/domain/core"

	"github.com/stretchr/testify/assert"
)

func TestWrapAssignsTaxonomyCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"config", fmt.Errorf("select: %w", core.ErrZeroVariance), CodeConfigInvalid},
		{"aborted", core.ErrAborted, CodeAborted},
		{"other", stderrors.New("boom"), CodeInternalError},
		{"app", IOError("out.txt", stderrors.New("denied")), CodeIOError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := Wrap(tt.err, "analysis failed")
			assert.Equal(t, tt.code, GetCode(wrapped))
			assert.True(t, stderrors.Is(wrapped, tt.err))
		})
	}
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Nil(t, Wrapf(nil, "nothing %d", 1))
	assert.Nil(t, WithCode(CodeIOError, nil))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeInvalidInput, stderrors.New("bad flag"))
	assert.True(t, IsAppError(err))
	assert.Equal(t, CodeInvalidInput, GetCode(err))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
	assert.Equal(t, "bad flag", err.Error()[:8])
}
