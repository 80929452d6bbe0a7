package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	AccountID string `validate:"required"`
	Actor     string `validate:"required"`
}

func TestStructRejectsMissingRequiredFields(t *testing.T) {
	v := New()
	err := v.Struct(sample{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccountID")
}

func TestStructAcceptsValidPayload(t *testing.T) {
	v := New()
	require.NoError(t, v.Struct(sample{AccountID: "acct-1", Actor: "op1"}))
}
