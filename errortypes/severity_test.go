package errortypes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsFatalError(t *testing.T) {
	fatal := &BadInput{Message: "no valid slots"}
	warning := &Warning{Message: "bad slot", WarningCode: InvalidAdSlotWarningCode}
	unknown := errors.New("plain")

	testCases := []struct {
		description string
		errs        []error
		expected    bool
	}{
		{description: "nil", errs: nil, expected: false},
		{description: "warnings only", errs: []error{warning, warning}, expected: false},
		{description: "fatal", errs: []error{warning, fatal}, expected: true},
		{description: "uncoded errors are fatal", errs: []error{unknown}, expected: true},
	}

	for _, test := range testCases {
		assert.Equal(t, test.expected, ContainsFatalError(test.errs), test.description)
	}
}

func TestIsWarning(t *testing.T) {
	assert.True(t, IsWarning(&Warning{Message: "ignored param", WarningCode: IgnoredParamWarningCode}))
	assert.False(t, IsWarning(&BadServerResponse{Message: "500"}))
	assert.False(t, IsWarning(errors.New("plain")))
}

func TestReadCode(t *testing.T) {
	assert.Equal(t, BadInputErrorCode, ReadCode(&BadInput{}))
	assert.Equal(t, TimeoutErrorCode, ReadCode(&Timeout{}))
	assert.Equal(t, IframeSyncDisabledWarningCode, ReadCode(&Warning{WarningCode: IframeSyncDisabledWarningCode}))
	assert.Equal(t, UnknownErrorCode, ReadCode(errors.New("plain")))
}

func TestAggregateErrors(t *testing.T) {
	assert.Equal(t, "", NewAggregateErrors("validation errors", nil).Error())

	one := NewAggregateErrors("validation errors", []error{errors.New("bad port")})
	assert.Equal(t, "validation errors (1 error):\n  1: bad port\n", one.Error())

	two := NewAggregateErrors("validation errors", []error{errors.New("bad port"), errors.New("bad endpoint")})
	assert.Equal(t, "validation errors (2 errors):\n  1: bad port\n  2: bad endpoint\n", two.Error())
}
