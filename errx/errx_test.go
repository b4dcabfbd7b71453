package errx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testRegistry = NewRegistry("TEST")
	errNotFound  = testRegistry.Register("NOT_FOUND", TypeNotFound, 404, "Thing not found")
	errBroken    = testRegistry.Register("BROKEN", TypeInternal, 500, "Thing broke")
)

func TestRegistry_New(t *testing.T) {
	err := testRegistry.New(errNotFound)

	assert.Equal(t, Code("TEST_NOT_FOUND"), err.Code)
	assert.Equal(t, TypeNotFound, err.Type)
	assert.Equal(t, 404, err.HTTPStatus)
	assert.Equal(t, "[TEST_NOT_FOUND] Thing not found", err.Error())
}

func TestRegistry_NewWithMessage(t *testing.T) {
	err := testRegistry.NewWithMessage(errNotFound, "post 42 not found")
	assert.Equal(t, "post 42 not found", err.Message)
	assert.Equal(t, TypeNotFound, err.Type)
}

func TestRegistry_UnknownCode(t *testing.T) {
	err := testRegistry.New(Code("TEST_NOPE"))
	assert.Equal(t, TypeInternal, err.Type)
	assert.Equal(t, 500, err.HTTPStatus)
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry("DUP")
	r.Register("X", TypeInternal, 500, "x")
	assert.Panics(t, func() { r.Register("X", TypeInternal, 500, "x") })
}

func TestError_DetailsAreSortedInMessage(t *testing.T) {
	err := testRegistry.New(errBroken).
		WithDetail("b", 2).
		WithDetail("a", "one")

	assert.Equal(t, "[TEST_BROKEN] Thing broke (a=one, b=2)", err.Error())
}

func TestIsCode_WalksChain(t *testing.T) {
	inner := testRegistry.New(errNotFound)
	outer := testRegistry.NewWithCause(errBroken, inner)
	wrapped := fmt.Errorf("context: %w", outer)

	assert.True(t, IsCode(wrapped, errBroken))
	assert.True(t, IsCode(wrapped, errNotFound))
	assert.False(t, IsCode(errors.New("plain"), errNotFound))
	assert.False(t, IsCode(nil, errNotFound))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "nothing", TypeInternal))

	base := errors.New("socket closed")
	err := Wrap(base, "store unavailable", TypeUnavailable)
	require.NotNil(t, err)
	assert.Equal(t, TypeUnavailable, err.Type)
	assert.ErrorIs(t, err, base)

	rewrapped := Wrap(testRegistry.New(errNotFound), "lookup failed", TypeSystem)
	assert.Equal(t, errNotFound, rewrapped.Code)
}

func TestDetail(t *testing.T) {
	err := Wrap(testRegistry.New(errNotFound).WithDetail("id", "42"), "outer", TypeSystem)

	v, ok := Detail(err, "id")
	require.True(t, ok)
	assert.Equal(t, "42", v)

	_, ok = Detail(err, "missing")
	assert.False(t, ok)
}

func TestErrorsIs_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", testRegistry.New(errNotFound).WithDetail("id", 1))
	assert.ErrorIs(t, err, testRegistry.New(errNotFound))
	assert.NotErrorIs(t, err, testRegistry.New(errBroken))
}
