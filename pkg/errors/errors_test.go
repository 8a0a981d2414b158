package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsCodeForErrorsIs(t *testing.T) {
	err := Clone(ErrNotRegistered, "register first")
	require.True(t, errors.Is(err, ErrNotRegistered))
	assert.False(t, errors.Is(err, ErrAccessDenied))
	assert.Equal(t, "register first", err.Message)
	assert.Equal(t, "you need to register first", ErrNotRegistered.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.True(t, errors.Is(appErr, sql.ErrConnDone))
}

func TestInternalCarriesMessage(t *testing.T) {
	appErr := Internal(sql.ErrNoRows, "failed to load document")
	assert.Equal(t, "failed to load document: sql: no rows in result set", appErr.Error())
	assert.Nil(t, FromError(nil))
}

func TestValidationListsFieldFailures(t *testing.T) {
	type loginRequest struct {
		Email    string `validate:"required,email"`
		Password string `validate:"required"`
	}
	err := validator.New().Struct(loginRequest{Email: "not-an-email"})
	require.Error(t, err)

	appErr := Validation(err, "email and password are required")
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, map[string]string{"Email": "email", "Password": "required"}, appErr.Fields)
	assert.True(t, errors.Is(appErr, ErrValidation))

	assert.Nil(t, Validation(errors.New("bad json"), "invalid body").Fields)
}

func TestFromErrorMapsDeadline(t *testing.T) {
	appErr := FromError(fmt.Errorf("query: %w", context.DeadlineExceeded))
	assert.Equal(t, ErrTimeout.Code, appErr.Code)
	assert.Equal(t, http.StatusGatewayTimeout, appErr.Status)
}
