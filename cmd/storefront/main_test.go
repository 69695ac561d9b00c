package main

import (
	"context"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/ecobuy/pkg/errors"
)

func TestRunRejectsUnknownCommand(t *testing.T) {
	_, err := run(context.Background(), nil, "teleport", nil)
	assert.ErrorIs(t, err, errUnknownCommand)
}

func TestRunRejectsBadFlags(t *testing.T) {
	_, err := run(context.Background(), nil, "add", []string{"-qty", "many"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestProfileUpdateSendsOnlyGivenFlags(t *testing.T) {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	first := fs.String("first", "", "")
	last := fs.String("last", "", "")
	phone := fs.String("phone", "", "")
	avatar := fs.String("avatar", "", "")
	require.NoError(t, fs.Parse([]string{"-first", "Ada", "-phone", ""}))

	update := profileUpdate(fs, first, last, phone, avatar)
	require.NotNil(t, update.FirstName)
	assert.Equal(t, "Ada", *update.FirstName)
	require.NotNil(t, update.Phone)
	assert.Equal(t, "", *update.Phone)
	assert.Nil(t, update.LastName)
	assert.Nil(t, update.AvatarURL)
}
