package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/shareledger/internal/auth"
)

func TestTokenCommand(t *testing.T) {
	var out bytes.Buffer
	root := RootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--subject", "42", "--secret", "dev-secret"})

	require.NoError(t, root.Execute())

	tokens, err := auth.NewTokenManager("dev-secret", "shareledger", time.Hour)
	require.NoError(t, err)
	subject, err := tokens.Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "42", subject)
}

func TestTokenCommandRequiresSubject(t *testing.T) {
	root := RootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"token", "--secret", "dev-secret"})
	assert.Error(t, root.Execute())
}
