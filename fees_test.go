package main

import (
	"bytes"
	"testing"

	"github.com/luispater/feeOptOut/internal/portal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderFees(t *testing.T) {
	out := renderFees([]portal.Fee{
		{Name: "Student Services", RowIndex: 1},
		{Name: "Legal Clinic", RowIndex: 3},
	})
	assert.Contains(t, out, "Student Services")
	assert.Contains(t, out, "Legal Clinic")
	assert.Contains(t, out, "Fee")

	assert.Equal(t, "No opt-out fees found on this page.", renderFees(nil))
}

func TestVersionCommand(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "feeoptout 1.0.0\n", out.String())
}

func TestRootHasSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	names := make([]string, 0)
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "serve", "popup", "fees", "version"})
}
