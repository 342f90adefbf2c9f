package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withVersion sets the root command's version for the duration of a test.
func withVersion(t *testing.T, v string) {
	t.Helper()
	original := rootCmd.Version
	SetVersion(v)
	t.Cleanup(func() { SetVersion(original) })
}

func TestVersionCommand_PrintsVersion(t *testing.T) {
	for _, v := range []string{"1.4.0", "v2.0.0-rc.1", ""} {
		withVersion(t, v)
		var buf bytes.Buffer
		c := newVersionCmd()
		c.SetOut(&buf)

		c.Run(c, nil)

		assert.Equal(t, "keyrunner version "+v+"\n", buf.String())
	}
}

// The --version flag and the version command print the same line.
func TestVersionFlagMatchesCommand(t *testing.T) {
	withVersion(t, "3.1.4")

	var flagOut bytes.Buffer
	rootCmd.SetOut(&flagOut)
	rootCmd.SetArgs([]string{"--version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())

	var cmdOut bytes.Buffer
	c := newVersionCmd()
	c.SetOut(&cmdOut)
	c.Run(c, nil)

	assert.Equal(t, "keyrunner version 3.1.4\n", flagOut.String())
	assert.Equal(t, cmdOut.String(), flagOut.String())
	assert.Equal(t, "3.1.4", GetVersion())
}
