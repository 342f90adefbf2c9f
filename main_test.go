package main

import (
	"testing"

	"keyrunner/cmd"

	"github.com/stretchr/testify/assert"
)

func TestVersionDefaultsToDev(t *testing.T) {
	assert.Equal(t, "dev", version)
}

func TestVersionReachesRootCommand(t *testing.T) {
	original := cmd.GetVersion()
	t.Cleanup(func() { cmd.SetVersion(original) })

	cmd.SetVersion(version)
	assert.Equal(t, version, cmd.GetVersion())
}
