// Package actions provides the built-in action words.
//
// Each pack is a function returning descriptors bound to an Environment.
// Register installs every pack into a registry; a duplicate keyword aborts
// registration with the registry's DuplicateActionError.
package actions

import (
	"fmt"

	"keyrunner/internal/registry"
	"keyrunner/pkg/logging"
)

// Category names used by the built-in packs.
const (
	CategoryBasic    = "basic"
	CategoryVerify   = "verify"
	CategoryFile     = "file"
	CategoryShell    = "shell"
	CategoryNetwork  = "network"
	CategoryDatabase = "database"
	CategoryKube     = "kube"
	CategoryReport   = "report"
	CategoryTemplate = "template"
	CategorySystem   = "system"
)

type pack func(env *Environment) []registry.Descriptor

var packs = []pack{
	basicPack,
	verifyPack,
	filePack,
	shellPack,
	networkPack,
	databasePack,
	kubePack,
	reportPack,
	templatePack,
	systemPack,
}

// Register installs all built-in action words into reg.
func Register(reg *registry.Registry, env *Environment) error {
	count := 0
	for _, p := range packs {
		for _, desc := range p(env) {
			if err := reg.Register(desc); err != nil {
				return fmt.Errorf("failed to register built-in actions: %w", err)
			}
			count++
		}
	}

	if missing := reg.MissingCompensations(); len(missing) > 0 {
		logging.Warn("Actions", "Compensations not registered: %v", missing)
	}
	logging.Debug("Actions", "Registered %d built-in action words", count)
	return nil
}

// Descriptors returns the built-in descriptors without registering them.
func Descriptors(env *Environment) []registry.Descriptor {
	var out []registry.Descriptor
	for _, p := range packs {
		out = append(out, p(env)...)
	}
	return out
}

func param(name string, required bool, description string) registry.ParamSpec {
	return registry.ParamSpec{Name: name, Required: required, Description: description}
}
