// Package logging provides the structured logger used across keyrunner.
//
// It is a thin layer over log/slog. Every message carries a subsystem
// attribute so that output from the registry, the runner and the recovery
// manager can be told apart when a long case is being diagnosed.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, logging.FormatText, os.Stderr)
//
//	logging.Info("Runner", "Starting case %s", c.ID)
//	logging.Debug("CaseParser", "Parsed %d steps from %s", len(c.Steps), path)
//	logging.Warn("CaseParser", "Case %s has no steps", c.ID)
//	logging.Error("Recovery", err, "Compensation %s failed", keyword)
//
// # Subsystems
//
//   - Registry: action registration and lookup
//   - CaseParser: case document loading and validation
//   - Runner: step execution
//   - Recovery: compensation stack and drain
//   - Actions: built-in action words
//   - Report: console and JSON reporters, write_report output
//   - Storage: history files on disk
//   - Config, History, Watcher, MCPServer, Shell
//
// Init also routes klog (used by client-go in the kube action pack) through
// the same handler so that a run produces one consistent log stream.
package logging
