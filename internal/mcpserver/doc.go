// Package mcpserver exposes the action catalog and case execution as
// Model Context Protocol tools over stdio.
//
// # Tools
//
//   - list_actions: the registered action words, optionally filtered by category
//   - run_case: run a case file, or every case under a directory
//   - run_step: execute one action word against a persistent session
//   - get_variables: the persistent session's variables
//   - drain_recovery: drain the persistent session's recovery stack
//
// The persistent session behaves like an open case run. Variables written by
// run_step (last_result and store names) stay visible to later calls, and
// compensations accumulate until drain_recovery or shutdown.
//
// All results are JSON documents carried in a single text content item.
// Tool-level failures (unknown keyword, unreadable case file) are returned
// as MCP error results rather than protocol errors.
package mcpserver
