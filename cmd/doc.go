// Package cmd implements the command-line interface for mvattr. It provides commands to
// work with persisted multi-value attribute columns and a performance tool for the
// in-process column store.
//
// The package is organized into two subpackages:
//
//   - column: Commands operating on column file pairs (inspect, dump, convert) and the
//     perf tool
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All flags can also be set with environment variables of the form MVATTR_<FLAG>
// (e.g. MVATTR_LOG_LEVEL=debug), loaded from .env and .env.local as well.
//
// See mvattr -help for a list of all commands.
package cmd
