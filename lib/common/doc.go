// Package common provides the configuration and logging shared by the store and the CLI.
//
// Key Components:
//
//   - StoreConfig: Defaults applied to every column of a store (persist format,
//     compression, default weight, memory limit, statistics interval) plus the data
//     directory and the number of columns saved or loaded in parallel.
//
//   - Logger: Custom logging implementation for dragonboats logger package. All packages of
//     this module obtain their logger with logger.GetLogger(name); InitLoggers installs
//     the factory and applies a level spec such as "warn,codec=debug" to every known
//     logger. Lines go to stderr and are formatted as "LEVEL | logger | message".
package common
