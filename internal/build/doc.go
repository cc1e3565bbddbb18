// Package build provides the canonical build execution pipeline for mrefbuilder.
//
// A build loads the metadata description files named by the configuration, streams the
// reflection data file, folds duplicate API entries and records the outcome in a
// manifest next to the output and in the build history. All execution paths (the build
// command, the watcher and tests) route through Service.
package build
