// Package errors provides the classified error primitives used across mrefbuilder.
//
// Errors carry a category (config, metadata, reflection, merge...), a severity and a
// retry hint. The CLI adapter turns them into exit codes and log records.
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryMetadata, "failed to load assembly description").
//		WithContext("path", path).
//		Fatal().
//		Build()
package errors
