// Package metadata is the in-memory object graph of the managed API surface being
// documented: assemblies, modules, namespaces, types and their members.
//
// The graph is built once by a loader and is read-only afterwards. Instantiations of
// generic types and array, pointer, by-reference and modified types are interned on
// the node they derive from, so pointer identity can be used to compare them.
package metadata
