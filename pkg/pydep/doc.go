// Package pydep resolves and simplifies the transitive dependency graph of
// Python packages.
//
// The package provides, in resolution order:
//
//   - [Normalize]: canonical package identities for deduplication
//   - [ParseRequirement]: PEP 508-style requirement specifiers with markers
//   - [Resolver]: turns specifiers into resolved [Package] nodes using
//     registry metadata, including supported-version inference
//   - [Resolver.BuildPackage] / [Resolver.BuildProduct]: recursive dependency
//     tree construction with cycle detection
//   - [Tree.Serialize]: the flat interchange form consumed by pruning
//   - [Prune]: multi-rule graph reduction with fixpoint unreferenced removal
//
// Registry access is abstracted behind the [Fetcher] interface so the
// resolver can be tested without network access.
package pydep
