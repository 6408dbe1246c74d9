// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (feed.go, content.go, subscription.go,
// session.go, etc.) with shared types and cross-cutting interfaces. No implementation
// code beyond small value helpers - just contracts. Keeping the interfaces here prevents
// circular imports between the core packages and the adapters that implement them.
package domain
