// Package domain holds the core types and repository interfaces of the
// polls service. It has no dependencies on transport or storage packages.
package domain
