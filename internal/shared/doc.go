// Package shared holds cross-cutting helpers that belong to no single
// feature package. The testutil subpackage carries the test tooling.
package shared
