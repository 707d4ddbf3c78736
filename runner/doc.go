// Package runner walks a test tree and reports progress through an events.Sink.
//
// Suites are walked depth first in declaration order. For each fixture suite
// one fixture instance is created; the fixture-setup hook runs once before the
// children and the fixture-teardown hook runs once after them, even when setup
// failed. Each case runs setup, body and teardown, and its outcome is classified
// from whatever the body raised (a panic or a returned error).
package runner
