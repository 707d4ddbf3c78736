// Package framework is the authoring API used by test code run by op-harness.
//
// A fixture is a struct type that either carries the fixture marker in its unit's
// registration table or embeds Fixture. Test methods may take a *Context, which
// exposes assertions, logging and runtime ignore/skip. Assertions raise
// *AssertionError, the kind the engine classifies as a Failure; any other raised
// error or panic is classified as an Error.
package framework
