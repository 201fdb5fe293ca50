// Package admin provides the built-in administration commands a daemon
// installs into every registry tree it serves.
//
// The set covers runtime control of a tree: disable and enable toggle
// commands and sub-registries, prefix shows or changes registry prefixes,
// help lists what currently resolves, and ping answers a liveness probe.
// Disable, enable, and prefix are essential and non-overrideable, so they
// can neither be turned off nor shadowed by anything registered deeper in
// the tree. Help and ping are ordinary commands and may be replaced.
//
// Command instances track the registry that owns them, so one set cannot
// serve two trees. Commands builds a fresh set per call and Install wires
// one into a single root; handlers find their tree through the directory
// by the invocation's client key, the same way resolution does.
package admin
