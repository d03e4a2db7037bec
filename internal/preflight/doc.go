// Package preflight provides readiness checks for the engine and the paths
// falcon depends on.
//
// The CLI "falcon check" command runs RunAll and prints each Result. The
// checks never mutate state: the engine check issues a single discovery
// query and the key check only parses the credentials.
package preflight
