// Package subproc owns the platform-specific parts of spawning external tools:
// putting them in their own process group and killing the whole tree.
package subproc
