// Package app defines the runtime contract shared by the mvm-bridge
// entrypoints, so cmd/* binaries can start a component without
// depending on its concrete type.
package app

// Runner represents a runnable application component.
type Runner interface {
	Run() error
}
