package service

import "runtime"

// Manager installs and controls the bridge daemon under the platform's
// service supervisor. Install registers `punchline start` with the
// supervisor; it does not start the daemon.
type Manager interface {
	Install() error
	Uninstall() error
	Start() error
	Stop() error
	Status() (string, error)
}

// New picks the manager for the running platform.
func New() Manager {
	switch runtime.GOOS {
	case "windows":
		return &WindowsService{}
	case "darwin":
		return &DarwinService{}
	default:
		return &LinuxService{}
	}
}
