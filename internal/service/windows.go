package service

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const winServiceName = "PunchlineBridge"

// WindowsService manages an SCM service through sc.exe. The daemon does
// not speak the SCM control protocol, so this relies on SCM tolerating a
// plain console process.
type WindowsService struct{}

func (s *WindowsService) Install() error {
	exePath, err := os.Executable()
	if err != nil {
		return err
	}
	exePath, _ = filepath.Abs(exePath)

	cmd := exec.Command("sc", "create", winServiceName,
		"binPath=", fmt.Sprintf(`"%s" start`, exePath),
		"start=", "auto",
		"DisplayName=", "Punchline Bridge")

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w", string(out), err)
	}
	return nil
}

func (s *WindowsService) Uninstall() error {
	s.Stop()
	cmd := exec.Command("sc", "delete", winServiceName)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w", string(out), err)
	}
	return nil
}

func (s *WindowsService) Start() error {
	return exec.Command("sc", "start", winServiceName).Run()
}

func (s *WindowsService) Stop() error {
	return exec.Command("sc", "stop", winServiceName).Run()
}

func (s *WindowsService) Status() (string, error) {
	out, err := exec.Command("sc", "query", winServiceName).Output()
	if err != nil {
		return "not installed", nil
	}
	if strings.Contains(string(out), "RUNNING") {
		return "running", nil
	}
	return "stopped", nil
}
