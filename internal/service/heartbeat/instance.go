package heartbeat

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"
)

// errAlreadyRunning is returned when another agent runs on this machine.
var errAlreadyRunning = errors.New("another heartbeat agent is already running")

// processLister returns the processes running on this machine.
type processLister func() ([]ps.Process, error)

func listProcesses() ([]ps.Process, error) {
	return ps.Processes()
}

// ensureSingleInstance fails when a process with this executable name but another PID exists.
func ensureSingleInstance(list processLister) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	return findOtherInstance(list, filepath.Base(self), os.Getpid())
}

func findOtherInstance(list processLister, executable string, thisProcessID int) error {
	processList, err := list()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != executable {
			continue
		}

		return fmt.Errorf("%w: pid %d", errAlreadyRunning, process.Pid())
	}

	return nil
}
