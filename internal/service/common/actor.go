//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"
)

// Agent identifies the machine and account a client runs on.
type Agent struct {
	Hostname string
	Username string
}

// String renders the agent as username@hostname.
func (a *Agent) String() string {
	if a == nil {
		return "<unknown>"
	}

	return a.Username + "@" + a.Hostname
}

// DetectAgent gathers host and user information for log context.
func DetectAgent() (*Agent, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &Agent{
		Hostname: hostname,
		Username: currentUser.Username,
	}, nil
}
