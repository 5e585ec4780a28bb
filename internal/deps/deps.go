// Package deps reports whether the external tools texbake shells out to are
// installed.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Requirement is an external command texbake may run.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := Resolve(cmd)
		if err != nil {
			status.Detail = err.Error()
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		results = append(results, status)
	}
	return results
}

// Resolve locates cmd. Paths are checked directly; bare names are looked up
// on PATH.
func Resolve(cmd string) (string, error) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return "", fmt.Errorf("command not configured")
	}
	if !strings.ContainsAny(cmd, `/\`) {
		path, err := exec.LookPath(cmd)
		if err != nil {
			return "", fmt.Errorf("binary %q not found on PATH", cmd)
		}
		return path, nil
	}
	info, err := os.Stat(cmd)
	if err != nil {
		return "", fmt.Errorf("binary %q not found", cmd)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%q is a directory", cmd)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return "", fmt.Errorf("%q is not executable", cmd)
	}
	return cmd, nil
}
