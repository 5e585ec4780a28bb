package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"texbake/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable,
// and writable when write is set.
func CheckDirectoryAccess(name, path string, write bool) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	mode := uint32(unix.R_OK | unix.X_OK)
	label := "read ok"
	if write {
		mode |= unix.W_OK
		label = "read/write ok"
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, label)}
}

// CheckWritableDir verifies that path is writable, or that it can be created
// under its nearest existing ancestor.
func CheckWritableDir(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if _, err := os.Stat(path); err == nil {
		return CheckDirectoryAccess(name, path, true)
	}
	parent := filepath.Dir(path)
	for {
		if _, err := os.Stat(parent); err == nil {
			break
		}
		next := filepath.Dir(parent)
		if next == parent {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: no existing parent)", path)}
		}
		parent = next
	}
	if err := unix.Access(parent, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, parent, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
}

// DonorMaterials lists the resource-relative donor materials glow export
// falls back to.
var DonorMaterials = []string{
	filepath.Join("res", "materials", "skin_glow.mtrl"),
	filepath.Join("res", "materials", "eye_glow.mtrl"),
}

// CheckDonorMaterials verifies the donor materials exist under baseDir.
func CheckDonorMaterials(baseDir string) []Result {
	results := make([]Result, 0, len(DonorMaterials))
	for _, rel := range DonorMaterials {
		name := "Donor " + filepath.Base(rel)
		path := filepath.Join(baseDir, rel)
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			results = append(results, Result{Name: name, Detail: fmt.Sprintf("%s (error: missing; glow export fails without it)", path)})
		case err != nil:
			results = append(results, Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)})
		case info.Size() == 0:
			results = append(results, Result{Name: name, Detail: fmt.Sprintf("%s (error: empty)", path)})
		default:
			results = append(results, Result{Name: name, Passed: true, Detail: path})
		}
	}
	return results
}

// CheckBakeTool verifies the detail-transfer tool is installed.
func CheckBakeTool(command string) Result {
	status := CheckSystemDeps(command)[0]
	if !status.Available {
		return Result{Name: status.Name, Detail: status.Detail}
	}
	return Result{Name: status.Name, Passed: true, Detail: status.Path}
}

// CheckSystemDeps evaluates the external commands texbake runs.
func CheckSystemDeps(bakeTool string) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "Detail transfer tool",
			Command:     bakeTool,
			Description: "Required when export.use_external_baking is enabled",
			Optional:    true,
		},
	})
}
