package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"shortbox/internal/services"
	"shortbox/internal/sources"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
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
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSources validates the credentials of every source in priority order.
// Nothing is sent over the network.
func CheckSources(registry *sources.Registry) []Result {
	names := registry.Names()
	results := make([]Result, 0, len(names))
	for _, name := range names {
		adapter, _ := registry.Get(name)
		label := fmt.Sprintf("Source %s (priority %d)", name, registry.Rank(name)+1)
		if err := adapter.Validate(); err != nil {
			results = append(results, Result{Name: label, Detail: fmt.Sprintf("%s: %v", services.Kind(err), err)})
			continue
		}
		results = append(results, Result{Name: label, Passed: true, Detail: "credentials present"})
	}
	return results
}
