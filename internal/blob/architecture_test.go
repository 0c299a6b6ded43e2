package blob

import (
	"slices"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// Backends under internal/infra/blob are reachable only through this package;
// gateways and commands see the Store interface.
func TestInfraBlobBackendsStayBehindFacade(t *testing.T) {
	const (
		backends = "medtracker/internal/infra/blob"
		facade   = "medtracker/internal/blob"
	)
	pkgs, err := packages.Load(&packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}, "medtracker/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	var leaks []string
	for _, pkg := range pkgs {
		if within(pkg.PkgPath, facade) || within(pkg.PkgPath, backends) {
			continue
		}
		for path := range pkg.Imports {
			if within(path, backends) {
				leaks = append(leaks, pkg.PkgPath+" -> "+path)
			}
		}
	}
	if len(leaks) == 0 {
		return
	}
	slices.Sort(leaks)
	leaks = slices.Compact(leaks)
	t.Fatalf("blob backends imported outside %s:\n%s", facade, strings.Join(leaks, "\n"))
}

func within(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
