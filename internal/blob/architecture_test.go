package blob

import (
	"strings"
	"testing"

	"culturecore/testutil"
)

// The blob package is a leaf: it must not know about domain entities or the
// engine so it can back any export without import cycles.
func TestBlobPackageStaysDecoupled(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.DomainImportForbidden,
		"blob storage must not depend on domain entities")
	testutil.AssertNoDirectImports(t, ".", func(path string) bool {
		return strings.HasPrefix(path, "culturecore/internal/")
	}, "blob storage must not depend on other internal packages")
}
