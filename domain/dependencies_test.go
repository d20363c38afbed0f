package domain_test

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modulePath = "github.com/reglet-dev/scriptnet/"

// TestDomainHasNoExternalDependencies keeps the domain layer free of the
// transport, the script bindings, the hosts and every third-party module.
// Test files are exempt so they can use testify.
func TestDomainHasNoExternalDependencies(t *testing.T) {
	fset := token.NewFileSet()

	for _, pkg := range []string{"entities", "errors", "ports"} {
		files, err := filepath.Glob(filepath.Join(pkg, "*.go"))
		require.NoError(t, err)
		require.NotEmpty(t, files, "domain/%s should contain Go files", pkg)

		for _, file := range files {
			if strings.HasSuffix(file, "_test.go") {
				continue
			}
			f, err := parser.ParseFile(fset, file, nil, parser.ImportsOnly)
			require.NoError(t, err, "failed to parse %s", file)

			for _, imp := range f.Imports {
				path := strings.Trim(imp.Path.Value, `"`)
				if strings.HasPrefix(path, modulePath) {
					assert.True(t, strings.HasPrefix(path, modulePath+"domain/"),
						"%s imports %s; domain packages may only import other domain packages", file, path)
					continue
				}
				assert.False(t, isThirdParty(path),
					"%s imports third-party module %s", file, path)
			}
		}
	}
}

// isThirdParty reports whether an import path names a module rather than a
// standard library package: the first element of a module path has a dot.
func isThirdParty(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return strings.Contains(first, ".")
}

func TestIsThirdParty(t *testing.T) {
	assert.False(t, isThirdParty("net/http"))
	assert.False(t, isThirdParty("errors"))
	assert.True(t, isThirdParty("go.uber.org/zap"))
	assert.True(t, isThirdParty("github.com/stretchr/testify/assert"))
}
