package hcl_adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func evalExpr(t *testing.T, src string, baseDir string) cty.Value {
	t.Helper()
	expr, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), diags.Error())
	val, diags := expr.Value(&hcl.EvalContext{Functions: buildFunctions(baseDir)})
	require.False(t, diags.HasErrors(), diags.Error())
	return val
}

func TestGlobFunction(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	for _, rel := range []string{"src/api/api.csproj", "src/web/web.csproj", "src/web/readme.md", "tests/unit.csproj"} {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o600))
	}

	// Act
	val := evalExpr(t, `glob("src/**/*.csproj")`, dir)

	// Assert
	var got []string
	for _, v := range val.AsValueSlice() {
		got = append(got, v.AsString())
	}
	assert.Equal(t, []string{
		filepath.Join(dir, "src", "api", "api.csproj"),
		filepath.Join(dir, "src", "web", "web.csproj"),
	}, got)

	empty := evalExpr(t, `glob("nothing/*.txt")`, dir)
	assert.Equal(t, 0, empty.LengthInt())
}

func TestFileFunction(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "VERSION"), []byte("2.0.1\n"), 0o600))

	val := evalExpr(t, `trimspace(file("VERSION"))`, dir)

	assert.Equal(t, "2.0.1", val.AsString())
}

func TestCoreFunctions(t *testing.T) {
	val := evalExpr(t, `upper(join("-", ["a", "b"]))`, t.TempDir())
	assert.Equal(t, "A-B", val.AsString())
}
