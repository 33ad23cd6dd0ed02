package hcl_adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// coreFunctions are the pure functions available in every expression.
func coreFunctions() map[string]function.Function {
	return map[string]function.Function{
		"upper":         stdlib.UpperFunc,
		"lower":         stdlib.LowerFunc,
		"trimspace":     stdlib.TrimSpaceFunc,
		"trimprefix":    stdlib.TrimPrefixFunc,
		"trimsuffix":    stdlib.TrimSuffixFunc,
		"replace":       stdlib.ReplaceFunc,
		"regex_replace": stdlib.RegexReplaceFunc,
		"substr":        stdlib.SubstrFunc,
		"join":          stdlib.JoinFunc,
		"split":         stdlib.SplitFunc,
		"format":        stdlib.FormatFunc,
		"concat":        stdlib.ConcatFunc,
		"length":        stdlib.LengthFunc,
		"contains":      stdlib.ContainsFunc,
		"coalesce":      stdlib.CoalesceFunc,
		"element":       stdlib.ElementFunc,
		"distinct":      stdlib.DistinctFunc,
		"flatten":       stdlib.FlattenFunc,
		"keys":          stdlib.KeysFunc,
		"values":        stdlib.ValuesFunc,
		"merge":         stdlib.MergeFunc,
		"min":           stdlib.MinFunc,
		"max":           stdlib.MaxFunc,
		"jsonencode":    stdlib.JSONEncodeFunc,
		"jsondecode":    stdlib.JSONDecodeFunc,
		"tostring":      stdlib.MakeToFunc(cty.String),
		"tonumber":      stdlib.MakeToFunc(cty.Number),
		"tobool":        stdlib.MakeToFunc(cty.Bool),
	}
}

// buildFunctions adds the filesystem functions, resolved against baseDir.
func buildFunctions(baseDir string) map[string]function.Function {
	funcs := coreFunctions()
	funcs["glob"] = makeGlobFunc(baseDir)
	funcs["file"] = makeFileFunc(baseDir)
	return funcs
}

// makeGlobFunc returns glob(pattern), listing files matching a doublestar
// pattern such as "src/**/*.csproj" in sorted order.
func makeGlobFunc(baseDir string) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "pattern", Type: cty.String}},
		Type:   function.StaticReturnType(cty.List(cty.String)),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			pattern := args[0].AsString()
			var matches []string
			if filepath.IsAbs(pattern) {
				found, err := doublestar.FilepathGlob(pattern)
				if err != nil {
					return cty.NilVal, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
				}
				matches = found
			} else {
				found, err := doublestar.Glob(os.DirFS(baseDir), filepath.ToSlash(pattern))
				if err != nil {
					return cty.NilVal, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
				}
				for _, m := range found {
					matches = append(matches, filepath.Join(baseDir, filepath.FromSlash(m)))
				}
			}
			if len(matches) == 0 {
				return cty.ListValEmpty(cty.String), nil
			}
			sort.Strings(matches)
			vals := make([]cty.Value, len(matches))
			for i, m := range matches {
				vals[i] = cty.StringVal(m)
			}
			return cty.ListVal(vals), nil
		},
	})
}

// makeFileFunc returns file(path), reading a file's contents as a string.
func makeFileFunc(baseDir string) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "path", Type: cty.String}},
		Type:   function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			path := args[0].AsString()
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return cty.NilVal, err
			}
			return cty.StringVal(string(data)), nil
		},
	})
}
