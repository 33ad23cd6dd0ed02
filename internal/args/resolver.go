// Package args resolves build properties from their sources into one flat
// map of values.
//
// Sources are layered with koanf so that later layers override earlier ones.
// The effective priority, highest first, is:
//
//  1. explicit overrides (key=value on the command line)
//  2. the YAML config file
//  3. environment variables (process env, then an optional .env file beneath it)
//  4. the default declared for the property
package args

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"
	"github.com/vk/buildgrid/internal/ctxlog"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to a property name to build its default environment
// variable name: property "app_pool" is read from BUILDGRID_APP_POOL.
const EnvPrefix = "BUILDGRID_"

// SourceType names where a resolved value came from.
type SourceType string

const (
	SourceDefault  SourceType = "default"
	SourceEnv      SourceType = "env"
	SourceDotEnv   SourceType = "dotenv"
	SourceFile     SourceType = "file"
	SourceExplicit SourceType = "explicit"
)

// Declaration describes one property a build file declares.
type Declaration struct {
	Name        string
	Description string
	// Default is used when no other source supplies a value. Nil means the
	// property has no default and stays unset.
	Default any
	// EnvVar overrides the derived BUILDGRID_<NAME> variable.
	EnvVar string
	// Convert, when set, coerces raw source values (usually strings) into the
	// declared type.
	Convert func(any) (any, error)
}

// EnvName returns the environment variable consulted for the declaration.
func (d Declaration) EnvName() string {
	if d.EnvVar != "" {
		return d.EnvVar
	}
	return EnvPrefix + strings.ToUpper(d.Name)
}

// Options gathers every input to a resolution.
type Options struct {
	Declarations []Declaration
	// Explicit holds command-line overrides. Undeclared keys are kept.
	Explicit map[string]string
	// ConfigFile is an optional YAML file of property values.
	ConfigFile string
	// DotEnvFile is an optional .env file read beneath the process env.
	DotEnvFile string
}

// Resolution is the outcome of resolving all properties.
type Resolution struct {
	Values  map[string]any
	Sources map[string]SourceType
}

// Names returns resolved property names in sorted order.
func (r *Resolution) Names() []string {
	names := make([]string, 0, len(r.Values))
	for k := range r.Values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ParseOverrides splits "key=value" arguments. It returns the overrides and
// the remaining positional arguments in their original order.
func ParseOverrides(in []string) (map[string]string, []string) {
	overrides := make(map[string]string)
	var rest []string
	for _, arg := range in {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			rest = append(rest, arg)
			continue
		}
		overrides[strings.TrimLeft(key, "-")] = value
	}
	return overrides, rest
}

// Resolve applies every source in priority order and converts declared
// properties to their declared types.
func Resolve(ctx context.Context, opts Options) (*Resolution, error) {
	logger := ctxlog.FromContext(ctx)
	k := koanf.New(".")
	res := &Resolution{
		Values:  make(map[string]any),
		Sources: make(map[string]SourceType),
	}

	declared := make(map[string]Declaration, len(opts.Declarations))
	defaults := make(rawMap)
	for _, d := range opts.Declarations {
		if _, dup := declared[d.Name]; dup {
			return nil, fmt.Errorf("property '%s' is declared more than once", d.Name)
		}
		declared[d.Name] = d
		if d.Default != nil {
			defaults[d.Name] = d.Default
		}
	}

	if err := loadLayer(k, res, defaults, SourceDefault); err != nil {
		return nil, err
	}

	if opts.DotEnvFile != "" {
		dotenv, err := readDotEnv(opts.DotEnvFile, declared)
		if err != nil {
			return nil, err
		}
		if err := loadLayer(k, res, dotenv, SourceDotEnv); err != nil {
			return nil, err
		}
	}

	if err := loadEnvironment(k, res, declared); err != nil {
		return nil, err
	}

	if opts.ConfigFile != "" {
		fileValues, err := readConfigFile(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		if err := loadLayer(k, res, fileValues, SourceFile); err != nil {
			return nil, err
		}
	}

	explicit := make(rawMap, len(opts.Explicit))
	for key, v := range opts.Explicit {
		explicit[key] = v
	}
	if err := loadLayer(k, res, explicit, SourceExplicit); err != nil {
		return nil, err
	}

	// Raw keeps map and object values whole; All would flatten them into
	// dotted keys.
	for key, v := range k.Raw() {
		if d, ok := declared[key]; ok && d.Convert != nil {
			converted, err := d.Convert(v)
			if err != nil {
				return nil, fmt.Errorf("property '%s' (from %s): %w", key, res.Sources[key], err)
			}
			v = converted
		}
		res.Values[key] = v
	}

	logger.Debug("Properties resolved.", "count", len(res.Values))
	return res, nil
}

// loadLayer merges one source into koanf and records which keys it supplied.
func loadLayer(k *koanf.Koanf, res *Resolution, values rawMap, source SourceType) error {
	if len(values) == 0 {
		return nil
	}
	if err := k.Load(values, nil, koanf.WithMergeFunc(replaceTopLevel)); err != nil {
		return fmt.Errorf("failed to apply %s properties: %w", source, err)
	}
	for key := range values {
		res.Sources[key] = source
	}
	return nil
}

// replaceTopLevel merges one layer into the loaded values property by
// property: a map-valued property from a higher layer replaces the lower
// value instead of being deep-merged into it.
func replaceTopLevel(src, dest map[string]any) error {
	for k, v := range src {
		dest[k] = v
	}
	return nil
}

// loadEnvironment reads declared properties and BUILDGRID_-prefixed variables
// from the process environment.
func loadEnvironment(k *koanf.Koanf, res *Resolution, declared map[string]Declaration) error {
	envToName := make(map[string]string, len(declared))
	for name, d := range declared {
		envToName[d.EnvName()] = name
	}

	supplied := make(map[string]struct{})
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: "",
		TransformFunc: func(key string, value string) (string, any) {
			name, ok := envToName[key]
			if !ok && strings.HasPrefix(key, EnvPrefix) {
				name, ok = strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), true
			}
			if !ok {
				return "", nil
			}
			supplied[name] = struct{}{}
			return name, value
		},
	}), nil, koanf.WithMergeFunc(replaceTopLevel)); err != nil {
		return fmt.Errorf("failed to load environment properties: %w", err)
	}

	for name := range supplied {
		res.Sources[name] = SourceEnv
	}
	return nil
}

// readDotEnv reads a .env file and keeps entries that map to properties.
// Variables already present in the process environment are skipped, since
// the process environment sits above the file.
func readDotEnv(path string, declared map[string]Declaration) (rawMap, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	envToName := make(map[string]string, len(declared))
	for name, d := range declared {
		envToName[d.EnvName()] = name
	}

	out := make(rawMap)
	for key, value := range vars {
		if _, inProcess := os.LookupEnv(key); inProcess {
			continue
		}
		if name, ok := envToName[key]; ok {
			out[name] = value
			continue
		}
		if strings.HasPrefix(key, EnvPrefix) {
			out[strings.ToLower(strings.TrimPrefix(key, EnvPrefix))] = value
		}
	}
	return out, nil
}

// readConfigFile decodes a YAML mapping of property values.
func readConfigFile(path string) (rawMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	out := make(rawMap)
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return out, nil
}

// rawMap is a koanf.Provider adapter for map[string]any data.
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("ReadBytes not implemented")
}
