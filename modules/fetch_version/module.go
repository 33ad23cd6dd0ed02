// Package fetch_version provides the fetch_version task kind. It reads a
// semantic version from a file and publishes it as a build property.
package fetch_version

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/property"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/session"
)

// BuildVersion is the default property the version is stored under.
var BuildVersion = property.NewKey[string]("build_version")

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the fetch_version task.
type Input struct {
	File string `hcl:"file"`
	// Property overrides the property name; defaults to build_version.
	Property string `hcl:"property,optional"`
	// AllowSuffix accepts pre-release suffixes such as 1.2.0-beta.1.
	AllowSuffix bool `hcl:"allow_suffix,optional"`
	// Suffix is appended as the pre-release part, replacing any in the file.
	Suffix string `hcl:"suffix,optional"`
}

// OnRunFetchVersion finds the first line of the file that parses as a
// semantic version. A leading "v" and markdown heading marks such as
// "## [1.2.3]" are tolerated, so changelogs work too.
func OnRunFetchVersion(ctx context.Context, sess *session.Session, input *Input) error {
	path := sess.Path(input.File)
	f, err := sess.FS.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open version file: %w", err)
	}
	defer f.Close()

	var version *semver.Version
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if v, ok := parseLine(scanner.Text()); ok {
			version = v
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read version file %s: %w", path, err)
	}
	if version == nil {
		return fmt.Errorf("no version found in %s", path)
	}

	if input.Suffix != "" {
		withSuffix, err := version.SetPrerelease(input.Suffix)
		if err != nil {
			return fmt.Errorf("invalid version suffix %q: %w", input.Suffix, err)
		}
		version = &withSuffix
	}
	if version.Prerelease() != "" && !input.AllowSuffix {
		return fmt.Errorf("version %s has a suffix, set allow_suffix to accept it", version)
	}

	name := input.Property
	if name == "" {
		name = BuildVersion.Name()
	}
	sess.Props.Put(name, version.String())
	ctxlog.FromContext(ctx).Info("Build version fetched.", "property", name, "version", version.String(), "file", path)
	return nil
}

func parseLine(line string) (*semver.Version, bool) {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "#")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "[]")
	if fields := strings.Fields(s); len(fields) > 0 {
		s = strings.Trim(fields[0], "[]")
	}
	if s == "" {
		return nil, false
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("fetch_version", registry.Handler("Reads the build version from a file.", OnRunFetchVersion))
}
