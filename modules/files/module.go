// Package files provides directory management task kinds. They operate on
// the session filesystem, so tests can run them against memory.
package files

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/otiai10/copy"
	"github.com/spf13/afero"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/session"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// MkdirInput defines the arguments for the mkdir task.
type MkdirInput struct {
	Path string `hcl:"path"`
	// Recreate deletes an existing directory first.
	Recreate bool `hcl:"recreate,optional"`
}

// RmdirInput defines the arguments for the rmdir task.
type RmdirInput struct {
	Path          string `hcl:"path"`
	FailIfMissing bool   `hcl:"fail_if_missing,optional"`
}

// CleanInput defines the arguments for the clean task.
type CleanInput struct {
	Paths []string `hcl:"paths"`
	// Recreate leaves each directory in place, empty. Otherwise it is removed.
	Recreate bool `hcl:"recreate,optional"`
}

// CopyInput defines the arguments for the copy task.
type CopyInput struct {
	Source      string `hcl:"source"`
	Destination string `hcl:"destination"`
	// Overwrite replaces existing files; otherwise they are kept.
	Overwrite bool `hcl:"overwrite,optional"`
}

// OnRunMkdir creates a directory with any missing parents.
func OnRunMkdir(ctx context.Context, sess *session.Session, input *MkdirInput) error {
	path := sess.Path(input.Path)
	logger := ctxlog.FromContext(ctx).With("path", path)

	if input.Recreate {
		if err := sess.FS.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove directory '%s': %w", path, err)
		}
	}
	if err := sess.FS.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", path, err)
	}
	logger.Info("Directory created.", "recreated", input.Recreate)
	return nil
}

// OnRunRmdir deletes a directory and everything below it.
func OnRunRmdir(ctx context.Context, sess *session.Session, input *RmdirInput) error {
	path := sess.Path(input.Path)
	logger := ctxlog.FromContext(ctx).With("path", path)

	exists, err := afero.DirExists(sess.FS, path)
	if err != nil {
		return fmt.Errorf("failed to inspect '%s': %w", path, err)
	}
	if !exists {
		if input.FailIfMissing {
			return fmt.Errorf("directory '%s' does not exist", path)
		}
		logger.Debug("Directory does not exist, nothing to delete.")
		return nil
	}
	if err := sess.FS.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete directory '%s': %w", path, err)
	}
	logger.Info("Directory deleted.")
	return nil
}

// OnRunClean empties or removes every listed directory. Missing directories
// are created when Recreate is set and ignored otherwise.
func OnRunClean(ctx context.Context, sess *session.Session, input *CleanInput) error {
	logger := ctxlog.FromContext(ctx)
	var errs []error
	for _, p := range input.Paths {
		path := sess.Path(p)
		if err := sess.FS.RemoveAll(path); err != nil {
			errs = append(errs, fmt.Errorf("failed to clean '%s': %w", path, err))
			continue
		}
		if input.Recreate {
			if err := sess.FS.MkdirAll(path, 0o755); err != nil {
				errs = append(errs, fmt.Errorf("failed to recreate '%s': %w", path, err))
				continue
			}
		}
		logger.Info("Directory cleaned.", "path", path, "recreated", input.Recreate)
	}
	return errors.Join(errs...)
}

// OnRunCopy copies a file or directory tree. On the OS filesystem it uses
// the copy library; other filesystems are walked through afero.
func OnRunCopy(ctx context.Context, sess *session.Session, input *CopyInput) error {
	src, dst := sess.Path(input.Source), sess.Path(input.Destination)
	logger := ctxlog.FromContext(ctx).With("source", src, "destination", dst)

	if _, err := sess.FS.Stat(src); err != nil {
		return fmt.Errorf("copy source '%s': %w", src, err)
	}

	var err error
	if _, isOS := sess.FS.(*afero.OsFs); isOS {
		err = copy.Copy(src, dst, copy.Options{
			OnDirExists: func(string, string) copy.DirExistsAction { return copy.Merge },
			Skip: func(info os.FileInfo, _ string, dest string) (bool, error) {
				if input.Overwrite || info.IsDir() {
					return false, nil
				}
				_, statErr := os.Stat(dest)
				return statErr == nil, nil
			},
		})
	} else {
		err = copyTree(sess.FS, src, dst, input.Overwrite)
	}
	if err != nil {
		return fmt.Errorf("failed to copy '%s' to '%s': %w", src, dst, err)
	}
	logger.Info("Copied.")
	return nil
}

// Register registers the handlers with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("mkdir", registry.Handler("Creates a directory.", OnRunMkdir))
	r.RegisterTask("rmdir", registry.Handler("Deletes a directory.", OnRunRmdir))
	r.RegisterTask("clean", registry.Handler("Empties or removes directories.", OnRunClean))
	r.RegisterTask("copy", registry.Handler("Copies a file or directory.", OnRunCopy))
}
