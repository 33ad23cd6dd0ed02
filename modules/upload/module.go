// Package upload provides the upload task kind, which PUTs a build artifact
// to a pre-signed URL such as one issued by S3.
package upload

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/session"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client is shared by all uploads to reuse connections.
	Client *resty.Client
	once   sync.Once
}

// Input defines the arguments for the upload task.
type Input struct {
	SourcePath  string            `hcl:"source_path"`
	UploadURL   string            `hcl:"upload_url"`
	ContentType string            `hcl:"content_type,optional"`
	Headers     map[string]string `hcl:"headers,optional"`
}

func (m *Module) client() *resty.Client {
	m.once.Do(func() {
		if m.Client == nil {
			m.Client = resty.New()
		}
	})
	return m.Client
}

// Run uploads the file. The content type is guessed from the extension when
// not given.
func (m *Module) Run(ctx context.Context, sess *session.Session, input *Input) error {
	path := sess.Path(input.SourcePath)
	logger := ctxlog.FromContext(ctx).With("action", "upload")

	file, err := sess.FS.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open source file '%s': %w", path, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file stats for '%s': %w", path, err)
	}

	contentType := input.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	logger.Info("Uploading file.", "source", path, "size", stat.Size(), "contentType", contentType)

	resp, err := m.client().R().
		SetContext(ctx).
		SetHeaders(input.Headers).
		SetHeader("Content-Type", contentType).
		SetContentLength(true).
		SetBody(file).
		Put(input.UploadURL)
	if err != nil {
		return fmt.Errorf("failed to execute upload request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return fmt.Errorf("upload failed with status: %s", resp.Status())
	}

	logger.Info("Successfully uploaded file.", "status", resp.Status())
	return nil
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("upload", registry.Handler("Uploads a file to a pre-signed URL.", m.Run))
}
