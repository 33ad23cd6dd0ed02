package upload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/testutil"
)

func TestRun_PutsFile(t *testing.T) {
	// Arrange
	var gotBody, gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sess, _ := testutil.NewSession(t)
	require.NoError(t, afero.WriteFile(sess.FS, sess.Path("output/app.json"), []byte(`{"v":1}`), 0o644))

	// Act
	err := (&Module{}).Run(context.Background(), sess, &Input{SourcePath: "output/app.json", UploadURL: server.URL + "/bucket/app.json"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, gotBody)
	assert.Equal(t, "application/json", gotType)
}

func TestRun_Failures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	sess, _ := testutil.NewSession(t)
	require.NoError(t, afero.WriteFile(sess.FS, sess.Path("a.zip"), []byte("zip"), 0o644))
	m := &Module{}

	err := m.Run(context.Background(), sess, &Input{SourcePath: "a.zip", UploadURL: server.URL})
	assert.ErrorContains(t, err, "upload failed with status")

	err = m.Run(context.Background(), sess, &Input{SourcePath: "missing.zip", UploadURL: server.URL})
	assert.ErrorContains(t, err, "failed to open source file")
}
