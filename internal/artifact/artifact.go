// Package artifact describes the deployable application jar that the gateway
// can launch on the cluster when no running job is configured.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sqlgateway/internal/apperrors"
)

// Jar is a local deployable artifact. Immutable after construction.
type Jar struct {
	Path string
	Name string
}

// NewJar creates a Jar descriptor for the given local path.
func NewJar(path string) *Jar {
	return &Jar{
		Path: path,
		Name: filepath.Base(path),
	}
}

// Validate checks that the jar exists and looks launchable. It does not read
// the file contents. A misconfigured jar is a deployment fault, not a caller
// fault, so failures classify as NoTarget rather than Validation.
func (j *Jar) Validate() error {
	if j.Path == "" {
		return apperrors.NoTarget("jar path is required")
	}
	if !strings.HasSuffix(j.Name, ".jar") {
		return apperrors.NoTarget(fmt.Sprintf("%q is not a .jar file", j.Name))
	}

	info, err := os.Stat(j.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.NoTarget(fmt.Sprintf("jar %q is not accessible inside the gateway container", j.Path))
		}
		return apperrors.Internal("artifact.stat", err)
	}
	if info.IsDir() {
		return apperrors.NoTarget(fmt.Sprintf("jar path %q is a directory", j.Path))
	}
	if info.Size() == 0 {
		return apperrors.NoTarget(fmt.Sprintf("jar %q is empty", j.Path))
	}
	return nil
}

// Read returns the jar bytes for upload.
func (j *Jar) Read() ([]byte, error) {
	data, err := os.ReadFile(j.Path)
	if err != nil {
		return nil, apperrors.Internal("artifact.read", err)
	}
	return data, nil
}

// SHA256 returns the hex digest of the jar contents, used for launch logging.
func (j *Jar) SHA256() (string, error) {
	data, err := j.Read()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
