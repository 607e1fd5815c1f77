package asset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// URLPrefix is the path stored assets are served under. Uploaded media keep
// it in their source reference.
const URLPrefix = "/assets/"

// DirResolver opens "/assets/<file>" references from the asset directory for
// the media loader.
type DirResolver struct {
	dir string
}

func NewDirResolver(dir string) *DirResolver {
	return &DirResolver{dir: dir}
}

func (d *DirResolver) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	name, ok := strings.CutPrefix(ref, URLPrefix)
	if !ok || name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("asset ref %q: not a stored asset", ref)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(d.dir, name))
}
