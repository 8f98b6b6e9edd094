package runner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	appErr "github.com/xxxsen/shoruichecker/internal/pkg/errors"
)

var scratchSeq atomic.Uint64

// Scratch is a uniquely named working directory for one invocation. The name
// combines the wall clock with a process-wide counter so concurrent and rapid
// consecutive calls never share a directory.
type Scratch struct {
	dir   string
	names map[string]struct{}
}

func NewScratch(base, prefix string) (*Scratch, error) {
	if base == "" {
		base = os.TempDir()
	}
	name := prefix + "_" + strconv.FormatInt(time.Now().UnixNano(), 10) + "_" + strconv.FormatUint(scratchSeq.Add(1), 10)
	dir := filepath.Join(base, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create scratch dir: %v", appErr.ErrIO, err)
	}
	return &Scratch{dir: dir, names: make(map[string]struct{})}, nil
}

func (s *Scratch) Dir() string {
	return s.dir
}

func (s *Scratch) WriteFile(name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", appErr.ErrIO, name, err)
	}
	return nil
}

// AttachmentNames returns the names Copy assigns to paths copied in order into
// an empty scratch dir.
func AttachmentNames(paths []string) []string {
	used := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, uniqueName(used, filepath.Base(p)))
	}
	return out
}

// uniqueName reserves base in used, prefixing a number until it is free.
func uniqueName(used map[string]struct{}, base string) string {
	name := base
	for n := len(used); ; n++ {
		if _, dup := used[name]; !dup {
			used[name] = struct{}{}
			return name
		}
		name = fmt.Sprintf("%d_%s", n, base)
	}
}

// Copy copies src into the scratch dir and returns the name relative to it.
// A repeated base name gets a numeric prefix instead of overwriting.
func (s *Scratch) Copy(src string) (string, error) {
	name := uniqueName(s.names, filepath.Base(src))
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", appErr.ErrIO, src, err)
	}
	defer in.Close()
	out, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %v", appErr.ErrIO, name, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("%w: copy %s: %v", appErr.ErrIO, src, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("%w: close %s: %v", appErr.ErrIO, name, err)
	}
	return name, nil
}

func (s *Scratch) Remove() {
	_ = os.RemoveAll(s.dir)
}
