package fsops

import (
	"errors"
	"fmt"
	"os"

	"github.com/Digital-Shane/episode-tidy/internal/log"
)

// ErrorKind classifies filesystem failures so callers can tell a vanished
// file from a permissions problem. Network filesystems surface both plus a
// long tail of transport errors, which land in Other.
type ErrorKind string

const (
	NotFound         ErrorKind = "not_found"
	PermissionDenied ErrorKind = "permission_denied"
	Other            ErrorKind = "other"
)

// Error wraps a failed mutation with its classification.
type Error struct {
	Kind ErrorKind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Rename moves oldPath to newPath, refusing to overwrite. The destination
// check plus rename is not atomic, but plan-level target uniqueness means two
// run entries never race for the same destination; the check guards against
// files created outside the run.
func Rename(oldPath, newPath string) error {
	if _, err := os.Stat(newPath); err == nil {
		err := fmt.Errorf("destination already exists")
		log.LogRename(oldPath, newPath, false, err)
		return &Error{Kind: Other, Op: "rename", Path: newPath, Err: err}
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		log.LogRename(oldPath, newPath, false, err)
		return classify("rename", oldPath, err)
	}
	log.LogRename(oldPath, newPath, true, nil)
	return nil
}

// Delete removes path.
func Delete(path string) error {
	if err := os.Remove(path); err != nil {
		log.LogDelete(path, false, err)
		return classify("delete", path, err)
	}
	log.LogDelete(path, true, nil)
	return nil
}

func classify(op, path string, err error) error {
	kind := Other
	switch {
	case errors.Is(err, os.ErrNotExist):
		kind = NotFound
	case errors.Is(err, os.ErrPermission):
		kind = PermissionDenied
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}
