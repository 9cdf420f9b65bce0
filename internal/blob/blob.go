// Package blob stores attachment content outside the database. The
// database keeps metadata plus an opaque storage ref; a Backend owns the
// bytes behind that ref.
package blob

import (
	"context"
	"fmt"
	"io"
	"regexp"
)

// Backend is a content-addressed byte store. Put returns the same ref for
// the same content, so re-uploads of identical files deduplicate.
type Backend interface {
	Put(ctx context.Context, r io.Reader) (ref string, size int64, err error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// refPattern is a lowercase hex SHA-256 digest.
var refPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func validateRef(ref string) error {
	if !refPattern.MatchString(ref) {
		return fmt.Errorf("malformed storage ref %q", ref)
	}
	return nil
}
