// Package datasource defines the byte-source contract shared by the local
// file and HTTP sources.
package datasource

import (
	"context"
	"io"
)

// Source opens a readable stream of UTF-8 text.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
