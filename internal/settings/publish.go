// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package settings

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/ManuGH/dpmon/internal/fsutil"
)

// FilePublisher renders each snapshot into the host's config.js.
// The file is replaced atomically so the web server never serves a torn module.
type FilePublisher struct {
	Path string
	Perm os.FileMode
}

// NewFilePublisher returns a publisher writing path with mode 0644.
func NewFilePublisher(path string) *FilePublisher {
	return &FilePublisher{Path: path, Perm: 0o644}
}

func (p *FilePublisher) Name() string { return "file" }

func (p *FilePublisher) Publish(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap == nil {
		return errors.New("nil snapshot")
	}
	return fsutil.WriteAtomic(p.Path, p.Perm, func(w io.Writer) error {
		return RenderJS(w, snap.Document)
	})
}
