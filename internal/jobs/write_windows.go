// SPDX-License-Identifier: MIT

//go:build windows

package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/m3umerge/internal/log"
	"github.com/ManuGH/m3umerge/internal/model"
	"github.com/ManuGH/m3umerge/internal/playlist"
)

// writeM3U writes the playlist through a temp file and a rename, which is
// as close to atomic as Windows gets.
func writeM3U(ctx context.Context, path string, pl *model.Playlist, opts playlist.BuildOptions) error {
	logger := log.FromContext(ctx)

	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".m3umerge-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp M3U file: %w", err)
	}
	tmpPath := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := playlist.Write(tmpFile, pl, opts); err != nil {
		return fmt.Errorf("write M3U data: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp M3U file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename M3U file: %w", err)
	}
	committed = true
	logger.Debug().Str(log.FieldPath, path).Msg("wrote M3U file")
	return nil
}
