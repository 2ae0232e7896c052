// SPDX-License-Identifier: MIT

//go:build !windows

package jobs

import (
	"context"
	"fmt"

	"github.com/ManuGH/m3umerge/internal/log"
	"github.com/ManuGH/m3umerge/internal/model"
	"github.com/ManuGH/m3umerge/internal/playlist"
	"github.com/google/renameio/v2"
)

// writeM3U writes the playlist atomically and durably: renameio fsyncs the
// temp file before renaming it over path.
func writeM3U(ctx context.Context, path string, pl *model.Playlist, opts playlist.BuildOptions) error {
	logger := log.FromContext(ctx)

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending M3U file: %w", err)
	}
	defer func() {
		// No-op once committed.
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending M3U file")
		}
	}()

	if err := playlist.Write(pendingFile, pl, opts); err != nil {
		return fmt.Errorf("write M3U data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace M3U file: %w", err)
	}
	return nil
}
