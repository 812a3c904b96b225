package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/piclane/DropboxAutomation/internal/services"
	"github.com/piclane/DropboxAutomation/internal/storage"
)

// FolderClient is the slice of the Dropbox client the remote workflow needs.
type FolderClient interface {
	ListFolderContinue(ctx context.Context, cursor string) (storage.Page, error)
	Download(ctx context.Context, path string) ([]byte, error)
	MoveV2(ctx context.Context, fromPath, toPath string, autorename bool) (string, error)
	Upload(ctx context.Context, data []byte, path string, mute bool) error
}

// WatchState owns the folder-change cursor. Every read and overwrite goes
// through its lock, so overlapping notification handlers cannot tear or
// lose the value.
type WatchState struct {
	mu     sync.Mutex
	cursor string
}

func NewWatchState(cursor string) *WatchState {
	return &WatchState{cursor: cursor}
}

func (s *WatchState) Cursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *WatchState) Advance(cursor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = cursor
}

// RemoteWorkflow processes change notifications for the watched Dropbox
// folder: qualifying PDFs are downloaded, analyzed, renamed remotely and
// overwritten with an annotated copy.
type RemoteWorkflow struct {
	client    FolderClient
	analyzer  Analyzer
	annotator Annotator
	state     *WatchState
	prefix    string

	// Serializes HandleNotification. Webhook deliveries can overlap;
	// running scans concurrently would double-process entries and race on
	// the cursor.
	mu sync.Mutex
}

func NewRemoteWorkflow(client FolderClient, analyzer Analyzer, annotator Annotator, state *WatchState, prefix string) *RemoteWorkflow {
	return &RemoteWorkflow{
		client:    client,
		analyzer:  analyzer,
		annotator: annotator,
		state:     state,
		prefix:    prefix,
	}
}

// HandleNotification drains the folder-change stream page by page. The
// cursor advances after every page regardless of per-file outcomes: a file
// seen but failed is skipped, not retried. Files the workflow already
// renamed lost their prefix marker and never qualify again.
func (w *RemoteWorkflow) HandleNotification() {
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx := context.Background()

	for hasMore := true; hasMore; {
		page, err := w.client.ListFolderContinue(ctx, w.state.Cursor())
		if err != nil {
			slog.Error("error listing folder changes", "error", err)
			return
		}

		for _, entry := range page.Entries {
			if !entry.IsFile() {
				continue
			}
			if !strings.HasPrefix(entry.Name, w.prefix) || !strings.HasSuffix(entry.PathLower, ".pdf") {
				continue
			}

			if err := w.processFile(ctx, entry.PathLower); err != nil {
				slog.Error("error processing file", "path", entry.PathLower, "error", err)
			}
		}

		w.state.Advance(page.Cursor)
		hasMore = page.HasMore
	}
}

// processFile runs the single-file pipeline. A failure before the move
// leaves the remote file untouched; a failure between move and upload
// leaves it renamed without the annotation, which a later scan will not
// revisit.
func (w *RemoteWorkflow) processFile(ctx context.Context, remotePath string) error {
	slog.Info("processing Dropbox PDF file", "path", remotePath)

	oldLocalPath := services.TempPDFPath()
	newLocalPath := services.TempPDFPath()
	defer cleanupTempFiles(oldLocalPath, newLocalPath)

	data, err := w.client.Download(ctx, remotePath)
	if err != nil {
		return fmt.Errorf("download file: %w", err)
	}
	if err := os.WriteFile(oldLocalPath, data, 0o644); err != nil {
		return fmt.Errorf("write downloaded file: %w", err)
	}
	slog.Info("downloaded file", "path", oldLocalPath)

	analysis, err := w.analyzer.AnalyzePDF(ctx, oldLocalPath)
	if err != nil {
		return err
	}
	slog.Info("analysis result", "date", analysis.Date, "title", analysis.Title)

	newRemotePath := path.Join(path.Dir(remotePath), analysis.FileName())

	if err := w.annotator.Annotate(oldLocalPath, newLocalPath, analysis.Summary, 0); err != nil {
		return fmt.Errorf("annotate file: %w", err)
	}

	// Collision resolution is delegated to Dropbox: autorename picks a free
	// name and the annotated content is uploaded to whatever path the move
	// actually landed on.
	actualPath, err := w.client.MoveV2(ctx, remotePath, newRemotePath, true)
	if err != nil {
		return fmt.Errorf("rename file: %w", err)
	}

	annotated, err := os.ReadFile(newLocalPath)
	if err != nil {
		return fmt.Errorf("read annotated file: %w", err)
	}
	if err := w.client.Upload(ctx, annotated, actualPath, true); err != nil {
		return fmt.Errorf("upload annotated file: %w", err)
	}
	slog.Info("renamed file", "path", actualPath)

	slog.Info("successfully processed file", "path", remotePath)
	return nil
}

func cleanupTempFiles(paths ...string) {
	for _, p := range paths {
		if !pathExists(p) {
			continue
		}
		if err := os.Remove(p); err != nil {
			slog.Warn("error cleaning up temp file", "path", p, "error", err)
		}
	}
}
