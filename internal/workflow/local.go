package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/piclane/DropboxAutomation/internal/domain"
)

// Analyzer produces a normalized analysis record for a local PDF file.
type Analyzer interface {
	AnalyzePDF(ctx context.Context, path string) (domain.AnalysisResult, error)
}

// Annotator stamps summary text onto a copy of a PDF.
type Annotator interface {
	Annotate(srcPath, dstPath, text string, page int) error
	AnnotateToTemp(srcPath, text string) (string, error)
}

// LocalWorkflow renames and annotates a single PDF on the local file system.
// It is fire-and-forget: every failure is logged and swallowed, the CLI
// process never crashes over a document.
type LocalWorkflow struct {
	analyzer  Analyzer
	annotator Annotator
	console   io.Writer
}

func NewLocalWorkflow(analyzer Analyzer, annotator Annotator) *LocalWorkflow {
	return &LocalWorkflow{
		analyzer:  analyzer,
		annotator: annotator,
		console:   os.Stdout,
	}
}

// Process analyzes the PDF at path, renames it to "{date} {title}.pdf" in
// the same directory and replaces its content with an annotated copy
// carrying the summary. Outcomes are reported via logs and the console.
func (w *LocalWorkflow) Process(ctx context.Context, path string) {
	slog.Info("processing local PDF file", "path", path)

	if _, err := os.Stat(path); err != nil {
		slog.Error("file does not exist", "path", path)
		return
	}

	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		slog.Error("file is not a PDF", "path", path)
		return
	}

	if err := w.process(ctx, path); err != nil {
		slog.Error("error processing local file", "path", path, "error", err)
		return
	}

	slog.Info("successfully processed local file", "path", path)
}

func (w *LocalWorkflow) process(ctx context.Context, path string) error {
	analysis, err := w.analyzer.AnalyzePDF(ctx, path)
	if err != nil {
		return err
	}
	slog.Info("analysis result", "date", analysis.Date, "title", analysis.Title)

	directory := filepath.Dir(path)
	originalName := filepath.Base(path)
	newName := analysis.FileName()
	newPath := filepath.Join(directory, newName)

	tempPath, err := w.annotator.AnnotateToTemp(path, analysis.Summary)
	if err != nil {
		return err
	}

	// Collision loop: pick the smallest free " (n)" suffix. The original
	// path itself is not a collision, renaming a file onto its own name is
	// a no-op rename.
	if pathExists(newPath) && newPath != path {
		base := analysis.Date + " " + analysis.Title
		for counter := 1; pathExists(newPath); counter++ {
			newName = fmt.Sprintf("%s (%d).pdf", base, counter)
			newPath = filepath.Join(directory, newName)
		}
	}

	// Move first, delete after. The annotated file is in place before the
	// original goes away, so no window exists where both are absent.
	if err := moveFile(tempPath, newPath); err != nil {
		return err
	}
	if newPath != path {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove original: %w", err)
		}
	}
	slog.Info("renamed local file", "path", newPath)

	fmt.Fprintln(w.console, "\n=== ドキュメント分析結果 ===")
	fmt.Fprintf(w.console, "元のファイル名: %s\n", originalName)
	fmt.Fprintf(w.console, "推測された日付: %s\n", analysis.Date)
	fmt.Fprintf(w.console, "推測されたタイトル: %s\n", analysis.Title)
	fmt.Fprintf(w.console, "新しいファイル名: %s\n", newName)
	fmt.Fprintln(w.console, "\n=== ドキュメント要約 ===")
	fmt.Fprintln(w.console, analysis.Summary)
	fmt.Fprint(w.console, "========================\n\n")

	return nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// moveFile renames src onto dst, falling back to copy-and-remove when the
// two live on different file systems (the temp dir often does).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read annotated file: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write annotated file: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove temp file: %w", err)
	}
	return nil
}
