package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Note icon geometry, anchored near the top-left corner of the page.
const (
	noteMargin = 10.0
	noteSize   = 24.0
)

// PDFAnnotator attaches a note annotation carrying text to a page of an
// existing PDF. Annotation contents are stored UTF-16 encoded, so the text
// survives regardless of script.
type PDFAnnotator struct{}

func NewPDFAnnotator() *PDFAnnotator {
	return &PDFAnnotator{}
}

// Annotate writes a copy of the PDF at srcPath to dstPath with text attached
// as a note annotation on the given zero-based page. The source file is
// never modified.
func (a *PDFAnnotator) Annotate(srcPath, dstPath, text string, page int) error {
	dims, err := api.PageDimsFile(srcPath)
	if err != nil {
		return fmt.Errorf("read page dimensions: %w", err)
	}
	if page < 0 || page >= len(dims) {
		return fmt.Errorf("page %d out of range: document has %d pages", page+1, len(dims))
	}

	h := dims[page].Height
	rect := types.NewRectangle(noteMargin, h-noteMargin-noteSize, noteMargin+noteSize, h-noteMargin)
	note := model.NewTextAnnotation(*rect, 0, text, "", "", 0, nil, "", nil, nil, "", "", 0, 0, 0, false, "Note")

	pages := []string{strconv.Itoa(page + 1)}
	if err := api.AddAnnotationsFile(srcPath, dstPath, pages, note, nil, false); err != nil {
		return fmt.Errorf("annotate pdf: %w", err)
	}
	return nil
}

// AnnotateToTemp annotates the first page and stores the result under a
// uniquely named temporary path, which the caller owns and must remove.
func (a *PDFAnnotator) AnnotateToTemp(srcPath, text string) (string, error) {
	tempPath := TempPDFPath()
	if err := a.Annotate(srcPath, tempPath, text, 0); err != nil {
		return "", err
	}
	return tempPath, nil
}

// TempPDFPath allocates a private, uniquely named PDF path in the system
// temp directory. Random names keep concurrent workflow units from
// colliding.
func TempPDFPath() string {
	return filepath.Join(os.TempDir(), uuid.NewString()+".pdf")
}
