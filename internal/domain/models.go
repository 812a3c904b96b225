package domain

// AnalysisResult is the normalized outcome of one document-analysis attempt.
// Date is always an 8-digit YYYYMMDD string after normalization. Title is at
// most 100 characters and contains no file-system-reserved characters.
// Fallback marks a record synthesized because the AI response contained no
// parseable JSON; such a record carries the fixed unreadable-document values.
type AnalysisResult struct {
	Date     string `json:"date"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Fallback bool   `json:"-"`
}

// FileName derives the target file name for the analyzed document.
func (r AnalysisResult) FileName() string {
	return r.Date + " " + r.Title + ".pdf"
}

const (
	// UnknownDateSentinel is what the backend is told to emit when it cannot
	// determine a creation date.
	UnknownDateSentinel = "不明"

	// UnknownValue substitutes any missing non-date field.
	UnknownValue = "Unknown"

	// FallbackTitle and FallbackSummary make up the terminal fallback record
	// returned when the AI response contains no parseable JSON at all.
	FallbackTitle   = "Unreadable Document"
	FallbackSummary = "This document appears to be unreadable or contains complex formatting that could not be analyzed."
)
