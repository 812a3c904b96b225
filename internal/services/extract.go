package services

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/piclane/DropboxAutomation/internal/domain"
)

var (
	fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	looseJSONRe  = regexp.MustCompile(`(?s)\{.*"date".*"title".*"summary".*\}`)
	nonDigitRe   = regexp.MustCompile(`\D`)
)

// reservedChars cannot appear in file names on common file systems. They are
// removed from titles one by one, in this order.
var reservedChars = []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}

const maxTitleLen = 100

// ExtractAnalysis turns a raw AI response into a normalized AnalysisResult.
// It never fails: when the response carries no parseable JSON the fixed
// unreadable-document record is returned with Fallback set, using
// fallbackDate (today, YYYYMMDD) as the date.
func ExtractAnalysis(raw, fallbackDate string) domain.AnalysisResult {
	candidate := raw
	if m := fencedJSONRe.FindStringSubmatch(raw); m != nil {
		candidate = m[1]
	} else if m := looseJSONRe.FindString(raw); m != "" {
		candidate = m
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return domain.AnalysisResult{
			Date:     fallbackDate,
			Title:    domain.FallbackTitle,
			Summary:  domain.FallbackSummary,
			Fallback: true,
		}
	}

	result := domain.AnalysisResult{
		Date:    stringField(fields, "date", domain.UnknownDateSentinel),
		Title:   stringField(fields, "title", domain.UnknownValue),
		Summary: stringField(fields, "summary", domain.UnknownValue),
	}

	result.Date = normalizeDate(result.Date, fallbackDate)
	result.Title = normalizeTitle(result.Title)
	return result
}

func stringField(fields map[string]any, key, sentinel string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return sentinel
}

// normalizeDate reduces a free-form date to exactly 8 digits or replaces it
// with the fallback. An ill-formed date never propagates downstream.
func normalizeDate(date, fallback string) string {
	if date == domain.UnknownDateSentinel {
		return fallback
	}
	digits := nonDigitRe.ReplaceAllString(date, "")
	if len(digits) == 8 {
		return digits
	}
	return fallback
}

// normalizeTitle truncates overlong titles and strips file-system-reserved
// characters. Lengths are counted in runes, the backend emits Japanese.
func normalizeTitle(title string) string {
	if runes := []rune(title); len(runes) > maxTitleLen {
		title = string(runes[:maxTitleLen-3]) + "..."
	}
	for _, ch := range reservedChars {
		title = strings.ReplaceAll(title, ch, "")
	}
	return title
}
