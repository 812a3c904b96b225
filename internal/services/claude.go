package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/piclane/DropboxAutomation/internal/config"
	"github.com/piclane/DropboxAutomation/internal/domain"
)

const (
	messagesEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
	requestTimeout   = 10 * time.Minute

	maxAnalysisTokens = 4000
)

const analysisSystemPrompt = "You are an expert document analyst with advanced OCR capabilities. You can extract information from any type of PDF, including image-based documents."

const analysisPromptTemplate = `You are an expert document analyst with advanced PDF processing and information extraction capabilities. Your task is to analyze a PDF document, perform OCR if necessary, and extract specific information. Today's date for reference is:

<todays_date>
{{today}}
</todays_date>

Please follow these steps to analyze the document:

1. OCR Processing:
   - Determine if OCR is necessary by assessing whether the PDF is image-based or if text can be easily extracted.
   - If OCR is needed, perform Optical Character Recognition (OCR) on the document.
   - Extract the text content from the PDF.

2. Document Analysis:
   Your goal is to extract and generate the following information:
   a. Document creation date (in YYYYMMDD format)
   b. Document title (50 characters or less)
   c. Document summary (approximately 500 characters)

   For each step of your analysis, wrap your thought process in <thought_process> tags.

   Step 0: Identify the document type or category
   <thought_process>
   - List key features or content that indicate the document type.
   - Propose 2-3 possible document categories based on these features.
   - Choose the most likely category and explain why.
   </thought_process>

   Step 1: Determine the document creation date
   <thought_process>
   - List all potential dates found in the document, including their context and format.
   - For each date, explain why it might or might not be the creation date, considering its format and surrounding context.
   - If no explicit date is found, explain how you inferred the date from the content.
   - If inference is not possible, use today's date and explain why.
   </thought_process>

   Step 2: Identify or generate the document title
   <thought_process>
   - Quote potential titles directly from the document.
   - Identify 3-5 key themes or keywords from the document content.
   - If generating a title, list 2-3 options based on these themes and keywords.
   - For each potential title, explain why it might be suitable or not.
   - Ensure the final chosen title is 50 characters or less.
   - Translate the final title into Japanese.
   </thought_process>

   Step 3: Summarize the document
   <thought_process>
   - Identify 3-5 main topics from the document.
   - For each main topic, list 1-2 subtopics or key points.
   - Quote 3-5 key passages from the document that represent these main points.
   - Create a concise summary of approximately 500 characters based on these topics and key points.
   - Translate the summary into Japanese.
   </thought_process>

3. Output Format:
   After your analysis, provide the final output in JSON format with the following structure:

   {
     "date": "YYYYMMDD",
     "title": "文書タイトル (50文字以内)",
     "summary": "文書の要約 (約500文字)"
   }

   Ensure that both the title and summary in the JSON output are in Japanese.

Please begin your analysis now, starting with the OCR process if necessary, and then proceed with the document analysis steps. It's OK for each thought process section to be quite long.`

// ClaudeService submits PDF documents to the Anthropic Messages API for
// analysis. It performs no OCR or summarization itself, the backend does all
// of that; the service only builds the request and hands the raw text
// response to the extractor.
type ClaudeService struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

func NewClaudeService(cfg config.Config) *ClaudeService {
	return &ClaudeService{
		apiKey:   cfg.ClaudeAPIKey,
		model:    cfg.ClaudeModel,
		endpoint: messagesEndpoint,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// AnalyzePDF reads the PDF at path, submits it for analysis and returns the
// normalized result. Backend failures propagate to the caller; a malformed
// response never does (the extractor absorbs it).
func (s *ClaudeService) AnalyzePDF(ctx context.Context, path string) (domain.AnalysisResult, error) {
	slog.Info("analyzing PDF with Claude", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("read pdf: %w", err)
	}

	today := time.Now().Format("20060102")

	raw, err := s.analyze(ctx, data, today)
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	slog.Info("received response from Claude API")
	slog.Debug("full Claude response", "response", raw)

	return ExtractAnalysis(raw, today), nil
}

func (s *ClaudeService) analyze(ctx context.Context, pdfData []byte, today string) (string, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		return "", errors.New("claude api key is not configured")
	}

	prompt := strings.ReplaceAll(analysisPromptTemplate, "{{today}}", today)

	payload := map[string]any{
		"model":       s.model,
		"max_tokens":  maxAnalysisTokens,
		"temperature": 0,
		"system":      analysisSystemPrompt,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{
						"type": "text",
						"text": prompt,
					},
					{
						"type": "document",
						"source": map[string]any{
							"type":       "base64",
							"media_type": "application/pdf",
							"data":       base64.StdEncoding.EncodeToString(pdfData),
						},
					},
				},
			},
		},
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return "", fmt.Errorf("encode analysis payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, buf)
	if err != nil {
		return "", fmt.Errorf("create analysis request: %w", err)
	}

	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("claude request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", s.decodeAPIError(resp)
	}

	var response struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode analysis response: %w", err)
	}

	for _, block := range response.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	return "", errors.New("no text content in claude response")
}

func (s *ClaudeService) decodeAPIError(resp *http.Response) error {
	var apiErr struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)

	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("claude api error: status %d type %s message %s", resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
	}

	return fmt.Errorf("claude api error: status %d body %s", resp.StatusCode, string(body))
}
