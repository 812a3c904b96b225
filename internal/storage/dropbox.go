package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf16"

	"golang.org/x/oauth2"

	"github.com/piclane/DropboxAutomation/internal/config"
)

const (
	apiBase     = "https://api.dropboxapi.com"
	contentBase = "https://content.dropboxapi.com"
	tokenURL    = "https://api.dropboxapi.com/oauth2/token"

	clientTimeout = 5 * time.Minute
)

// Entry is one change-listing entry of the watched folder.
type Entry struct {
	Tag         string `json:".tag"`
	Name        string `json:"name"`
	PathLower   string `json:"path_lower"`
	PathDisplay string `json:"path_display"`
}

// IsFile reports whether the entry describes a file rather than a folder or
// a deletion marker.
func (e Entry) IsFile() bool {
	return e.Tag == "file"
}

// Page is one page of folder-change entries plus the cursor to resume from.
type Page struct {
	Entries []Entry `json:"entries"`
	Cursor  string  `json:"cursor"`
	HasMore bool    `json:"has_more"`
}

// DropboxClient is a minimal Dropbox HTTP v2 client covering the calls the
// remote workflow needs: list/continue, download, move and upload. Access
// tokens are minted from the configured refresh token and renewed
// transparently by the oauth2 transport.
type DropboxClient struct {
	apiBase     string
	contentBase string
	httpClient  *http.Client
}

func NewDropboxClient(ctx context.Context, cfg config.Config) *DropboxClient {
	conf := &oauth2.Config{
		ClientID:     cfg.DropboxAppKey,
		ClientSecret: cfg.DropboxAppSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: tokenURL,
		},
	}

	source := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.DropboxRefreshToken})

	client := oauth2.NewClient(ctx, source)
	client.Timeout = clientTimeout

	return &DropboxClient{
		apiBase:     apiBase,
		contentBase: contentBase,
		httpClient:  client,
	}
}

// CurrentAccount returns the display name of the account the credentials
// belong to. Used as a connectivity and auth check at start-up.
func (c *DropboxClient) CurrentAccount(ctx context.Context) (string, error) {
	var account struct {
		Name struct {
			DisplayName string `json:"display_name"`
		} `json:"name"`
	}

	if err := c.rpc(ctx, "/2/users/get_current_account", nil, &account); err != nil {
		return "", err
	}
	return account.Name.DisplayName, nil
}

// LatestCursor lists the watched folder once and returns the cursor marking
// its current state. Entries already in the folder at start-up are
// deliberately skipped, only subsequent changes are processed.
func (c *DropboxClient) LatestCursor(ctx context.Context, folderPath string) (string, error) {
	args := map[string]any{
		"path":      folderPath,
		"recursive": false,
	}

	var page Page
	if err := c.rpc(ctx, "/2/files/list_folder", args, &page); err != nil {
		return "", err
	}
	return page.Cursor, nil
}

// ListFolderContinue fetches the next page of changes after cursor.
func (c *DropboxClient) ListFolderContinue(ctx context.Context, cursor string) (Page, error) {
	args := map[string]any{
		"cursor": cursor,
	}

	var page Page
	if err := c.rpc(ctx, "/2/files/list_folder/continue", args, &page); err != nil {
		return Page{}, err
	}
	return page, nil
}

// Download returns the raw bytes of the remote file at path.
func (c *DropboxClient) Download(ctx context.Context, path string) ([]byte, error) {
	args := map[string]any{
		"path": path,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentBase+"/2/files/download", nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("Dropbox-API-Arg", headerSafeJSON(args))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dropbox download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeAPIError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read download body: %w", err)
	}
	return data, nil
}

// MoveV2 moves the remote file and returns the path it actually ended up at,
// which differs from toPath when autorename resolved a collision.
func (c *DropboxClient) MoveV2(ctx context.Context, fromPath, toPath string, autorename bool) (string, error) {
	args := map[string]any{
		"from_path":  fromPath,
		"to_path":    toPath,
		"autorename": autorename,
	}

	var result struct {
		Metadata struct {
			PathDisplay string `json:"path_display"`
		} `json:"metadata"`
	}

	if err := c.rpc(ctx, "/2/files/move_v2", args, &result); err != nil {
		return "", err
	}
	return result.Metadata.PathDisplay, nil
}

// Upload overwrites the remote file at path with data. mute suppresses the
// change notification the write would otherwise trigger, so the service does
// not feed itself.
func (c *DropboxClient) Upload(ctx context.Context, data []byte, path string, mute bool) error {
	args := map[string]any{
		"path": path,
		"mode": "overwrite",
		"mute": mute,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentBase+"/2/files/upload", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Dropbox-API-Arg", headerSafeJSON(args))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dropbox upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}

// rpc posts JSON args to an api.dropboxapi.com route and decodes the JSON
// response into result. A nil args sends an empty body, as the no-argument
// routes expect.
func (c *DropboxClient) rpc(ctx context.Context, route string, args any, result any) error {
	var body io.Reader
	if args != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(args); err != nil {
			return fmt.Errorf("encode %s args: %w", route, err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+route, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", route, err)
	}
	if args != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dropbox request %s failed: %w", route, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s response: %w", route, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var apiErr struct {
		ErrorSummary string `json:"error_summary"`
	}

	body, _ := io.ReadAll(resp.Body)

	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.ErrorSummary != "" {
		return fmt.Errorf("dropbox api error: status %d summary %s", resp.StatusCode, apiErr.ErrorSummary)
	}

	return fmt.Errorf("dropbox api error: status %d body %s", resp.StatusCode, string(body))
}

// headerSafeJSON marshals args for the Dropbox-API-Arg header. HTTP header
// values must stay within ASCII, so every rune above 0x7E is escaped as a
// \uXXXX sequence, matching what the official SDKs send.
func headerSafeJSON(args any) string {
	data, _ := json.Marshal(args)

	var sb strings.Builder
	for _, r := range string(data) {
		if r > 0x7E {
			for _, u := range utf16.Encode([]rune{r}) {
				fmt.Fprintf(&sb, "\\u%04x", u)
			}
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
