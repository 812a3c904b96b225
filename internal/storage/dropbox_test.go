package storage

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testClient(srv *httptest.Server) *DropboxClient {
	return &DropboxClient{
		apiBase:     srv.URL,
		contentBase: srv.URL,
		httpClient:  srv.Client(),
	}
}

func TestListFolderContinue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/files/list_folder/continue" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var args map[string]any
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			t.Errorf("decode args: %v", err)
		}
		if args["cursor"] != "cursor-1" {
			t.Errorf("unexpected cursor arg: %v", args)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"entries": [
				{".tag": "file", "name": "BRWDCE_scan.pdf", "path_lower": "/watched/brwdce_scan.pdf", "path_display": "/watched/BRWDCE_scan.pdf"},
				{".tag": "folder", "name": "sub", "path_lower": "/watched/sub", "path_display": "/watched/sub"}
			],
			"cursor": "cursor-2",
			"has_more": true
		}`))
	}))
	defer srv.Close()

	page, err := testClient(srv).ListFolderContinue(t.Context(), "cursor-1")
	if err != nil {
		t.Fatalf("list folder continue: %v", err)
	}

	if page.Cursor != "cursor-2" || !page.HasMore {
		t.Fatalf("unexpected page: %+v", page)
	}
	if len(page.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(page.Entries))
	}
	if !page.Entries[0].IsFile() || page.Entries[1].IsFile() {
		t.Fatalf("entry tags not decoded: %+v", page.Entries)
	}
	if page.Entries[0].PathLower != "/watched/brwdce_scan.pdf" {
		t.Fatalf("unexpected path_lower: %s", page.Entries[0].PathLower)
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/files/download" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		arg := r.Header.Get("Dropbox-API-Arg")
		var args map[string]any
		if err := json.Unmarshal([]byte(arg), &args); err != nil {
			t.Errorf("api arg is not JSON: %v", err)
		}
		if args["path"] != "/監視/BRWDCE_scan.pdf" {
			t.Errorf("unexpected path arg: %v", args)
		}
		for _, ch := range arg {
			if ch > 0x7E {
				t.Errorf("api arg header must be ASCII: %q", arg)
				break
			}
		}

		w.Write([]byte("pdf-bytes"))
	}))
	defer srv.Close()

	data, err := testClient(srv).Download(t.Context(), "/監視/BRWDCE_scan.pdf")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(data) != "pdf-bytes" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestMoveV2ReturnsActualPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var args map[string]any
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			t.Errorf("decode args: %v", err)
		}
		if args["from_path"] != "/w/a.pdf" || args["to_path"] != "/w/b.pdf" || args["autorename"] != true {
			t.Errorf("unexpected args: %v", args)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"metadata": {".tag": "file", "path_display": "/w/b (1).pdf"}}`))
	}))
	defer srv.Close()

	actual, err := testClient(srv).MoveV2(t.Context(), "/w/a.pdf", "/w/b.pdf", true)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if actual != "/w/b (1).pdf" {
		t.Fatalf("expected autorenamed path, got %q", actual)
	}
}

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/files/upload" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "application/octet-stream" {
			t.Errorf("unexpected content type %q", got)
		}

		var args map[string]any
		if err := json.Unmarshal([]byte(r.Header.Get("Dropbox-API-Arg")), &args); err != nil {
			t.Errorf("api arg is not JSON: %v", err)
		}
		if args["mode"] != "overwrite" || args["mute"] != true {
			t.Errorf("unexpected args: %v", args)
		}

		body, _ := io.ReadAll(r.Body)
		if string(body) != "annotated-bytes" {
			t.Errorf("unexpected body %q", body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name": "b.pdf"}`))
	}))
	defer srv.Close()

	if err := testClient(srv).Upload(t.Context(), []byte("annotated-bytes"), "/w/b.pdf", true); err != nil {
		t.Fatalf("upload: %v", err)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error_summary": "path/not_found/..", "error": {".tag": "path"}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv).Download(t.Context(), "/missing.pdf")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "path/not_found") {
		t.Fatalf("error lacks summary: %v", err)
	}
}

func TestLatestCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/files/list_folder" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var args map[string]any
		json.NewDecoder(r.Body).Decode(&args)
		if args["path"] != "/watched" || args["recursive"] != false {
			t.Errorf("unexpected args: %v", args)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"entries": [], "cursor": "cursor-0", "has_more": false}`))
	}))
	defer srv.Close()

	cursor, err := testClient(srv).LatestCursor(t.Context(), "/watched")
	if err != nil {
		t.Fatalf("latest cursor: %v", err)
	}
	if cursor != "cursor-0" {
		t.Fatalf("unexpected cursor %q", cursor)
	}
}

func TestHeaderSafeJSON(t *testing.T) {
	got := headerSafeJSON(map[string]any{"path": "/監視/a.pdf"})

	for _, r := range got {
		if r > 0x7E {
			t.Fatalf("expected ASCII-only output, got %q", got)
		}
	}
	if !strings.Contains(got, "\\u76e3") || !strings.Contains(got, "\\u8996") {
		t.Fatalf("expected escaped kanji, got %q", got)
	}

	var decoded map[string]string
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("output must stay valid JSON: %v", err)
	}
	if decoded["path"] != "/監視/a.pdf" {
		t.Fatalf("escaping must round-trip, got %q", decoded["path"])
	}
}
