package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	tu "github.com/desertthunder/cardquiz/internal/testing"
)

func TestImportClient(t *testing.T) {
	ctx := context.Background()

	t.Run("New", func(t *testing.T) {
		c := NewImportClient("", nil)
		if c.baseURL != "http://127.0.0.1:3000" {
			t.Errorf("expected default baseURL, got %s", c.baseURL)
		}
		if c.httpClient != http.DefaultClient {
			t.Error("expected http.DefaultClient to be used")
		}
		if NewImportClient("http://quiz.test/", nil).baseURL != "http://quiz.test" {
			t.Error("expected trailing slash trimmed")
		}
	})

	t.Run("Info", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != ImportPath {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["url"] != videoURL {
				t.Errorf("expected url in body, got %v", body)
			}
			json.NewEncoder(w).Encode(VideoInfo{
				Title:     "Song",
				Encodings: []Encoding{{EncodingID: "a", Bitrate: 128}, {EncodingID: "b", Bitrate: 320}},
			})
		}))
		defer server.Close()

		info, err := NewImportClient(server.URL, nil).Info(ctx, videoURL)
		if err != nil {
			t.Fatalf("Info failed: %v", err)
		}
		if info.Title != "Song" || info.Encodings[0].EncodingID != "b" {
			t.Errorf("unexpected info %+v", info)
		}
	})

	t.Run("Info Error Kind", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(ErrorResponse{Error: KindPrivate.Message(), Kind: KindPrivate})
		}))
		defer server.Close()

		_, err := NewImportClient(server.URL, nil).Info(ctx, videoURL)
		if KindOf(err) != KindPrivate {
			t.Errorf("expected private, got %v", err)
		}
	})

	t.Run("Info Non JSON Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := NewImportClient(server.URL, nil).Info(ctx, videoURL)
		if KindOf(err) != KindGeneric {
			t.Errorf("expected generic, got %v", err)
		}
	})

	t.Run("Download", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("url") != videoURL || r.URL.Query().Get("encodingId") != "140" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			w.Header().Set("Content-Type", "audio/mpeg")
			w.Header().Set("Content-Disposition", `attachment; filename="My_Song.mp3"`)
			w.Write([]byte("mp3 data"))
		}))
		defer server.Close()

		dl, err := NewImportClient(server.URL, nil).Download(ctx, videoURL, "140")
		if err != nil {
			t.Fatalf("Download failed: %v", err)
		}
		defer dl.Body.Close()

		if dl.Filename != "My_Song.mp3" || dl.ContentType != "audio/mpeg" {
			t.Errorf("unexpected download %+v", dl)
		}
		data, _ := io.ReadAll(dl.Body)
		if string(data) != "mp3 data" {
			t.Errorf("unexpected body %q", data)
		}
	})

	t.Run("Download Names File By Content Type", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "audio/webm")
			w.Header().Set("Content-Disposition", `attachment; filename="My_Song.mp3"`)
			w.Write([]byte("webm data"))
		}))
		defer server.Close()

		dl, err := NewImportClient(server.URL, nil).Download(ctx, videoURL, "251")
		if err != nil {
			t.Fatalf("Download failed: %v", err)
		}
		dl.Body.Close()
		if dl.Filename != "My_Song.webm" {
			t.Errorf("expected webm filename, got %q", dl.Filename)
		}
	})

	t.Run("Transport Error", func(t *testing.T) {
		client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("network down"))}
		if _, err := NewImportClient("http://quiz.test", client).Info(ctx, videoURL); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("Read Error", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusOK, Body: &tu.FCloser{}, Header: http.Header{}}
		client := &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}
		if _, err := NewImportClient("http://quiz.test", client).Info(ctx, videoURL); err == nil {
			t.Error("expected decode error")
		}
	})
}
