package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/cardquiz/internal/gateway"
	"github.com/desertthunder/cardquiz/internal/models"
	"github.com/desertthunder/cardquiz/internal/pocketbase"
	"github.com/desertthunder/cardquiz/internal/services"
	"github.com/desertthunder/cardquiz/internal/shared"
	th "github.com/desertthunder/cardquiz/internal/testing"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "correct-horse"
)

type mockVideo struct {
	info    *services.VideoInfo
	infoErr error
	data    string
}

func (m *mockVideo) Name() string { return "mock" }

func (m *mockVideo) Info(ctx context.Context, url string) (*services.VideoInfo, error) {
	if m.infoErr != nil {
		return nil, m.infoErr
	}
	info := *m.info
	info.Encodings = append([]services.Encoding(nil), m.info.Encodings...)
	return &info, nil
}

func (m *mockVideo) Download(ctx context.Context, url, encodingID string) (*services.Download, error) {
	return &services.Download{
		Filename:    services.DownloadFilename(m.info.Title),
		ContentType: "audio/webm",
		Size:        int64(len(m.data)),
		Body:        io.NopCloser(strings.NewReader(m.data)),
	}, nil
}

func newTestServer(t *testing.T, video services.VideoService) (*Server, gateway.Gateway) {
	t.Helper()
	gw := th.NewGateway(t)
	th.MustUser(t, gw, adminEmail, adminPassword)
	s := New(Options{Gateway: gw, Video: video, Secret: "test-secret"})
	return s, gw
}

func do(t *testing.T, s *Server, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func login(t *testing.T, s *Server) *http.Cookie {
	t.Helper()
	rec := do(t, s, jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
		"email": adminEmail, "password": adminPassword,
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed with %d: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	t.Fatal("login did not set the session cookie")
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", fmt.Errorf("%w: title", shared.ErrValidation), http.StatusBadRequest},
		{"missing argument", shared.ErrMissingArgument, http.StatusBadRequest},
		{"not authenticated", shared.ErrNotAuthenticated, http.StatusUnauthorized},
		{"invalid credentials", shared.ErrInvalidCredentials, http.StatusUnauthorized},
		{"not found", fmt.Errorf("%w: song x", shared.ErrNotFound), http.StatusNotFound},
		{"stale version", shared.ErrStaleVersion, http.StatusConflict},
		{"too large", shared.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{"unavailable", shared.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{"gateway", shared.ErrGateway, http.StatusBadGateway},
		{"import error", &services.ImportError{Kind: services.KindNoAudio, Err: errors.New("none")}, services.KindNoAudio.Status()},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRouter(t *testing.T) {
	s, _ := newTestServer(t, nil)

	t.Run("wrong method", func(t *testing.T) {
		rec := do(t, s, httptest.NewRequest(http.MethodPut, "/api/player/abc", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("unknown path", func(t *testing.T) {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("routes are method qualified", func(t *testing.T) {
		routes := NewAdminHandler(s).Routes()
		for _, r := range routes {
			if !strings.Contains(r, " /api/admin/") {
				t.Errorf("unexpected admin route %q", r)
			}
		}
	})
}

func TestPlayerHandler(t *testing.T) {
	s, gw := newTestServer(t, nil)
	withAudio := th.MustSong(t, gw, "Hey Ya", 2003, models.File{Field: "audio", Name: "hey.mp3", Reader: strings.NewReader("ID3")})
	silent := th.MustSong(t, gw, "Silence", 1999)

	t.Run("playable song", func(t *testing.T) {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/player/"+withAudio.ID, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		resp := decode[playerResponse](t, rec)
		if resp.Song == nil || resp.Song.Title != "Hey Ya" {
			t.Errorf("unexpected song %+v", resp.Song)
		}
		if !strings.Contains(resp.AudioURL, withAudio.ID) || !strings.HasPrefix(resp.AudioURL, "http://files.test/songs/") {
			t.Errorf("unexpected audio URL %q", resp.AudioURL)
		}
	})

	for name, id := range map[string]string{"no audio": silent.ID, "missing": "doesnotexist"} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/player/"+id, nil))
			if rec.Code != http.StatusNotFound {
				t.Errorf("expected 404, got %d", rec.Code)
			}
		})
	}
}

func TestImportHandler(t *testing.T) {
	video := &mockVideo{
		info: &services.VideoInfo{
			Title:  "Song Title (1999)",
			Author: "Channel",
			Encodings: []services.Encoding{
				{EncodingID: "a", Bitrate: 64000},
				{EncodingID: "b", Bitrate: 160000},
			},
		},
		data: "audio-bytes",
	}
	s, _ := newTestServer(t, video)

	t.Run("info sorts encodings", func(t *testing.T) {
		rec := do(t, s, jsonRequest(http.MethodPost, services.ImportPath, map[string]string{"url": "https://youtu.be/x"}))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		info := decode[services.VideoInfo](t, rec)
		if len(info.Encodings) != 2 || info.Encodings[0].EncodingID != "b" {
			t.Errorf("expected highest bitrate first, got %+v", info.Encodings)
		}
	})

	t.Run("info requires url", func(t *testing.T) {
		rec := do(t, s, jsonRequest(http.MethodPost, services.ImportPath, map[string]string{"url": " "}))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("info reports classified errors", func(t *testing.T) {
		video.infoErr = &services.ImportError{Kind: services.KindBlocked, Err: errors.New("blocked")}
		defer func() { video.infoErr = nil }()

		rec := do(t, s, jsonRequest(http.MethodPost, services.ImportPath, map[string]string{"url": "https://youtu.be/x"}))
		if rec.Code != services.KindBlocked.Status() {
			t.Errorf("expected %d, got %d", services.KindBlocked.Status(), rec.Code)
		}
		resp := decode[services.ErrorResponse](t, rec)
		if resp.Kind != services.KindBlocked {
			t.Errorf("expected kind %q, got %q", services.KindBlocked, resp.Kind)
		}
	})

	t.Run("download streams audio", func(t *testing.T) {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, services.ImportPath+"?url=https://youtu.be/x&encodingId=b", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "audio/webm" {
			t.Errorf("unexpected content type %q", ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment; filename=") || !strings.HasSuffix(cd, `.mp3"`) {
			t.Errorf("unexpected content disposition %q", cd)
		}
		if rec.Body.String() != "audio-bytes" {
			t.Errorf("unexpected body %q", rec.Body.String())
		}
	})

	t.Run("download requires encoding", func(t *testing.T) {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, services.ImportPath+"?url=https://youtu.be/x", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("no video service", func(t *testing.T) {
		bare, _ := newTestServer(t, nil)
		rec := do(t, bare, jsonRequest(http.MethodPost, services.ImportPath, map[string]string{"url": "https://youtu.be/x"}))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})
}

type bulkPart struct {
	field, filename, content string
}

func multipartRequest(t *testing.T, payload string, files ...bulkPart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if payload != "" {
		if err := mw.WriteField("@jsonPayload", payload); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(fw, f.content)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/songs/bulk-import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestBulkImport(t *testing.T) {
	s, gw := newTestServer(t, nil)
	cookie := login(t, s)

	t.Run("requires session", func(t *testing.T) {
		rec := do(t, s, multipartRequest(t, `{"requests":[]}`))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	tests := []struct {
		name    string
		payload string
		files   []bulkPart
		status  int
		message string
	}{
		{"missing payload", "", nil, http.StatusBadRequest, "Missing @jsonPayload"},
		{"requests not an array", `{"requests":"nope"}`, nil, http.StatusBadRequest, "Invalid requests array"},
		{"empty requests", `{"requests":[]}`, nil, http.StatusBadRequest, "Invalid requests array"},
		{"missing audio part", `{"requests":[{"method":"POST","url":"/api/collections/songs/records","body":{"title":"A","artist":"B"}}]}`, nil, http.StatusInternalServerError, "Failed to import songs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, multipartRequest(t, tt.payload, tt.files...), cookie)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if resp := decode[services.ErrorResponse](t, rec); resp.Error != tt.message {
				t.Errorf("expected error %q, got %q", tt.message, resp.Error)
			}
		})
	}

	t.Run("creates every song", func(t *testing.T) {
		payload := `{"requests":[
			{"method":"POST","url":"/api/collections/songs/records","body":{"title":"First <b>Song</b>","artist":"One","year":1999}},
			{"method":"POST","url":"/api/collections/songs/records","body":{"title":"Second","artist":"Two","year":2005}}
		]}`
		rec := do(t, s, multipartRequest(t, payload,
			bulkPart{"requests.0.audio", "first.mp3", "ID3-one"},
			bulkPart{"requests.1.audio", "second.mp3", "ID3-two"},
		), cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		results := decode[[]models.BatchResult](t, rec)
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}

		page, err := gw.Songs().List(context.Background(), models.ListOptions{Filter: "First"}.Normalize())
		if err != nil {
			t.Fatal(err)
		}
		if page.TotalItems != 1 {
			t.Fatalf("expected the first song to be stored, got %d", page.TotalItems)
		}
		song := page.Items[0]
		if song.Title != "First Song" {
			t.Errorf("expected markup to be stripped, got %q", song.Title)
		}
		if !song.HasAudio() {
			t.Error("expected the song to carry its audio")
		}
	})
}

func TestAuthHandler(t *testing.T) {
	s, _ := newTestServer(t, nil)

	t.Run("bad credentials", func(t *testing.T) {
		rec := do(t, s, jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
			"email": adminEmail, "password": "wrong-password",
		}))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := do(t, s, jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{"email": adminEmail}))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("cookie flags", func(t *testing.T) {
		c := login(t, s)
		if !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
			t.Errorf("unexpected cookie %+v", c)
		}
	})

	t.Run("login leaves the shared session store empty", func(t *testing.T) {
		s, gw := newTestServer(t, nil)
		login(t, s)
		if gw.Auth().IsValid() || gw.Auth().Store().Token() != "" {
			t.Error("the admin session must live only in the cookie")
		}
	})

	t.Run("logout clears cookie", func(t *testing.T) {
		rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil), login(t, s))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
			t.Errorf("expected an expired cookie, got %+v", cookies)
		}
	})
}

func TestAnonymousRequestsCarryNoAdminToken(t *testing.T) {
	var songAuth []string
	pb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/collections/users/auth-with-password":
			json.NewEncoder(w).Encode(map[string]any{"token": "admin-token", "record": map[string]any{"id": "u1", "email": adminEmail}})
		case "/api/collections/songs/records/s1":
			songAuth = append(songAuth, r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]any{"id": "s1", "title": "Toxic", "audio": "toxic.mp3"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(pb.Close)

	gw := gateway.FromPocketBase(pocketbase.NewClient(pb.URL, nil))
	s := New(Options{Gateway: gw, Secret: "test-secret"})
	login(t, s)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/player/s1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(songAuth) != 1 || songAuth[0] != "" {
		t.Errorf("anonymous request was sent with %q", songAuth)
	}
}

func TestAdminHandler(t *testing.T) {
	s, gw := newTestServer(t, nil)
	cookie := login(t, s)

	first := th.MustSong(t, gw, "Crazy", 2006)
	second := th.MustSong(t, gw, "Toxic", 2003)
	deck := th.MustDeck(t, gw, "Party Mix")
	cardsPath := "/api/admin/decks/" + deck.ID + "/cards"

	t.Run("rejects anonymous requests", func(t *testing.T) {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("rejects forged cookies", func(t *testing.T) {
		forged := &http.Cookie{Name: cookieName, Value: "not.a.jwt"}
		rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil), forged)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("stats", func(t *testing.T) {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil), cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		stats := decode[map[string]int](t, rec)
		if stats["songs"] != 2 || stats["decks"] != 1 {
			t.Errorf("unexpected stats %v", stats)
		}
	})

	t.Run("song search", func(t *testing.T) {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/admin/songs?q=tox", nil), cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		page := decode[models.Page[models.Song]](t, rec)
		if page.TotalItems != 1 || page.Items[0].ID != second.ID {
			t.Errorf("unexpected page %+v", page)
		}

		rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/admin/songs?page=zero", nil), cookie)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for a bad page, got %d", rec.Code)
		}
	})

	var cardIDs []string
	t.Run("append cards", func(t *testing.T) {
		for _, body := range []cardRequest{
			{Type: "song", Song: first.ID},
			{Type: "ost", Song: second.ID, Text: "<i>Movie</i>", Year: "2003"},
		} {
			rec := do(t, s, jsonRequest(http.MethodPost, cardsPath, body), cookie)
			if rec.Code != http.StatusCreated {
				t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
			}
			cardIDs = append(cardIDs, decode[models.Card](t, rec).ID)
		}

		rec := do(t, s, jsonRequest(http.MethodPost, cardsPath, cardRequest{Type: "trailer", Song: first.ID}), cookie)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for an unknown type, got %d", rec.Code)
		}
	})

	t.Run("list cards", func(t *testing.T) {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, cardsPath, nil), cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		resp := decode[cardsResponse](t, rec)
		if len(resp.Cards) != 2 {
			t.Fatalf("expected 2 cards, got %d", len(resp.Cards))
		}
		if resp.Cards[1].Card.OST != "Movie" {
			t.Errorf("expected sanitized text, got %q", resp.Cards[1].Card.OST)
		}
		if resp.Cards[0].Song == nil || resp.Cards[0].Song.ID != first.ID {
			t.Errorf("expected the first card to resolve its song, got %+v", resp.Cards[0].Song)
		}
	})

	t.Run("move card", func(t *testing.T) {
		rec := do(t, s, httptest.NewRequest(http.MethodPost, cardsPath+"/"+cardIDs[1]+"/move?dir=up", nil), cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		got := decode[moveResponse](t, rec).Cards
		if len(got) != 2 || got[0] != cardIDs[1] || got[1] != cardIDs[0] {
			t.Errorf("unexpected order %v", got)
		}

		rec = do(t, s, httptest.NewRequest(http.MethodPost, cardsPath+"/"+cardIDs[1]+"/move?dir=sideways", nil), cookie)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for a bad direction, got %d", rec.Code)
		}
	})

	t.Run("deck pdf", func(t *testing.T) {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/admin/decks/"+deck.ID+"/pdf", nil), cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("unexpected content type %q", ct)
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
			t.Error("body is not a PDF")
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "Party_Mix.pdf") {
			t.Errorf("unexpected content disposition %q", cd)
		}
	})

	t.Run("song qr", func(t *testing.T) {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/admin/songs/"+first.ID+"/qr.png", nil), cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if _, err := png.Decode(rec.Body); err != nil {
			t.Errorf("expected a PNG: %v", err)
		}

		rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/admin/songs/missing/qr.png", nil), cookie)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("remove card", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, cardsPath+"/"+cardIDs[0]+"?delete=true", nil)
		rec := do(t, s, req, cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		got := decode[models.Deck](t, rec)
		if len(got.Cards) != 1 || got.Cards[0] != cardIDs[1] {
			t.Errorf("unexpected cards %v", got.Cards)
		}
		if _, err := gw.Cards().Get(context.Background(), cardIDs[0]); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected the card record to be deleted, got %v", err)
		}
	})
}

func TestAdminEditing(t *testing.T) {
	s, gw := newTestServer(t, nil)
	cookie := login(t, s)
	ctx := context.Background()

	t.Run("create song from json", func(t *testing.T) {
		rec := do(t, s, jsonRequest(http.MethodPost, "/api/admin/songs", songRequest{Title: "<b>Hurt</b>", Artist: "Johnny Cash", Year: 2002}), cookie)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		song := decode[models.Song](t, rec)
		if song.ID == "" || song.Title != "Hurt" || song.HasAudio() {
			t.Errorf("unexpected song %+v", song)
		}

		rec = do(t, s, jsonRequest(http.MethodPost, "/api/admin/songs", songRequest{Artist: "Nobody"}), cookie)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 without a title, got %d", rec.Code)
		}
	})

	t.Run("create song with audio", func(t *testing.T) {
		req := multipartRequest(t, `{"title":"Jolene","artist":"Dolly Parton","year":1973}`,
			bulkPart{field: "audio", filename: "jolene.mp3", content: "ID3 audio"})
		req.URL.Path = "/api/admin/songs"
		rec := do(t, s, req, cookie)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		song := decode[models.Song](t, rec)
		if song.Title != "Jolene" || !strings.HasSuffix(song.Audio, ".mp3") {
			t.Errorf("unexpected song %+v", song)
		}
	})

	t.Run("edit song", func(t *testing.T) {
		song := th.MustSong(t, gw, "Hallelujah", 1984)
		rec := do(t, s, jsonRequest(http.MethodPatch, "/api/admin/songs/"+song.ID, map[string]any{"artist": "Jeff Buckley", "year": 1994}), cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		got, err := gw.Songs().Get(ctx, song.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Title != "Hallelujah" || got.Artist != "Jeff Buckley" || got.Year != 1994 {
			t.Errorf("unexpected song %+v", got)
		}

		req := multipartRequest(t, "", bulkPart{field: "audio", filename: "hallelujah.ogg", content: "OggS"})
		req.Method = http.MethodPatch
		req.URL.Path = "/api/admin/songs/" + song.ID
		rec = do(t, s, req, cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := decode[models.Song](t, rec); !strings.HasSuffix(got.Audio, ".ogg") {
			t.Errorf("expected replaced audio, got %q", got.Audio)
		}

		rec = do(t, s, jsonRequest(http.MethodPatch, "/api/admin/songs/missing", map[string]string{"title": "x"}), cookie)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	var deckID string
	t.Run("create deck", func(t *testing.T) {
		rec := do(t, s, jsonRequest(http.MethodPost, "/api/admin/decks", map[string]string{"name": "Covers"}), cookie)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		deck := decode[models.Deck](t, rec)
		if deck.Name != "Covers" || !deck.IsActive {
			t.Errorf("expected an active deck, got %+v", deck)
		}
		deckID = deck.ID

		rec = do(t, s, jsonRequest(http.MethodPost, "/api/admin/decks", map[string]string{"description": "no name"}), cookie)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 without a name, got %d", rec.Code)
		}
	})

	song := th.MustSong(t, gw, "Mad World", 2001)
	var cardID string
	t.Run("edit deck keeps cards", func(t *testing.T) {
		card := th.MustCard(t, gw, song.ID)
		cardID = card.ID
		deck, err := gw.Decks().Get(ctx, deckID)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := gw.Decks().SetCards(ctx, deckID, []string{card.ID}, deck.Version); err != nil {
			t.Fatal(err)
		}

		rec := do(t, s, jsonRequest(http.MethodPatch, "/api/admin/decks/"+deckID, map[string]any{"name": "Sad Covers", "isActive": false}), cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		got := decode[models.Deck](t, rec)
		if got.Name != "Sad Covers" || got.IsActive || len(got.Cards) != 1 || got.Cards[0] != card.ID {
			t.Errorf("unexpected deck %+v", got)
		}

		rec = do(t, s, jsonRequest(http.MethodPatch, "/api/admin/decks/"+deckID, map[string]string{"name": " "}), cookie)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for an empty name, got %d", rec.Code)
		}
	})

	t.Run("edit card", func(t *testing.T) {
		path := "/api/admin/decks/" + deckID + "/cards/" + cardID
		rec := do(t, s, jsonRequest(http.MethodPatch, path, map[string]string{"type": "ost", "text": "<i>Donnie Darko</i>"}), cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		got, err := gw.Cards().Get(ctx, cardID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Type != models.CardOST || got.OST != "Donnie Darko" {
			t.Errorf("unexpected card %+v", got)
		}

		rec = do(t, s, jsonRequest(http.MethodPatch, path, map[string]string{"type": "trailer"}), cookie)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for an unknown type, got %d", rec.Code)
		}
		rec = do(t, s, jsonRequest(http.MethodPatch, "/api/admin/decks/"+deckID+"/cards/other", map[string]string{"text": "x"}), cookie)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 for a card outside the deck, got %d", rec.Code)
		}
	})

	t.Run("delete deck", func(t *testing.T) {
		rec := do(t, s, httptest.NewRequest(http.MethodDelete, "/api/admin/decks/"+deckID+"?cards=true", nil), cookie)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
		}
		if _, err := gw.Decks().Get(ctx, deckID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected the deck to be gone, got %v", err)
		}
		if _, err := gw.Cards().Get(ctx, cardID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected the card to be gone, got %v", err)
		}

		rec = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/admin/decks/"+deckID, nil), cookie)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 on a second delete, got %d", rec.Code)
		}
	})
}

func TestSanitize(t *testing.T) {
	s := New(Options{Secret: "x"})
	tests := []struct{ in, want string }{
		{"Guns N' Roses & <b>Friends</b>", "Guns N' Roses & Friends"},
		{"  <a href=\"javascript:alert(1)\">Link</a> ", "Link"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := s.sanitize(tt.in); got != tt.want {
			t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
