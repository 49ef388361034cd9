package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/igolaizola/xenotune"
	"github.com/igolaizola/xenotune/pkg/filestore"
	"github.com/igolaizola/xenotune/pkg/score"
	"github.com/igolaizola/xenotune/pkg/storage"
)

const modes = `{
    "focus": {
        "tempo": 90,
        "instruments": [
            {"name": "Electric Piano", "style": "ambient", "notes": ["C4", "E4", "G4", "B4", "D5"]}
        ],
        "structure": ["intro", "loop"]
    },
    "relax": {
        "tempo": 70,
        "instruments": [
            {"name": "Piano", "notes": ["C4", "E4", "G4", "B4"]}
        ],
        "structure": ["intro"]
    },
    "sleep": {
        "tempo": 40,
        "instruments": [
            {"name": "Felt Piano", "style": "slow", "chords": [["C3", "G3", "C4"], ["A2", "E3", "A3"]]}
        ],
        "structure": ["intro"]
    }
}`

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	config := filepath.Join(dir, "config.json")
	if err := os.WriteFile(config, []byte(modes), 0644); err != nil {
		t.Fatal(err)
	}
	generator, err := xenotune.New(&xenotune.Config{
		Modes:    config,
		Output:   filepath.Join(dir, "output"),
		Seed:     3,
		MIDIOnly: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	store, err := storage.New("sqlite", filepath.Join(dir, "xenotune.db"), false)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Stop() })
	if err := store.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	files := filepath.Join(dir, "files")
	fs, err := filestore.New("local", files+"@http://example.com/files", "", false)
	if err != nil {
		t.Fatal(err)
	}

	srv := &server{
		store:     store,
		fs:        fs,
		generator: generator,
		tokens:    newTokens(store, []byte("secret"), 0),
		files:     files,
	}
	ts := httptest.NewServer(srv.router())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, b
}

func TestRoot(t *testing.T) {
	ts := testServer(t)
	code, b := do(t, ts, http.MethodGet, "/", "", nil)
	if code != http.StatusOK || !strings.Contains(string(b), "ready to generate music") {
		t.Fatalf("GET / = %d %s; want 200", code, b)
	}
}

func TestGenerate(t *testing.T) {
	ts := testServer(t)

	code, b := do(t, ts, http.MethodPost, "/generate", "", map[string]string{"user_id": "u1", "mood": "party"})
	if code != http.StatusBadRequest {
		t.Fatalf("POST /generate party = %d; want 400", code)
	}
	if !strings.Contains(string(b), "Choose focus, relax or sleep") {
		t.Fatalf("POST /generate party = %s; want choices", b)
	}

	for _, user := range []string{"../../escaped", "a/b", ".."} {
		code, _ = do(t, ts, http.MethodPost, "/generate", "", map[string]string{"user_id": user, "mood": "focus"})
		if code != http.StatusBadRequest {
			t.Fatalf("POST /generate user %q = %d; want 400", user, code)
		}
	}

	code, b = do(t, ts, http.MethodPost, "/generate", "", map[string]string{"user_id": "u1", "mood": "Focus"})
	if code != http.StatusOK {
		t.Fatalf("POST /generate = %d %s; want 200", code, b)
	}
	var resp generateResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "success" {
		t.Errorf("status = %s; want success", resp.Status)
	}
	if resp.Message != "Focus music generated and uploaded." {
		t.Errorf("message = %s", resp.Message)
	}
	if !strings.HasPrefix(resp.DownloadURL, "http://example.com/files/users/u1/focus_") {
		t.Fatalf("download_url = %s; want user url", resp.DownloadURL)
	}

	// The local store is served under /files/
	path := strings.TrimPrefix(resp.DownloadURL, "http://example.com")
	code, b = do(t, ts, http.MethodGet, path, "", nil)
	if code != http.StatusOK {
		t.Fatalf("GET %s = %d; want 200", path, code)
	}
	if _, err := score.Read(bytes.NewReader(b)); err != nil {
		t.Fatalf("score.Read() err = %v; want nil", err)
	}
}

func TestSoundscape(t *testing.T) {
	ts := testServer(t)
	resp, err := http.Get(ts.URL + "/soundscape/sleep")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /soundscape/sleep = %d; want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/midi" {
		t.Fatalf("Content-Type = %s; want audio/midi", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != "attachment; filename=sleep.midi" {
		t.Fatalf("Content-Disposition = %s", cd)
	}
	s, err := score.Read(resp.Body)
	if err != nil {
		t.Fatalf("score.Read() err = %v; want nil", err)
	}
	if s.Title != "Xenotune - Sleep Mode" {
		t.Fatalf("Title = %q; want Xenotune - Sleep Mode", s.Title)
	}

	code, _ := do(t, ts, http.MethodGet, "/soundscape/party", "", nil)
	if code != http.StatusBadRequest {
		t.Fatalf("GET /soundscape/party = %d; want 400", code)
	}
}

func TestAccount(t *testing.T) {
	ts := testServer(t)
	user := map[string]string{"username": "ana", "email": "ana@example.com", "password": "secret"}

	code, b := do(t, ts, http.MethodPost, "/api/register", "", user)
	if code != http.StatusCreated {
		t.Fatalf("register = %d %s; want 201", code, b)
	}
	code, _ = do(t, ts, http.MethodPost, "/api/register", "", user)
	if code != http.StatusBadRequest {
		t.Fatalf("register twice = %d; want 400", code)
	}

	code, _ = do(t, ts, http.MethodPost, "/api/login", "", map[string]string{"username": "ana", "password": "wrong"})
	if code != http.StatusUnauthorized {
		t.Fatalf("login wrong password = %d; want 401", code)
	}
	code, b = do(t, ts, http.MethodPost, "/api/login", "", map[string]string{"username": "ana", "password": "secret"})
	if code != http.StatusOK {
		t.Fatalf("login = %d %s; want 200", code, b)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(b, &login); err != nil {
		t.Fatal(err)
	}
	token := login.Token

	// Preferences
	code, _ = do(t, ts, http.MethodGet, "/api/preferences", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("preferences without token = %d; want 401", code)
	}
	code, _ = do(t, ts, http.MethodPost, "/api/preferences", token, map[string]string{"mood": "party"})
	if code != http.StatusBadRequest {
		t.Fatalf("invalid preference = %d; want 400", code)
	}
	code, b = do(t, ts, http.MethodPost, "/api/preferences", token, map[string]string{"mood": "focus", "time": "night"})
	if code != http.StatusCreated {
		t.Fatalf("add preference = %d %s; want 201", code, b)
	}
	code, b = do(t, ts, http.MethodGet, "/api/preferences", token, nil)
	if code != http.StatusOK {
		t.Fatalf("list preferences = %d; want 200", code)
	}
	var prefs []preference
	if err := json.Unmarshal(b, &prefs); err != nil {
		t.Fatal(err)
	}
	if len(prefs) != 1 || prefs[0].Mood == nil || *prefs[0].Mood != "focus" || prefs[0].Time == nil || *prefs[0].Time != "night" {
		t.Fatalf("preferences = %s; want focus at night", b)
	}

	// Mood entries
	code, _ = do(t, ts, http.MethodPost, "/api/moods", token, map[string]string{"mood": "happy", "note": "sunny"})
	if code != http.StatusCreated {
		t.Fatalf("add mood = %d; want 201", code)
	}
	code, b = do(t, ts, http.MethodGet, "/api/moods", token, nil)
	if code != http.StatusOK {
		t.Fatalf("list moods = %d; want 200", code)
	}
	var entries []moodEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Mood != "happy" || entries[0].Note != "sunny" {
		t.Fatalf("moods = %s; want one happy entry", b)
	}

	// Logout revokes the token
	code, _ = do(t, ts, http.MethodPost, "/api/logout", token, nil)
	if code != http.StatusOK {
		t.Fatalf("logout = %d; want 200", code)
	}
	code, _ = do(t, ts, http.MethodGet, "/api/moods", token, nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("moods after logout = %d; want 401", code)
	}
}

func register(t *testing.T, ts *httptest.Server, username string) string {
	t.Helper()
	user := map[string]string{"username": username, "email": username + "@example.com", "password": "secret"}
	code, b := do(t, ts, http.MethodPost, "/api/register", "", user)
	if code != http.StatusCreated {
		t.Fatalf("register %s = %d %s; want 201", username, code, b)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		t.Fatal(err)
	}
	return resp.Token
}

func TestGenerations(t *testing.T) {
	ts := testServer(t)
	ana := register(t, ts, "ana")
	bob := register(t, ts, "bob")

	code, _ := do(t, ts, http.MethodPost, "/generate", "bad-token", map[string]string{"mood": "relax"})
	if code != http.StatusUnauthorized {
		t.Fatalf("POST /generate bad token = %d; want 401", code)
	}
	// The token owner replaces any user_id of the body
	code, b := do(t, ts, http.MethodPost, "/generate", ana, map[string]string{"user_id": "../x", "mood": "relax"})
	if code != http.StatusOK {
		t.Fatalf("POST /generate = %d %s; want 200", code, b)
	}
	var gen generateResponse
	if err := json.Unmarshal(b, &gen); err != nil {
		t.Fatal(err)
	}

	code, b = do(t, ts, http.MethodGet, "/api/generations", ana, nil)
	if code != http.StatusOK {
		t.Fatalf("list generations = %d; want 200", code)
	}
	var gens []generation
	if err := json.Unmarshal(b, &gens); err != nil {
		t.Fatal(err)
	}
	if len(gens) != 1 || gens[0].Mood != "relax" || gens[0].DownloadURL != gen.DownloadURL {
		t.Fatalf("generations = %s; want one relax generation", b)
	}
	id := gens[0].ID

	code, b = do(t, ts, http.MethodGet, "/api/generations", bob, nil)
	if code != http.StatusOK || strings.TrimSpace(string(b)) != "[]" {
		t.Fatalf("list other user generations = %d %s; want 200 []", code, b)
	}
	code, _ = do(t, ts, http.MethodGet, "/api/generations/"+id, bob, nil)
	if code != http.StatusNotFound {
		t.Fatalf("get other user generation = %d; want 404", code)
	}
	code, _ = do(t, ts, http.MethodDelete, "/api/generations/"+id, bob, nil)
	if code != http.StatusNotFound {
		t.Fatalf("delete other user generation = %d; want 404", code)
	}

	code, b = do(t, ts, http.MethodGet, "/api/generations/"+id, ana, nil)
	if code != http.StatusOK {
		t.Fatalf("get generation = %d; want 200", code)
	}
	var got generation
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != id || got.Title != "Xenotune - Relax Mode" {
		t.Fatalf("generation = %s; want %s", b, id)
	}

	code, _ = do(t, ts, http.MethodDelete, "/api/generations/"+id, ana, nil)
	if code != http.StatusOK {
		t.Fatalf("delete generation = %d; want 200", code)
	}
	code, _ = do(t, ts, http.MethodGet, "/api/generations/"+id, ana, nil)
	if code != http.StatusNotFound {
		t.Fatalf("get deleted generation = %d; want 404", code)
	}
}
