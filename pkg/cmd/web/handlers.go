package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/igolaizola/xenotune/pkg/filestore"
	"github.com/igolaizola/xenotune/pkg/sound"
	"github.com/igolaizola/xenotune/pkg/storage"
	"github.com/oklog/ulid/v2"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: couldn't encode response: %v\n", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("couldn't decode request: %v", err))
		return false
	}
	return true
}

func (s *server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Xenotune backend is running and ready to generate music.",
	})
}

// mood returns the lower case mode name if it is configured.
func (s *server) mood(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, m := range s.generator.Modes() {
		if m == name {
			return name, true
		}
	}
	return "", false
}

func (s *server) invalidMood(w http.ResponseWriter) {
	modes := s.generator.Modes()
	choices := strings.Join(modes, ", ")
	if n := len(modes); n > 1 {
		choices = strings.Join(modes[:n-1], ", ") + " or " + modes[n-1]
	}
	writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid mood. Choose %s.", choices))
}

type generateRequest struct {
	UserID string `json:"user_id"`
	Mood   string `json:"mood"`
}

type generateResponse struct {
	Status      string `json:"status"`
	DownloadURL string `json:"download_url"`
	Message     string `json:"message"`
}

func (s *server) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !readJSON(w, r, &req) {
		return
	}
	// Authenticated requests are recorded for the token owner
	if tok := bearer(r); tok != "" {
		claims, err := s.tokens.parse(r.Context(), tok)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		req.UserID = claims.Subject
	}
	if err := filestore.ValidUser(req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user_id")
		return
	}
	mood, ok := s.mood(req.Mood)
	if !ok {
		s.invalidMood(w)
		return
	}
	ctx := r.Context()
	res, err := s.generator.Generate(ctx, mood)
	if err != nil {
		log.Println(err)
		writeError(w, http.StatusInternalServerError, "Music generation failed.")
		return
	}

	file := res.MIDI
	gen := &storage.Generation{
		ID:     ulid.Make().String(),
		UserID: req.UserID,
		Mode:   res.Mode,
		Seed:   res.Seed,
		Tempo:  res.Score.Tempo,
		Title:  res.Score.Title,
		Tracks: len(res.Score.Tracks),
		Midi:   res.MIDI,
		Audio:  res.Audio,
	}
	if res.Audio != "" {
		file = res.Audio
		if a, err := sound.NewAnalyzer(res.Audio); err != nil {
			log.Printf("web: couldn't analyze %s: %v\n", res.Audio, err)
		} else {
			gen.Duration = float32(a.Duration().Seconds())
		}
	}
	u, err := s.fs.Upload(ctx, file, req.UserID)
	if err != nil {
		log.Printf("web: couldn't upload %s: %v\n", file, err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Unexpected error: %v", err))
		return
	}
	gen.URL = u
	if err := s.store.SetGeneration(ctx, gen); err != nil {
		log.Println(err)
	}

	writeJSON(w, http.StatusOK, &generateResponse{
		Status:      "success",
		DownloadURL: u,
		Message:     fmt.Sprintf("%s music generated and uploaded.", strings.ToUpper(mood[:1])+mood[1:]),
	})
}

func (s *server) soundscape(w http.ResponseWriter, r *http.Request) {
	mood, ok := s.mood(chi.URLParam(r, "mood"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid mood")
		return
	}
	res, err := s.generator.MIDI(r.Context(), mood)
	if err != nil {
		log.Println(err)
		writeError(w, http.StatusInternalServerError, "Music generation failed.")
		return
	}
	b, err := os.ReadFile(res.MIDI)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("couldn't read midi: %v", err))
		return
	}
	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.midi", mood))
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	_, _ = w.Write(b)
}

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *server) register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !readJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}
	u, err := s.store.CreateUser(r.Context(), req.Username, req.Email, req.Password)
	if errors.Is(err, storage.ErrUserExists) {
		writeError(w, http.StatusBadRequest, "Username already exists")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	token, err := s.tokens.issue(u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": token})
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !readJSON(w, r, &req) {
		return
	}
	u, err := s.store.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, storage.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	token, err := s.tokens.issue(u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	expires := time.Now().Add(s.tokens.ttl)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	if err := s.store.RevokeToken(r.Context(), claims.ID, expires); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

type preference struct {
	Mood      *string   `json:"mood"`
	Time      *string   `json:"time"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *server) addPreference(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mood string `json:"mood"`
		Time string `json:"time"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	claims := claimsFrom(r.Context())
	_, err := s.store.AddPreference(r.Context(), claims.Subject, strings.ToLower(req.Mood), strings.ToLower(req.Time))
	if errors.Is(err, storage.ErrInvalidChoice) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Preference saved"})
}

func (s *server) listPreferences(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	prefs, err := s.store.ListPreferences(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := []*preference{}
	for _, p := range prefs {
		resp = append(resp, &preference{
			Mood:      p.MoodID,
			Time:      p.TimeID,
			CreatedAt: p.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type moodEntry struct {
	ID        string    `json:"id"`
	Mood      string    `json:"mood"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

func toMoodEntry(e *storage.MoodEntry) *moodEntry {
	return &moodEntry{
		ID:        e.ID,
		Mood:      e.Mood,
		Note:      e.Note,
		CreatedAt: e.CreatedAt,
	}
}

func (s *server) addMood(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mood string `json:"mood"`
		Note string `json:"note"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	claims := claimsFrom(r.Context())
	e, err := s.store.AddMoodEntry(r.Context(), claims.Subject, strings.ToLower(req.Mood), req.Note)
	if errors.Is(err, storage.ErrInvalidChoice) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toMoodEntry(e))
}

func (s *server) listMoods(w http.ResponseWriter, r *http.Request) {
	// Obtain page from query params
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 1
	}
	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil {
		size = 100
	}
	claims := claimsFrom(r.Context())
	entries, err := s.store.ListMoodEntries(r.Context(), claims.Subject, page, size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := []*moodEntry{}
	for _, e := range entries {
		resp = append(resp, toMoodEntry(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

type generation struct {
	ID          string    `json:"id"`
	Mood        string    `json:"mood"`
	Title       string    `json:"title"`
	Seed        int64     `json:"seed"`
	Tempo       int       `json:"tempo"`
	Duration    float32   `json:"duration"`
	DownloadURL string    `json:"download_url"`
	CreatedAt   time.Time `json:"created_at"`
}

func toGeneration(g *storage.Generation) *generation {
	return &generation{
		ID:          g.ID,
		Mood:        g.Mode,
		Title:       g.Title,
		Seed:        g.Seed,
		Tempo:       g.Tempo,
		Duration:    g.Duration,
		DownloadURL: g.URL,
		CreatedAt:   g.CreatedAt,
	}
}

// ownGeneration returns the generation if it belongs to the token owner.
func (s *server) ownGeneration(w http.ResponseWriter, r *http.Request) (*storage.Generation, bool) {
	claims := claimsFrom(r.Context())
	g, err := s.store.GetGeneration(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) || (err == nil && g.UserID != claims.Subject) {
		writeError(w, http.StatusNotFound, "Generation not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return g, true
}

func (s *server) listGenerations(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 1
	}
	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil {
		size = 100
	}
	claims := claimsFrom(r.Context())
	gens, err := s.store.ListGenerations(r.Context(), page, size, "id desc", storage.Where("user_id = ?", claims.Subject))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := []*generation{}
	for _, g := range gens {
		resp = append(resp, toGeneration(g))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) getGeneration(w http.ResponseWriter, r *http.Request) {
	g, ok := s.ownGeneration(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toGeneration(g))
}

func (s *server) deleteGeneration(w http.ResponseWriter, r *http.Request) {
	g, ok := s.ownGeneration(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteGeneration(r.Context(), g.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Generation deleted"})
}
