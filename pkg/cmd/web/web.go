package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/igolaizola/xenotune"
	"github.com/igolaizola/xenotune/pkg/filestore"
	"github.com/igolaizola/xenotune/pkg/ngrok"
	"github.com/igolaizola/xenotune/pkg/storage"
)

type Config struct {
	Debug      bool
	DBType     string
	DBConn     string
	FSType     string
	FSConn     string
	FSEndpoint string

	Addr string
	// Files is a local folder served under /files/.
	Files string
	// Secret signs the API tokens. A random one is stored in the database
	// when empty.
	Secret   string
	TokenTTL time.Duration
	// Ngrok exposes the server through an ngrok tunnel.
	Ngrok bool

	Generator xenotune.Config
}

const secretSetting = "jwt_secret"

// Serve starts the soundscape service.
func Serve(ctx context.Context, cfg *Config) error {
	log.Println("web: server started")
	defer log.Println("web: server ended")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg.Generator.Debug = cfg.Debug
	generator, err := xenotune.New(&cfg.Generator)
	if err != nil {
		return fmt.Errorf("web: couldn't create generator: %w", err)
	}

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("web: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("web: couldn't start orm store: %w", err)
	}
	defer func() { _ = store.Stop() }()

	fs, err := filestore.New(cfg.FSType, cfg.FSConn, cfg.FSEndpoint, cfg.Debug)
	if err != nil {
		return fmt.Errorf("web: couldn't create file storage: %w", err)
	}

	secret := cfg.Secret
	if secret == "" {
		secret, err = store.LoadOrCreateSetting(ctx, secretSetting, randomSecret)
		if err != nil {
			return fmt.Errorf("web: couldn't load token secret: %w", err)
		}
	}

	srv := &server{
		debug:     cfg.Debug,
		store:     store,
		fs:        fs,
		generator: generator,
		tokens:    newTokens(store, []byte(secret), cfg.TokenTTL),
		files:     cfg.Files,
	}

	// Create server
	split := strings.Split(cfg.Addr, ":")
	if len(split) != 2 {
		return fmt.Errorf("web: invalid address: %s", cfg.Addr)
	}
	host := split[0]
	port, err := strconv.Atoi(split[1])
	if err != nil {
		return fmt.Errorf("web: invalid port: %s", split[1])
	}
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: srv.router(),
	}
	go func() {
		note := fmt.Sprintf("http://%s:%d", host, port)
		if host == "" {
			note = fmt.Sprintf("all interfaces http://localhost:%d", port)
		}
		log.Printf("web: starting server on %s\n", note)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("web: failed to start server: %v\n", err)
			cancel()
		}
	}()

	if cfg.Ngrok {
		u, stop, err := ngrok.Run(ctx, "http", strconv.Itoa(port))
		if err != nil {
			return fmt.Errorf("web: %w", err)
		}
		defer stop()
		log.Printf("web: public url %s\n", u)
	}

	// Purge expired revoked tokens once a day
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := store.PurgeTokens(ctx, time.Now()); err != nil {
					log.Println(err)
				}
			}
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: couldn't shutdown server: %w", err)
	}
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

type server struct {
	debug     bool
	store     *storage.Store
	fs        *filestore.Store
	generator *xenotune.Generator
	tokens    *tokens
	files     string
}

func (s *server) router() http.Handler {
	mux := chi.NewRouter()

	// Add middleware
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(cors)
	if s.debug {
		mux.Use(middleware.Logger)
	}

	mux.Get("/", s.root)

	// Handler to serve uploaded files of the local file storage
	if s.files != "" {
		mux.Get("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(s.files))).ServeHTTP)
	}

	mux.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Minute))
		r.Post("/generate", s.generate)
		r.Get("/soundscape/{mood}", s.soundscape)
	})

	mux.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Post("/register", s.register)
		r.Post("/login", s.login)
		r.Group(func(r chi.Router) {
			r.Use(s.tokens.middleware)
			r.Post("/logout", s.logout)
			r.Get("/preferences", s.listPreferences)
			r.Post("/preferences", s.addPreference)
			r.Get("/moods", s.listMoods)
			r.Post("/moods", s.addMood)
			r.Get("/generations", s.listGenerations)
			r.Get("/generations/{id}", s.getGeneration)
			r.Delete("/generations/{id}", s.deleteGeneration)
		})
	})
	return mux
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
