// Package api serves the saved-collection endpoints and the listing proxy,
// and provides the HTTP client the saved-items store uses when authenticated.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ppiankov/redreader/internal/source"
	"github.com/ppiankov/redreader/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// ErrUnauthorized is returned when a request carries no valid bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// SubjectClaim is the token claim holding the user id.
const SubjectClaim = "userId"

// SavedPosts is the persistence the server needs.
type SavedPosts interface {
	CreateSavedPost(ctx context.Context, in store.SavedPostInput) (store.SavedPost, error)
	ListSavedPosts(ctx context.Context, userID string) ([]store.SavedPost, error)
	DeleteSavedPost(ctx context.Context, userID, id string) error
}

// Options configures a Server.
type Options struct {
	JWTSecret    []byte
	EnableDelete bool
	PageSize     int
	Logger       *log.Entry
}

// Server is the HTTP saved-collection service.
type Server struct {
	posts        SavedPosts
	fetcher      source.Fetcher
	secret       []byte
	enableDelete bool
	pageSize     int
	log          *log.Entry
	router       chi.Router
}

type ctxKey int

const userIDKey ctxKey = iota

// New creates a server. fetcher may be nil, in which case the listing proxy
// is not mounted.
func New(posts SavedPosts, fetcher source.Fetcher, opts Options) (*Server, error) {
	if posts == nil {
		return nil, errors.New("api: saved posts store is required")
	}
	if len(opts.JWTSecret) == 0 {
		return nil, errors.New("api: jwt secret is required")
	}
	s := &Server{
		posts:        posts,
		fetcher:      fetcher,
		secret:       opts.JWTSecret,
		enableDelete: opts.EnableDelete,
		pageSize:     opts.PageSize,
		log:          opts.Logger,
	}
	if s.log == nil {
		s.log = log.WithField("component", "api")
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(instrument)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.fetcher != nil {
			r.Get("/r/{sub}", s.handleListing)
		}
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/saved", s.handleListSaved)
			r.Post("/saved", s.handleCreateSaved)
			if s.enableDelete {
				r.Delete("/saved/{id}", s.handleDeleteSaved)
			}
		})
	})

	s.router = r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// --- Middleware ---

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.userFromRequest(r)
		if err != nil {
			s.log.WithError(err).Debug("rejecting request")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func (s *Server) userFromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}

	token, err := jwt.Parse(strings.TrimSpace(raw), func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: unexpected claims", ErrUnauthorized)
	}
	userID, _ := claims[SubjectClaim].(string)
	if userID == "" {
		return "", fmt.Errorf("%w: token has no %s claim", ErrUnauthorized, SubjectClaim)
	}
	return userID, nil
}

func userID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSaved(w http.ResponseWriter, r *http.Request) {
	posts, err := s.posts.ListSavedPosts(r.Context(), userID(r.Context()))
	if err != nil {
		s.log.WithError(err).Error("list saved posts")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleCreateSaved(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PostData json.RawMessage `json:"postData"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if len(req.PostData) == 0 || string(req.PostData) == "null" {
		writeError(w, http.StatusBadRequest, "Post data is required")
		return
	}

	var post struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.PostData, &post); err != nil || post.ID == "" {
		writeError(w, http.StatusBadRequest, "Post data must be an object with an id")
		return
	}

	saved, err := s.posts.CreateSavedPost(r.Context(), store.SavedPostInput{
		UserID:   userID(r.Context()),
		PostID:   post.ID,
		PostData: req.PostData,
	})
	if err != nil {
		s.log.WithError(err).Error("save post")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteSaved(w http.ResponseWriter, r *http.Request) {
	err := s.posts.DeleteSavedPost(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case err != nil:
		s.log.WithError(err).Error("delete saved post")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListingResponse is the body of the listing proxy.
type ListingResponse struct {
	Items []source.Item `json:"items"`
	After string        `json:"after,omitempty"`
}

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sort, err := source.ParseSort(q.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	timeRange, err := source.ParseTimeRange(q.Get("t"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.fetcher.FetchPage(r.Context(), source.Query{
		Collection: chi.URLParam(r, "sub"),
		Sort:       sort,
		TimeRange:  timeRange,
		Cursor:     q.Get("after"),
		Limit:      s.pageSize,
	})
	if err != nil {
		s.log.WithError(err).Warn("listing fetch failed")
		writeError(w, http.StatusBadGateway, "Failed to fetch subreddit: "+err.Error())
		return
	}

	items, _ := source.NormalizePage(page.Entries)
	if items == nil {
		items = []source.Item{}
	}
	writeJSON(w, http.StatusOK, ListingResponse{Items: items, After: page.Next})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
