package cli

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ppiankov/redreader/internal/api"
	"github.com/ppiankov/redreader/internal/config"
	"github.com/ppiankov/redreader/internal/saved"
	"github.com/ppiankov/redreader/internal/source"
	"github.com/ppiankov/redreader/internal/store"
	log "github.com/sirupsen/logrus"
)

// savedSession bundles the saved-items store with the database backing its
// local mode. Close releases the database.
type savedSession struct {
	*saved.Store
	db *store.Store
}

func (s *savedSession) Close() error {
	return s.db.Close()
}

// openSaved opens the local database, builds the saved-items store and
// switches it to the identity carried by the configured token.
func openSaved(ctx context.Context, cfg *config.Config) (*savedSession, error) {
	db, err := store.Open(cfg.Saved.Path)
	if err != nil {
		return nil, fmt.Errorf("open saved db: %w", err)
	}

	local, err := saved.NewLocalBackend(db.Bucket(cfg.Saved.Scope))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	backends := saved.ModeBackends{
		Local:  local,
		Remote: remoteBackend(cfg),
	}
	st, err := saved.NewStore(backends, saved.WithLogger(log.WithField("component", "saved")))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	id := identityFromConfig(cfg)
	if err := st.SetIdentity(ctx, id); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load saved items (%s): %w", id, err)
	}
	return &savedSession{Store: st, db: db}, nil
}

func remoteBackend(cfg *config.Config) func(saved.Identity) (saved.Backend, error) {
	if cfg.Saved.RemoteURL == "" {
		return nil
	}
	return func(id saved.Identity) (saved.Backend, error) {
		client, err := api.NewClient(cfg.Saved.RemoteURL, api.WithCredential(id.Credential()))
		if err != nil {
			return nil, err
		}
		var opts []saved.RemoteOption
		if cfg.Saved.RemoteDelete {
			opts = append(opts, saved.WithDeleter(client))
		}
		return saved.NewRemoteBackend(client, opts...)
	}
}

// identityFromConfig derives the session identity from the token env var.
// The token is only decoded here; the server verifies it on every request.
func identityFromConfig(cfg *config.Config) saved.Identity {
	if cfg.Saved.Token == "" {
		return saved.Anonymous()
	}
	if cfg.Saved.RemoteURL == "" {
		log.Warnf("%s is set but saved.remote_url is empty, using local saved items", cfg.Saved.TokenEnv)
		return saved.Anonymous()
	}
	subject, err := tokenSubject(cfg.Saved.Token)
	if err != nil {
		log.WithError(err).Warnf("%s is not a usable token, using local saved items", cfg.Saved.TokenEnv)
		return saved.Anonymous()
	}
	return saved.Authenticated(subject, cfg.Saved.Token)
}

func tokenSubject(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	subject, _ := claims[api.SubjectClaim].(string)
	if subject == "" {
		return "", fmt.Errorf("token has no %s claim", api.SubjectClaim)
	}
	return subject, nil
}

func newFetcher(baseURL string, cfg *config.Config) *source.RedditSource {
	return source.NewReddit(
		source.WithBaseURL(baseURL),
		source.WithUserAgent(cfg.Feed.UserAgent),
		source.WithTimeout(cfg.Feed.Timeout.Duration),
	)
}
