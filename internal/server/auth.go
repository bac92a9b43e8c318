package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"tufline/internal/engine"
	"tufline/internal/engine/auth"
	"tufline/internal/failure"
)

type credentialKey struct{}
type principalKey struct{}

func withCredential(ctx context.Context, credential string, p auth.Principal) context.Context {
	ctx = context.WithValue(ctx, credentialKey{}, credential)
	return context.WithValue(ctx, principalKey{}, p)
}

// credential returns the raw credential the request authenticated with. The
// engine re-checks it on every operation.
func credential(ctx context.Context) string {
	c, _ := ctx.Value(credentialKey{}).(string)
	return c
}

func principalFromContext(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized() huma.StatusError {
	return newAPIError(http.StatusUnauthorized, string(failure.APIKeyNonexistent), "api key nonexistent", nil)
}

// newAuthMiddleware requires an X-Api-Key header or a bearer token on every
// route under basePath except health. docs, openapi and /metrics sit outside it.
func newAuthMiddleware(basePath string, e engine.Engine) func(http.Handler) http.Handler {
	public := map[string]bool{
		path.Join(basePath, "health"):       true,
		path.Join(basePath, "openapi.json"): true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if public[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}

			cred := strings.TrimSpace(req.Header.Get("X-Api-Key"))
			if authz := strings.TrimSpace(req.Header.Get("Authorization")); authz != "" {
				token, ok := bearerToken(authz)
				if !ok {
					respondStatusError(w, unauthorized())
					return
				}
				cred = token
			}
			if cred == "" {
				respondStatusError(w, unauthorized())
				return
			}
			principal, err := e.Authenticate(req.Context(), cred)
			if err != nil {
				respondStatusError(w, unauthorized())
				return
			}
			next.ServeHTTP(w, req.WithContext(withCredential(req.Context(), cred, principal)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}

type TokenRequest struct {
	TTLSeconds int64 `json:"ttlSeconds,omitempty" doc:"Token lifetime; defaults to auth.token_ttl"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
}

func registerAuth(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "mint-token",
		Method:      http.MethodPost,
		Path:        "/auth/token",
		Summary:     "Exchange the calling API key for a bearer token",
		Errors:      []int{http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body TokenRequest `json:"body" required:"false"`
	}) (*struct {
		Body TokenResponse `json:"body"`
	}, error) {
		if p, ok := principalFromContext(ctx); ok && p.Source == "token" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "tokens are minted from api keys", nil)
		}
		token, err := e.MintToken(ctx, credential(ctx), secondsDuration(input.Body.TTLSeconds))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TokenResponse `json:"body"`
		}{Body: TokenResponse{Token: token, TokenType: "Bearer"}}, nil
	})
}
