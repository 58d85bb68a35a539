package rpc

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"r2s/observability/logging"
)

// JWTConfig configures HMAC-signed bearer tokens for privileged methods.
type JWTConfig struct {
	HMACSecret string
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
}

type jwtVerifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

// newJWTVerifier returns nil when no secret is configured.
func newJWTVerifier(cfg JWTConfig) *jwtVerifier {
	secret := strings.TrimSpace(cfg.HMACSecret)
	if secret == "" {
		return nil
	}
	skew := cfg.ClockSkew
	if skew <= 0 {
		skew = 2 * time.Minute
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithLeeway(skew),
		jwt.WithExpirationRequired(),
	}
	if iss := strings.TrimSpace(cfg.Issuer); iss != "" {
		opts = append(opts, jwt.WithIssuer(iss))
	}
	if aud := strings.TrimSpace(cfg.Audience); aud != "" {
		opts = append(opts, jwt.WithAudience(aud))
	}
	return &jwtVerifier{secret: []byte(secret), opts: opts}
}

func (v *jwtVerifier) verify(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("token invalid")
	}
	return nil
}

// requireAuth accepts the static bearer token or a valid JWT. With neither
// configured every caller is admitted.
func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.cfg.AuthToken == "" && s.jwt == nil {
		return nil
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if s.cfg.AuthToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) == 1 {
		return nil
	}
	if s.jwt != nil {
		err := s.jwt.verify(token)
		if err == nil {
			return nil
		}
		s.logger.Warn("rejected rpc jwt",
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()))
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	s.logger.Warn("rejected rpc credentials",
		slog.String("request_id", RequestIDFromContext(r.Context())),
		logging.MaskField("auth_token", token))
	return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
}
