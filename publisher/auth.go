package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	// defaultTokenLifetime is assumed when the token carries no exp claim.
	defaultTokenLifetime = 7 * 24 * time.Hour
	// refreshWindow: a token expiring sooner than this is refreshed.
	refreshWindow = 24 * time.Hour
)

var ErrNoCredentials = errors.New("site has no stored credentials")

// Token is the result of a JWT Authentication plugin login.
type Token struct {
	Token       string
	DisplayName string
	UserEmail   string
	Expire      time.Time
}

type jwtAuthResp struct {
	Token           string `json:"token"`
	UserDisplayName string `json:"user_display_name"`
	UserEmail       string `json:"user_email"`
	UserNicename    string `json:"user_nicename"`
}

// FetchToken logs in through {site}/wp-json/jwt-auth/v1/token.
func (p *Publisher) FetchToken(ctx context.Context, siteURL, userName, password string) (Token, error) {
	payload, err := json.Marshal(map[string]string{"username": userName, "password": password})
	if err != nil {
		return Token{}, &RequestError{UserMessage: TokenFailedMessage, Err: err}
	}
	site := Site{URL: siteURL}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, site.BaseURL()+tokenPath, bytes.NewReader(payload))
	if err != nil {
		return Token{}, &RequestError{UserMessage: TokenFailedMessage, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := p.do(req)
	if err != nil {
		return Token{}, &RequestError{UserMessage: TokenFailedMessage, Err: err}
	}
	var data jwtAuthResp
	if err := decodeObject(body, "token", &data); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return Token{}, apiErr
		}
		return Token{}, &RequestError{UserMessage: TokenFailedMessage, Err: err}
	}
	return Token{
		Token:       data.Token,
		DisplayName: data.UserDisplayName,
		UserEmail:   data.UserEmail,
		Expire:      p.tokenExpiry(data.Token),
	}, nil
}

// tokenExpiry reads the exp claim without verifying the signature; only the
// site can verify its own tokens.
func (p *Publisher) tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return p.now().Add(defaultTokenLifetime)
}

// TokenExpired reports whether site needs a new token before it is used.
func TokenExpired(site Site, now time.Time) bool {
	if site.Token == "" {
		return true
	}
	return !now.Add(refreshWindow).Before(site.TokenExpire)
}

// EnsureToken refreshes site's token in place when it is missing or about to
// expire. It reports whether a refresh happened.
func (p *Publisher) EnsureToken(ctx context.Context, site *Site) (bool, error) {
	if !TokenExpired(*site, p.now()) {
		return false, nil
	}
	if site.UserName == "" || site.Password == "" {
		return false, ErrNoCredentials
	}
	tok, err := p.FetchToken(ctx, site.URL, site.UserName, site.Password)
	if err != nil {
		p.logger.Warn("token refresh failed", zap.String("site", site.BaseURL()), zap.Error(err))
		return false, err
	}
	site.Token = tok.Token
	site.TokenExpire = tok.Expire
	if tok.DisplayName != "" {
		site.DisplayName = tok.DisplayName
	}
	if tok.UserEmail != "" {
		site.UserEmail = tok.UserEmail
	}
	p.logger.Info("token refreshed", zap.String("site", site.BaseURL()), zap.Time("expire", tok.Expire))
	return true, nil
}
