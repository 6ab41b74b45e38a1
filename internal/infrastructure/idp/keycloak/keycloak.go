// Package keycloak implements ports.IdentityProvider against a Keycloak realm
// using the OpenID Connect endpoints.
package keycloak

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zitadel/oidc/v3/pkg/oidc"
	"golang.org/x/oauth2"

	"github.com/firefly/security-center/internal/core/domain"
	"github.com/firefly/security-center/internal/infrastructure/idp/idphttp"
)

const Name = "keycloak"

// Config holds the realm coordinates and client credentials.
type Config struct {
	ServerURL    string
	Realm        string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

// Provider talks to one Keycloak realm. It keeps no session state.
type Provider struct {
	oauth  oauth2.Config
	base   string
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Provider {
	base := fmt.Sprintf("%s/realms/%s/protocol/openid-connect", strings.TrimRight(cfg.ServerURL, "/"), url.PathEscape(cfg.Realm))
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, oidc.ScopeProfile, oidc.ScopeEmail}
	}
	return &Provider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/auth",
				TokenURL:  base + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		base:   base,
		cfg:    cfg,
		client: idphttp.NewClient(cfg.Timeout),
	}
}

func (p *Provider) Name() string { return Name }

// Authenticate runs the resource owner password grant.
func (p *Provider) Authenticate(ctx context.Context, creds domain.Credentials) (domain.TokenSet, error) {
	conf := p.oauth
	if scope := strings.TrimSpace(creds.Scope); scope != "" {
		conf.Scopes = strings.Fields(scope)
	}
	tok, err := conf.PasswordCredentialsToken(p.withClient(ctx), creds.Username, creds.Password)
	if err != nil {
		return domain.TokenSet{}, fmt.Errorf("keycloak password grant: %w", grantError(err, domain.ErrInvalidCredentials))
	}
	return tokenSet(tok)
}

// Refresh exchanges a refresh token for a new token set.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (domain.TokenSet, error) {
	tok, err := p.oauth.TokenSource(p.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return domain.TokenSet{}, fmt.Errorf("keycloak refresh: %w", grantError(err, domain.ErrTokenExpired))
	}
	return tokenSet(tok)
}

// Logout ends the Keycloak session bound to the refresh token, or revokes the
// access token when no refresh token is known. A token the realm no longer
// knows counts as logged out.
func (p *Provider) Logout(ctx context.Context, tokens domain.TokenSet) error {
	form := p.clientForm()
	endpoint := p.base + "/logout"
	switch {
	case tokens.RefreshToken != "":
		form.Set("refresh_token", tokens.RefreshToken)
	case tokens.AccessToken != "":
		endpoint = p.base + "/revoke"
		form.Set("token", tokens.AccessToken)
		form.Set("token_type_hint", "access_token")
	default:
		return nil
	}

	req, err := idphttp.PostForm(ctx, endpoint, form)
	if err != nil {
		return err
	}
	err = idphttp.Do(p.client, req, nil, nil)
	if idphttp.IsCode(err, "invalid_grant") || idphttp.IsCode(err, "invalid_token") {
		return nil
	}
	if err != nil {
		return fmt.Errorf("keycloak logout: %w", err)
	}
	return nil
}

// Introspect calls the RFC 7662 introspection endpoint.
func (p *Provider) Introspect(ctx context.Context, accessToken string) (domain.TokenStatus, error) {
	form := p.clientForm()
	form.Set("token", accessToken)
	req, err := idphttp.PostForm(ctx, p.base+"/token/introspect", form)
	if err != nil {
		return domain.TokenStatus{}, err
	}

	var resp oidc.IntrospectionResponse
	if err := idphttp.Do(p.client, req, &resp, nil); err != nil {
		return domain.TokenStatus{}, fmt.Errorf("keycloak introspect: %w", err)
	}
	if !resp.Active {
		return domain.TokenStatus{Active: false}, nil
	}

	status := domain.TokenStatus{
		Active:    true,
		Subject:   resp.Subject,
		Username:  resp.Username,
		ClientID:  resp.ClientID,
		TokenType: resp.TokenType,
		Scopes:    []string(resp.Scope),
	}
	if status.Username == "" {
		status.Username = resp.PreferredUsername
	}
	if resp.Expiration != 0 {
		status.ExpiresAt = resp.Expiration.AsTime()
	}
	return status, nil
}

// GetIdentity reads the userinfo endpoint with the access token.
func (p *Provider) GetIdentity(ctx context.Context, accessToken string) (domain.ExternalIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+"/userinfo", nil)
	if err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	var info oidc.UserInfo
	err = idphttp.Do(p.client, req, &info, func(status int, code string) error {
		if status == http.StatusUnauthorized {
			return domain.ErrTokenExpired
		}
		return idphttp.ClassifyStatus(status)
	})
	if err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("keycloak userinfo: %w", err)
	}
	if info.Subject == "" {
		return domain.ExternalIdentity{}, idphttp.Malformed("keycloak userinfo without sub")
	}

	return domain.ExternalIdentity{
		Subject:           info.Subject,
		Email:             info.Email,
		PreferredUsername: info.PreferredUsername,
		Claims:            info.Claims,
	}, nil
}

func (p *Provider) clientForm() url.Values {
	form := url.Values{"client_id": {p.cfg.ClientID}}
	if p.cfg.ClientSecret != "" {
		form.Set("client_secret", p.cfg.ClientSecret)
	}
	return form
}

func (p *Provider) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}

// grantError classifies an oauth2 token endpoint failure. invalid_grant maps
// to onInvalidGrant.
func grantError(err error, onInvalidGrant error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return idphttp.Transport(err)
	}
	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	kind := idphttp.ClassifyStatus(status)
	if strings.EqualFold(re.ErrorCode, "invalid_grant") {
		kind = onInvalidGrant
	}
	return &idphttp.StatusError{Status: status, Code: re.ErrorCode, Kind: kind}
}

func tokenSet(tok *oauth2.Token) (domain.TokenSet, error) {
	if tok == nil || tok.AccessToken == "" {
		return domain.TokenSet{}, idphttp.Malformed("token response without access_token")
	}
	set := domain.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		ExpiresAt:    tok.Expiry,
	}
	if id, ok := tok.Extra("id_token").(string); ok {
		set.IDToken = id
	}
	if !tok.Expiry.IsZero() {
		set.ExpiresIn = int64(time.Until(tok.Expiry).Round(time.Second).Seconds())
	}
	return set, nil
}
