// Package cognito implements ports.IdentityProvider against an AWS Cognito
// user pool through the public (unsigned) user pool API.
package cognito

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/firefly/security-center/internal/core/domain"
	"github.com/firefly/security-center/internal/infrastructure/idp/idphttp"
)

const (
	Name = "cognito"

	targetPrefix = "AWSCognitoIdentityProviderService."
	contentType  = "application/x-amz-json-1.1"

	// refresh tokens handed out carry the username when the app client has a
	// secret, because SECRET_HASH on refresh is keyed by it.
	wrappedSep = "~"
)

// Config holds the user pool coordinates.
type Config struct {
	Region       string
	UserPoolID   string
	ClientID     string
	ClientSecret string
	// Endpoint overrides https://cognito-idp.<region>.amazonaws.com.
	Endpoint string
	Timeout  time.Duration
}

// Provider talks to one user pool app client. It keeps no session state.
type Provider struct {
	cfg      Config
	endpoint string
	client   *http.Client
	verifier *verifier
}

func New(cfg Config) *Provider {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://cognito-idp.%s.amazonaws.com", cfg.Region)
	}
	client := idphttp.NewClient(cfg.Timeout)
	issuer := endpoint + "/" + cfg.UserPoolID
	return &Provider{
		cfg:      cfg,
		endpoint: endpoint + "/",
		client:   client,
		verifier: newVerifier(client, issuer, issuer+"/.well-known/jwks.json", cfg.ClientID),
	}
}

func (p *Provider) Name() string { return Name }

type authResult struct {
	AccessToken  string `json:"AccessToken"`
	ExpiresIn    int64  `json:"ExpiresIn"`
	IDToken      string `json:"IdToken"`
	RefreshToken string `json:"RefreshToken"`
	TokenType    string `json:"TokenType"`
}

type initiateAuthResponse struct {
	AuthenticationResult *authResult `json:"AuthenticationResult"`
	ChallengeName        string      `json:"ChallengeName"`
}

// Authenticate runs the USER_PASSWORD_AUTH flow. Pools that answer with a
// challenge (MFA, new password) are reported as rejected credentials.
func (p *Provider) Authenticate(ctx context.Context, creds domain.Credentials) (domain.TokenSet, error) {
	params := map[string]string{"USERNAME": creds.Username, "PASSWORD": creds.Password}
	if p.cfg.ClientSecret != "" {
		params["SECRET_HASH"] = p.secretHash(creds.Username)
	}

	var resp initiateAuthResponse
	err := p.call(ctx, "InitiateAuth", map[string]any{
		"AuthFlow":       "USER_PASSWORD_AUTH",
		"ClientId":       p.cfg.ClientID,
		"AuthParameters": params,
	}, &resp, domain.ErrInvalidCredentials)
	if err != nil {
		return domain.TokenSet{}, fmt.Errorf("cognito initiate auth: %w", err)
	}
	if resp.ChallengeName != "" {
		return domain.TokenSet{}, fmt.Errorf("cognito initiate auth: %w: challenge %s required", domain.ErrInvalidCredentials, resp.ChallengeName)
	}
	set, err := p.tokenSet(resp.AuthenticationResult, "")
	if err != nil {
		return domain.TokenSet{}, err
	}
	if p.cfg.ClientSecret != "" && set.RefreshToken != "" {
		set.RefreshToken = wrapRefresh(creds.Username, set.RefreshToken)
	}
	return set, nil
}

// Refresh runs the REFRESH_TOKEN_AUTH flow. Cognito does not rotate refresh
// tokens, so the presented token is returned again.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (domain.TokenSet, error) {
	username, raw := unwrapRefresh(refreshToken)
	params := map[string]string{"REFRESH_TOKEN": raw}
	if p.cfg.ClientSecret != "" {
		params["SECRET_HASH"] = p.secretHash(username)
	}

	var resp initiateAuthResponse
	err := p.call(ctx, "InitiateAuth", map[string]any{
		"AuthFlow":       "REFRESH_TOKEN_AUTH",
		"ClientId":       p.cfg.ClientID,
		"AuthParameters": params,
	}, &resp, domain.ErrTokenExpired)
	if err != nil {
		return domain.TokenSet{}, fmt.Errorf("cognito refresh: %w", err)
	}
	return p.tokenSet(resp.AuthenticationResult, refreshToken)
}

// Logout revokes the refresh token, or signs the user out globally when only
// an access token is known.
func (p *Provider) Logout(ctx context.Context, tokens domain.TokenSet) error {
	var err error
	switch {
	case tokens.RefreshToken != "":
		_, raw := unwrapRefresh(tokens.RefreshToken)
		body := map[string]any{"Token": raw, "ClientId": p.cfg.ClientID}
		if p.cfg.ClientSecret != "" {
			body["ClientSecret"] = p.cfg.ClientSecret
		}
		err = p.call(ctx, "RevokeToken", body, nil, domain.ErrInvalidCredentials)
	case tokens.AccessToken != "":
		err = p.call(ctx, "GlobalSignOut", map[string]any{"AccessToken": tokens.AccessToken}, nil, domain.ErrTokenExpired)
	default:
		return nil
	}
	if idphttp.IsCode(err, "NotAuthorizedException") {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cognito logout: %w", err)
	}
	return nil
}

// Introspect verifies the access token locally against the pool's JWKS.
func (p *Provider) Introspect(ctx context.Context, accessToken string) (domain.TokenStatus, error) {
	return p.verifier.Verify(ctx, accessToken)
}

type getUserResponse struct {
	Username       string `json:"Username"`
	UserAttributes []struct {
		Name  string `json:"Name"`
		Value string `json:"Value"`
	} `json:"UserAttributes"`
}

// GetIdentity reads the user's attributes with the access token.
func (p *Provider) GetIdentity(ctx context.Context, accessToken string) (domain.ExternalIdentity, error) {
	var resp getUserResponse
	if err := p.call(ctx, "GetUser", map[string]any{"AccessToken": accessToken}, &resp, domain.ErrTokenExpired); err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("cognito get user: %w", err)
	}

	claims := make(map[string]any, len(resp.UserAttributes)+1)
	claims["cognito:username"] = resp.Username
	for _, attr := range resp.UserAttributes {
		claims[attr.Name] = attr.Value
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return domain.ExternalIdentity{}, idphttp.Malformed("cognito user without sub attribute")
	}
	email, _ := claims["email"].(string)
	username, _ := claims["preferred_username"].(string)
	if username == "" {
		username = resp.Username
	}

	return domain.ExternalIdentity{
		Subject:           sub,
		Email:             email,
		PreferredUsername: username,
		Claims:            claims,
	}, nil
}

// call posts one user pool API action. notAuthorized is the failure reported
// for NotAuthorizedException and friends.
func (p *Provider) call(ctx context.Context, action string, body any, out any, notAuthorized error) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", action, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Amz-Target", targetPrefix+action)

	err = idphttp.Do(p.client, req, out, func(status int, code string) error {
		return classifyException(status, code, notAuthorized)
	})
	var se *idphttp.StatusError
	if errors.As(err, &se) {
		se.Code = exceptionName(se.Code)
	}
	return err
}

func classifyException(status int, code string, notAuthorized error) error {
	switch exceptionName(code) {
	case "NotAuthorizedException", "UserNotFoundException", "UserNotConfirmedException",
		"PasswordResetRequiredException", "InvalidPasswordException":
		return notAuthorized
	case "TooManyRequestsException", "InternalErrorException", "LimitExceededException":
		return domain.ErrProviderUnavailable
	case "ResourceNotFoundException", "InvalidParameterException", "InvalidUserPoolConfigurationException":
		return domain.ErrMalformedResponse
	}
	return idphttp.ClassifyStatus(status)
}

// exceptionName strips the namespace AWS sometimes puts in __type.
func exceptionName(code string) string {
	if i := strings.LastIndex(code, "#"); i >= 0 {
		return code[i+1:]
	}
	return code
}

func (p *Provider) secretHash(username string) string {
	mac := hmac.New(sha256.New, []byte(p.cfg.ClientSecret))
	mac.Write([]byte(username + p.cfg.ClientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (p *Provider) tokenSet(res *authResult, refreshToken string) (domain.TokenSet, error) {
	if res == nil || res.AccessToken == "" {
		return domain.TokenSet{}, idphttp.Malformed("cognito response without AuthenticationResult")
	}
	set := domain.TokenSet{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		IDToken:      res.IDToken,
		TokenType:    res.TokenType,
		ExpiresIn:    res.ExpiresIn,
	}
	if set.RefreshToken == "" {
		set.RefreshToken = refreshToken
	}
	if set.TokenType == "" {
		set.TokenType = "Bearer"
	}
	if res.ExpiresIn > 0 {
		set.ExpiresAt = time.Now().Add(time.Duration(res.ExpiresIn) * time.Second)
	}
	return set, nil
}

func wrapRefresh(username, token string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(username)) + wrappedSep + token
}

func unwrapRefresh(token string) (username, raw string) {
	prefix, rest, ok := strings.Cut(token, wrappedSep)
	if !ok {
		return "", token
	}
	name, err := base64.RawURLEncoding.DecodeString(prefix)
	if err != nil {
		return "", token
	}
	return string(name), rest
}
