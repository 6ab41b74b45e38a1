// Package idp selects the identity provider adapter for the deployment.
package idp

import (
	"errors"
	"fmt"

	"github.com/firefly/security-center/internal/core/ports"
	"github.com/firefly/security-center/internal/infrastructure/config"
	"github.com/firefly/security-center/internal/infrastructure/idp/cognito"
	"github.com/firefly/security-center/internal/infrastructure/idp/keycloak"
	"github.com/firefly/security-center/internal/infrastructure/idp/local"
)

// LocalStores are the collaborators only the local provider needs.
type LocalStores struct {
	Accounts    ports.AccountRepository
	Revocations ports.TokenRevocationList
}

// New builds the provider named by cfg.IDP.Provider. Selection is static for
// the life of the process.
func New(cfg *config.Config, stores LocalStores) (ports.IdentityProvider, error) {
	switch cfg.IDP.Provider {
	case config.ProviderKeycloak:
		return keycloak.New(keycloak.Config{
			ServerURL:    cfg.Keycloak.ServerURL,
			Realm:        cfg.Keycloak.Realm,
			ClientID:     cfg.Keycloak.ClientID,
			ClientSecret: cfg.Keycloak.ClientSecret,
			Scopes:       cfg.Keycloak.Scopes,
			Timeout:      cfg.IDP.Timeout,
		}), nil
	case config.ProviderCognito:
		return cognito.New(cognito.Config{
			Region:       cfg.Cognito.Region,
			UserPoolID:   cfg.Cognito.UserPoolID,
			ClientID:     cfg.Cognito.ClientID,
			ClientSecret: cfg.Cognito.ClientSecret,
			Endpoint:     cfg.Cognito.Endpoint,
			Timeout:      cfg.IDP.Timeout,
		}), nil
	case config.ProviderLocal:
		if stores.Accounts == nil || stores.Revocations == nil {
			return nil, errors.New("idp: local provider needs an account repository and a revocation list")
		}
		return local.New(stores.Accounts, stores.Revocations, local.Config{
			Issuer:     cfg.Local.Issuer,
			Secret:     cfg.Local.Secret,
			AccessTTL:  cfg.Local.AccessTTL,
			RefreshTTL: cfg.Local.RefreshTTL,
		}), nil
	default:
		return nil, fmt.Errorf("idp: unknown provider %q", cfg.IDP.Provider)
	}
}
