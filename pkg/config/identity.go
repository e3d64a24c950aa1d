package config

import "time"

const (
	IdentityDriverMemory   = "memory"
	IdentityDriverKeycloak = "keycloak"
)

// IdentityProviderConfig selects and configures the identity provider adapter.
type IdentityProviderConfig struct {
	Driver string

	// Keycloak
	KeycloakURL          string
	KeycloakRealm        string
	KeycloakClientID     string
	KeycloakClientSecret string
	KeycloakAudience     string

	// Memory
	MemorySigningKey string
	MemoryTokenTTL   time.Duration
	MemoryBcryptCost int
}

func loadIdentityProviderConfig() IdentityProviderConfig {
	return IdentityProviderConfig{
		Driver:               getEnv("IDP_DRIVER", IdentityDriverMemory),
		KeycloakURL:          getEnv("KEYCLOAK_URL", "http://localhost:8081"),
		KeycloakRealm:        getEnv("KEYCLOAK_REALM", "provisioning"),
		KeycloakClientID:     getEnv("KEYCLOAK_CLIENT_ID", "provisioner"),
		KeycloakClientSecret: getEnv("KEYCLOAK_CLIENT_SECRET", ""),
		KeycloakAudience:     getEnv("KEYCLOAK_AUDIENCE", "account"),
		MemorySigningKey:     getEnv("IDP_MEMORY_SIGNING_KEY", "dev-signing-key-change-me"),
		MemoryTokenTTL:       getEnvDuration("IDP_MEMORY_TOKEN_TTL", 15*time.Minute),
		MemoryBcryptCost:     getEnvInt("IDP_MEMORY_BCRYPT_COST", 10),
	}
}

func (c IdentityProviderConfig) validate() error {
	switch c.Driver {
	case IdentityDriverMemory:
		if c.MemorySigningKey == "" {
			return invalid("IDP_MEMORY_SIGNING_KEY is required for the memory driver")
		}
	case IdentityDriverKeycloak:
		if c.KeycloakURL == "" || c.KeycloakRealm == "" || c.KeycloakClientID == "" {
			return invalid("KEYCLOAK_URL, KEYCLOAK_REALM and KEYCLOAK_CLIENT_ID are required")
		}
		if c.KeycloakClientSecret == "" {
			return invalid("KEYCLOAK_CLIENT_SECRET is required")
		}
	default:
		return invalid("IDP_DRIVER must be memory or keycloak").WithDetail("driver", c.Driver)
	}
	return nil
}
