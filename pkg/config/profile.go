package config

// ProfileStoreConfig points the orchestrator at the relational profile service.
type ProfileStoreConfig struct {
	BaseURL string

	// ServiceToken authenticates the orchestrator to the profile service.
	// When empty the caller's bearer token is forwarded instead, which the
	// reconcile worker does not have.
	ServiceToken string
	// Port is where cmd/profilesvc listens.
	Port string
}

func loadProfileStoreConfig() ProfileStoreConfig {
	return ProfileStoreConfig{
		BaseURL:      getEnv("PROFILE_STORE_URL", "http://localhost:8082"),
		ServiceToken: getEnv("PROFILE_STORE_SERVICE_TOKEN", ""),
		Port:         getEnv("PROFILE_SERVICE_PORT", "8082"),
	}
}
