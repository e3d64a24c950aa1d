package config

// ProvisioningConfig holds orchestrator policy.
type ProvisioningConfig struct {
	DefaultRole       string
	MinPasswordLength int

	// OperatorEmails receive orphaned-identity alerts.
	OperatorEmails []string

	// ReconcileOrphans enqueues a cleanup job whenever compensation fails.
	ReconcileOrphans bool
}

func loadProvisioningConfig() ProvisioningConfig {
	return ProvisioningConfig{
		DefaultRole:       getEnv("PROVISIONING_DEFAULT_ROLE", "viewer"),
		MinPasswordLength: getEnvInt("PROVISIONING_MIN_PASSWORD_LENGTH", 8),
		OperatorEmails:    getEnvStringSlice("PROVISIONING_OPERATOR_EMAILS", nil),
		ReconcileOrphans:  getEnvBool("PROVISIONING_RECONCILE_ORPHANS", true),
	}
}
