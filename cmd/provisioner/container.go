// Composition root for the provisioning API and the reconcile worker. This
// is the only place that knows about every module.
package main

import (
	"context"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/config"
	"github.com/Abraxas-365/provisioning/pkg/httpx"
	"github.com/Abraxas-365/provisioning/pkg/identity"
	"github.com/Abraxas-365/provisioning/pkg/identity/identityapi"
	"github.com/Abraxas-365/provisioning/pkg/identity/identityinfra"
	"github.com/Abraxas-365/provisioning/pkg/identity/identitysrv"
	"github.com/Abraxas-365/provisioning/pkg/jobx"
	"github.com/Abraxas-365/provisioning/pkg/jobx/jobxredis"
	"github.com/Abraxas-365/provisioning/pkg/logx"
	"github.com/Abraxas-365/provisioning/pkg/notifx"
	"github.com/Abraxas-365/provisioning/pkg/notifx/notifxconsole"
	"github.com/Abraxas-365/provisioning/pkg/notifx/notifxses"
	"github.com/Abraxas-365/provisioning/pkg/profile"
	"github.com/Abraxas-365/provisioning/pkg/profile/profileinfra"
	"github.com/Abraxas-365/provisioning/pkg/provisioning/provisioningapi"
	"github.com/Abraxas-365/provisioning/pkg/provisioning/provisioninginfra"
	"github.com/Abraxas-365/provisioning/pkg/provisioning/provisioningsrv"
	"github.com/redis/go-redis/v9"
)

// Container holds shared infrastructure and the wired modules.
type Container struct {
	Config *config.Config

	// Infrastructure
	Redis    *redis.Client
	Jobs     *jobx.Client
	jobsDone chan struct{}

	// Gateways
	IdentityProvider identity.Provider
	ProfileStore     profile.Store

	// Services
	Claims       *identitysrv.ClaimsManager
	Tokens       *identitysrv.TokenValidator
	Orchestrator *provisioningsrv.Orchestrator
	Reconciler   *provisioninginfra.Reconciler

	// HTTP
	AuthMiddleware       *identityapi.Middleware
	ClaimsHandlers       *identityapi.ClaimsHandlers
	ProvisioningHandlers *provisioningapi.Handlers
	// SignInHandlers is nil unless the in-memory provider is active.
	SignInHandlers *identityapi.SignInHandlers
}

func NewContainer(cfg *config.Config) *Container {
	logx.Info("🔧 Initializing application container...")

	c := &Container{Config: cfg}

	c.initInfrastructure()
	c.initGateways()
	c.initModules()

	logx.Info("✅ Application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure() {
	if !c.Config.Redis.Enabled {
		logx.Warn("  ⚠️ Redis disabled, orphans will not be reconciled automatically")
		return
	}

	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Address(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
		logx.Fatalf("Failed to connect to Redis: %v", err)
	}
	logx.Info("  ✅ Redis connected")

	jc := c.Config.Jobx
	c.Jobs = jobx.NewClient(jobxredis.NewRedisQueue(c.Redis),
		jobx.WithQueues(jc.Queues...),
		jobx.WithConcurrency(jc.Concurrency),
		jobx.WithPollInterval(jc.PollInterval),
		jobx.WithShutdownTimeout(jc.ShutdownTimeout),
		jobx.WithDequeueTimeout(jc.DequeueTimeout),
		jobx.WithDefaultRetryDelay(jc.DefaultRetryDelay),
		jobx.WithMaxRetries(jc.MaxRetries),
	)
	logx.Info("  ✅ Job queue configured")
}

// ---------------------------------------------------------------------------
// Gateways
// ---------------------------------------------------------------------------

func (c *Container) initGateways() {
	idp := c.Config.IdentityProvider
	remote := c.Config.Remote

	switch idp.Driver {
	case config.IdentityDriverKeycloak:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		kc, err := identityinfra.NewKeycloakProvider(ctx, identityinfra.KeycloakConfig{
			BaseURL:      idp.KeycloakURL,
			Realm:        idp.KeycloakRealm,
			ClientID:     idp.KeycloakClientID,
			ClientSecret: idp.KeycloakClientSecret,
			Audience:     idp.KeycloakAudience,
			Timeout:      remote.Timeout,
			RetryMax:     remote.RetryMax,
			RetryWaitMin: remote.RetryWaitMin,
			RetryWaitMax: remote.RetryWaitMax,
			Logger:       logx.GetDefaultLogger(),
		})
		if err != nil {
			logx.Fatalf("Failed to initialize Keycloak provider: %v", err)
		}
		c.IdentityProvider = kc
		logx.Infof("  ✅ Keycloak identity provider (realm: %s)", idp.KeycloakRealm)

	default:
		c.IdentityProvider = identityinfra.NewMemoryProvider(idp.MemorySigningKey,
			identityinfra.WithTokenTTL(idp.MemoryTokenTTL),
			identityinfra.WithBcryptCost(idp.MemoryBcryptCost),
			identityinfra.WithMinPasswordLength(c.Config.Provisioning.MinPasswordLength),
		)
		logx.Warn("  ⚠️ In-memory identity provider, identities are lost on restart")
	}

	client := httpx.NewClient(httpx.Options{
		Name:         "profile-store",
		BaseURL:      c.Config.ProfileStore.BaseURL,
		Timeout:      remote.Timeout,
		RetryMax:     remote.RetryMax,
		RetryWaitMin: remote.RetryWaitMin,
		RetryWaitMax: remote.RetryWaitMax,
		Logger:       logx.GetDefaultLogger(),
	})
	c.ProfileStore = profileinfra.NewHTTPStore(client, c.Config.ProfileStore.ServiceToken)
	logx.Infof("  ✅ Profile store at %s", c.Config.ProfileStore.BaseURL)
}

// ---------------------------------------------------------------------------
// Modules
// ---------------------------------------------------------------------------

func (c *Container) initModules() {
	logx.Info("📦 Initializing modules...")

	c.Claims = identitysrv.NewClaimsManager(c.IdentityProvider)
	c.Tokens = identitysrv.NewTokenValidator(c.IdentityProvider)

	opts := []provisioningsrv.Option{
		provisioningsrv.WithRemoteTimeout(c.Config.Remote.Timeout),
		provisioningsrv.WithDefaultRole(c.Config.Provisioning.DefaultRole),
		provisioningsrv.WithAuditService(provisioninginfra.NewLogxAuditService()),
	}
	if h := c.orphanHandlers(); len(h) > 0 {
		opts = append(opts, provisioningsrv.WithOrphanHandler(h))
	}
	c.Orchestrator = provisioningsrv.NewOrchestrator(c.IdentityProvider, c.Claims, c.ProfileStore, opts...)

	if c.Jobs != nil {
		c.Reconciler = provisioninginfra.NewReconciler(c.IdentityProvider, c.ProfileStore, c.Config.Remote.Timeout)
		c.Reconciler.Register(c.Jobs)
		logx.Info("  ✅ Reconcile worker registered")
	}

	c.AuthMiddleware = identityapi.NewMiddleware(c.Tokens)
	c.ClaimsHandlers = identityapi.NewClaimsHandlers(c.Claims)
	c.ProvisioningHandlers = provisioningapi.NewHandlers(c.Orchestrator)
	if mem, ok := c.IdentityProvider.(*identityinfra.MemoryProvider); ok {
		c.SignInHandlers = identityapi.NewSignInHandlers(mem)
	}
}

func (c *Container) orphanHandlers() provisioninginfra.OrphanHandlers {
	var handlers provisioninginfra.OrphanHandlers

	if c.Jobs != nil && c.Config.Provisioning.ReconcileOrphans {
		handlers = append(handlers, provisioninginfra.NewJobOrphanHandler(c.Jobs, c.Config.Jobx.MaxRetries))
	}

	notifier, err := provisioninginfra.NewOperatorNotifier(c.notifier(), c.Config.Provisioning.OperatorEmails)
	if err != nil {
		logx.Fatalf("Failed to initialize operator notifications: %v", err)
	}
	return append(handlers, notifier)
}

func (c *Container) notifier() *notifx.Client {
	nc := c.Config.Notifx

	var sender notifx.EmailSender
	switch nc.Provider {
	case "ses":
		p, err := notifxses.NewFromRegion(context.Background(), nc.AWSRegion)
		if err != nil {
			logx.Fatalf("Unable to load AWS SDK config: %v", err)
		}
		sender = p
		logx.Infof("  ✅ SES notifications (region: %s)", nc.AWSRegion)
	case "console":
		sender = notifxconsole.NewConsoleProvider()
		logx.Info("  ✅ Console notifications")
	default:
		logx.Fatalf("Unknown NOTIFX_PROVIDER: %s (use 'console' or 'ses')", nc.Provider)
	}
	return notifx.NewClient(sender, nc.FromAddress, nc.FromName)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (c *Container) StartBackgroundServices(ctx context.Context) {
	if c.Jobs == nil {
		return
	}
	logx.Info("🔄 Starting reconcile worker...")
	c.jobsDone = make(chan struct{})
	go func() {
		defer close(c.jobsDone)
		if err := c.Jobs.Start(ctx); err != nil {
			logx.Errorf("Job worker stopped: %v", err)
		}
	}()
}

func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	// The worker drains in-flight jobs once its context is cancelled.
	if c.jobsDone != nil {
		select {
		case <-c.jobsDone:
		case <-time.After(c.Config.Jobx.ShutdownTimeout):
			logx.Warn("  ⚠️ Reconcile worker did not stop in time")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		} else {
			logx.Info("  ✅ Redis connection closed")
		}
	}

	logx.Info("✅ Cleanup complete")
}
