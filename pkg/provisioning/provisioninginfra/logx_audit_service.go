package provisioninginfra

import (
	"context"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/logx"
	"github.com/Abraxas-365/provisioning/pkg/provisioning"
)

// LogxAuditService implements provisioning.AuditService on structured logs.
// The acting caller is taken from the auth context when there is one.
type LogxAuditService struct{}

func NewLogxAuditService() *LogxAuditService {
	return &LogxAuditService{}
}

func (s *LogxAuditService) LogProvisioned(ctx context.Context, id kernel.IdentityID, username string, role string) {
	s.entry(ctx, "identity_provisioned", logx.Fields{
		"identity_id": id,
		"username":    username,
		"role":        role,
	}).Info("Audit: identity provisioned")
}

func (s *LogxAuditService) LogUpdated(ctx context.Context, ref kernel.IdentityID, identityChanged bool, fields []string) {
	s.entry(ctx, "identity_updated", logx.Fields{
		"identity_ref":     ref,
		"identity_changed": identityChanged,
		"fields":           fields,
	}).Info("Audit: identity updated")
}

func (s *LogxAuditService) LogCredentialChanged(ctx context.Context, id kernel.IdentityID, selectorType provisioning.SelectorType) {
	s.entry(ctx, "credential_changed", logx.Fields{
		"identity_id":   id,
		"selector_type": selectorType,
	}).Info("Audit: credential changed")
}

func (s *LogxAuditService) LogDisabled(ctx context.Context, ref kernel.IdentityID) {
	s.entry(ctx, "identity_disabled", logx.Fields{"identity_ref": ref}).Info("Audit: identity disabled")
}

func (s *LogxAuditService) LogDeleted(ctx context.Context, ref kernel.IdentityID) {
	s.entry(ctx, "identity_deleted", logx.Fields{"identity_ref": ref}).Info("Audit: identity deleted")
}

func (s *LogxAuditService) LogCompensation(ctx context.Context, id kernel.IdentityID, step string, success bool) {
	e := s.entry(ctx, "compensation", logx.Fields{
		"identity_id": id,
		"step":        step,
		"success":     success,
	})
	if !success {
		e.Error("Audit: compensation failed")
		return
	}
	e.Info("Audit: compensation applied")
}

func (s *LogxAuditService) entry(ctx context.Context, event string, fields logx.Fields) *logx.Entry {
	e := logx.WithContext(ctx).WithFields(fields).WithFields(logx.Fields{
		"audit_event": event,
		"timestamp":   time.Now(),
	})
	if ac, ok := kernel.AuthContextFrom(ctx); ok {
		e = e.WithField("actor_id", ac.IdentityID)
	}
	return e
}
