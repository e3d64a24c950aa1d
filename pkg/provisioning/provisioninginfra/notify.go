package provisioninginfra

import (
	"context"
	"errors"

	"github.com/Abraxas-365/provisioning/pkg/logx"
	"github.com/Abraxas-365/provisioning/pkg/notifx"
	"github.com/Abraxas-365/provisioning/pkg/provisioning"
)

const orphanAlertTemplate = "orphaned_identity"

const orphanAlertText = `An identity was left without a profile and needs reconciliation.

Identity:    {{.IdentityID}}
Operation:   {{.Operation}}
Failed step: {{.FailedStep}}
Detected at: {{.DetectedAt.Format "2006-01-02T15:04:05Z07:00"}}

Cause:
{{.Cause}}
`

// OperatorNotifier emails operators about orphaned identities.
type OperatorNotifier struct {
	client     *notifx.Client
	recipients []string
}

func NewOperatorNotifier(client *notifx.Client, recipients []string) (*OperatorNotifier, error) {
	if err := client.RegisterTemplate(orphanAlertTemplate, orphanAlertText); err != nil {
		return nil, err
	}
	return &OperatorNotifier{client: client, recipients: recipients}, nil
}

func (n *OperatorNotifier) HandleOrphan(ctx context.Context, orphan provisioning.Orphan) error {
	if len(n.recipients) == 0 {
		logx.WithContext(ctx).WithField("identity_id", orphan.IdentityID).
			Warn("no operator recipients configured for orphan alerts")
		return nil
	}
	return n.client.SendTemplatedEmail(ctx, orphanAlertTemplate, orphan, notifx.EmailMessage{
		To:      n.recipients,
		Subject: "Orphaned identity " + orphan.IdentityID.String(),
		Tags:    map[string]string{"kind": "orphaned_identity"},
	})
}

// OrphanHandlers hands each orphan to every handler, even when an earlier
// one fails.
type OrphanHandlers []provisioning.OrphanHandler

func (hs OrphanHandlers) HandleOrphan(ctx context.Context, orphan provisioning.Orphan) error {
	var errs []error
	for _, h := range hs {
		if err := h.HandleOrphan(ctx, orphan); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
