package certificates

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/progression-backend/internal/platform/logger"
)

// Issuer renders a certificate and stores it. Keys are stable per actor and
// badge, so a retried issue overwrites the same object.
type Issuer struct {
	log      *logger.Logger
	renderer *Renderer
	store    Store
}

func NewIssuer(baseLog *logger.Logger, renderer *Renderer, store Store) *Issuer {
	return &Issuer{log: baseLog.With("service", "CertificateIssuer"), renderer: renderer, store: store}
}

func ObjectKey(actorID, badgeID string) string {
	return fmt.Sprintf("certificates/%s/%s.png", strings.TrimSpace(actorID), strings.TrimSpace(badgeID))
}

func (i *Issuer) Issue(ctx context.Context, d CertificateData) (string, error) {
	if i == nil || i.renderer == nil || i.store == nil {
		return "", fmt.Errorf("certificate issuer is not configured")
	}
	png, err := i.renderer.Render(d)
	if err != nil {
		return "", fmt.Errorf("render certificate: %w", err)
	}
	url, err := i.store.Put(ctx, ObjectKey(d.ActorID, d.BadgeID), png)
	if err != nil {
		return "", fmt.Errorf("store certificate: %w", err)
	}
	i.log.Info("certificate issued", "actor_id", d.ActorID, "badge_id", d.BadgeID, "bytes", len(png))
	return url, nil
}
