package app

import (
	"context"
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/progression-backend/internal/certificates"
	"github.com/yungbote/progression-backend/internal/platform/logger"
	"github.com/yungbote/progression-backend/internal/realtime/bus"
	"github.com/yungbote/progression-backend/internal/temporalx"
)

// Clients are the external connections. Every field except CertStore may
// be nil when its backend is not configured.
type Clients struct {
	Bus       bus.Bus
	Temporal  temporalsdkclient.Client
	CertStore certificates.Store

	gcs *certificates.GCSStore
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	// Redis
	if cfg.RedisAddr != "" {
		b, err := bus.NewRedisBus(log, bus.RedisConfig{Addr: cfg.RedisAddr, Channel: cfg.RedisChannel})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis realtime bus: %w", err)
		}
		c.Bus = b
	}

	// Certificates
	if cfg.CertificateBucket != "" {
		gcs, err := certificates.NewGCSStore(ctx, log, certificates.GCSConfig{
			Bucket:        cfg.CertificateBucket,
			EmulatorHost:  cfg.StorageEmulator,
			PublicBaseURL: cfg.CertificateBaseURL,
		})
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init certificate bucket: %w", err)
		}
		c.gcs = gcs
		c.CertStore = gcs
	} else {
		local, err := certificates.NewLocalStore(cfg.CertificateDir)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init certificate dir: %w", err)
		}
		c.CertStore = local
	}

	// Temporal
	if cfg.Temporal.Enabled() {
		tc, err := temporalx.NewClient(ctx, log, cfg.Temporal)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init temporal client: %w", err)
		}
		c.Temporal = tc
	}

	return c, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.gcs != nil {
		_ = c.gcs.Close()
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
}
