package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/akinokuni/renderbridge/pkg/config"
	"github.com/akinokuni/renderbridge/pkg/logger"
	"github.com/akinokuni/renderbridge/pkg/platform"
	"github.com/akinokuni/renderbridge/pkg/render"
)

const (
	TargetGroup   = "group"
	TargetPrivate = "private"
)

// Dispatcher resolves a platform client and performs exactly one send
// attempt per call. Failures are reported, never retried.
type Dispatcher struct {
	registry *platform.Registry
	cfg      config.DeliveryConfig
}

func NewDispatcher(registry *platform.Registry, cfg config.DeliveryConfig) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		cfg:      cfg,
	}
}

// Deliver sends the rendered artifact as an image message to the target.
func (d *Dispatcher) Deliver(ctx context.Context, targetType, targetID string, artifact render.Artifact) error {
	client, id, err := d.resolve(ctx, targetType, targetID)
	if err != nil {
		return err
	}

	img, err := normalizeArtifact(artifact)
	if err != nil {
		return err
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	switch targetType {
	case TargetGroup:
		err = client.SendGroupImage(ctx, id, img)
	case TargetPrivate:
		err = client.SendPrivateImage(ctx, id, img)
	}
	if err != nil {
		return fmt.Errorf("image send to %s:%s via %s failed: %w", targetType, targetID, client.Name(), err)
	}

	logger.InfoCF("dispatch", "Image delivered", map[string]interface{}{
		"platform": client.Name(),
		"target":   targetType + ":" + targetID,
	})
	return nil
}

// DeliverText is the one-shot plain-text downgrade used when image delivery
// fails after a successful render.
func (d *Dispatcher) DeliverText(ctx context.Context, targetType, targetID, text string) error {
	client, id, err := d.resolve(ctx, targetType, targetID)
	if err != nil {
		return err
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	switch targetType {
	case TargetGroup:
		err = client.SendGroupText(ctx, id, text)
	case TargetPrivate:
		err = client.SendPrivateText(ctx, id, text)
	}
	if err != nil {
		return fmt.Errorf("text send to %s:%s via %s failed: %w", targetType, targetID, client.Name(), err)
	}

	logger.InfoCF("dispatch", "Text fallback delivered", map[string]interface{}{
		"platform": client.Name(),
		"target":   targetType + ":" + targetID,
	})
	return nil
}

func (d *Dispatcher) resolve(ctx context.Context, targetType, targetID string) (platform.Client, int64, error) {
	if targetType != TargetGroup && targetType != TargetPrivate {
		return nil, 0, fmt.Errorf("unsupported target type %q", targetType)
	}

	id, err := strconv.ParseInt(targetID, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("target id %q is not numeric: %w", targetID, err)
	}

	client, err := d.registry.Select(ctx, d.cfg.Platform, d.cfg.SelfID)
	if err != nil {
		return nil, 0, err
	}

	return client, id, nil
}

func (d *Dispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(d.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// normalizeArtifact existence-checks local artifacts and absolutizes their
// paths before handing them to a client.
func normalizeArtifact(artifact render.Artifact) (platform.Image, error) {
	if artifact.Remote() {
		return platform.Image{URL: artifact.URL}, nil
	}

	if artifact.Path == "" {
		return platform.Image{}, fmt.Errorf("artifact has neither url nor path")
	}

	abs, err := filepath.Abs(artifact.Path)
	if err != nil {
		abs = artifact.Path
	}
	if _, err := os.Stat(abs); err != nil {
		return platform.Image{}, fmt.Errorf("rendered artifact missing: %w", err)
	}

	return platform.Image{Path: abs}, nil
}
