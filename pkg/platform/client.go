package platform

import (
	"context"
	"errors"
	"sync"

	"github.com/akinokuni/renderbridge/pkg/config"
	"github.com/akinokuni/renderbridge/pkg/logger"
)

// Image is a delivery-ready attachment reference: a remote URL or a local
// file path. Each client converts it to whatever its transport expects.
type Image struct {
	URL  string
	Path string
}

// Client is a handle onto one chat backend. The dispatcher holds a client
// only for the duration of a single send.
type Client interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool

	// Identity reports the backend's own account identifier (login id,
	// bot username, ...), used to pin delivery to a configured instance.
	Identity(ctx context.Context) (string, error)

	SendGroupImage(ctx context.Context, groupID int64, img Image) error
	SendPrivateImage(ctx context.Context, userID int64, img Image) error
	SendGroupText(ctx context.Context, groupID int64, text string) error
	SendPrivateText(ctx context.Context, userID int64, text string) error
}

var (
	// ErrNoClientAvailable: no running client at all.
	ErrNoClientAvailable = errors.New("no platform instance available")
	// ErrNoMatchingClient: a specific platform/identity was requested and
	// nothing matched it.
	ErrNoMatchingClient = errors.New("target platform instance not found")
)

// Registry owns the configured platform clients.
type Registry struct {
	mu      sync.RWMutex
	clients []Client
}

// NewRegistry instantiates every enabled platform client. A client that
// fails to construct is logged and skipped; the others still register.
func NewRegistry(cfg config.PlatformsConfig) *Registry {
	r := &Registry{}

	if cfg.OneBot.Enabled && cfg.OneBot.WSUrl != "" {
		r.Register(NewOneBotClient(cfg.OneBot))
		logger.InfoC("platform", "OneBot client registered")
	}

	if cfg.Telegram.Enabled && cfg.Telegram.Token != "" {
		tg, err := NewTelegramClient(cfg.Telegram)
		if err != nil {
			logger.ErrorCF("platform", "Failed to initialize Telegram client", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			r.Register(tg)
			logger.InfoC("platform", "Telegram client registered")
		}
	}

	if cfg.Discord.Enabled && cfg.Discord.Token != "" {
		dc, err := NewDiscordClient(cfg.Discord)
		if err != nil {
			logger.ErrorCF("platform", "Failed to initialize Discord client", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			r.Register(dc)
			logger.InfoC("platform", "Discord client registered")
		}
	}

	return r
}

func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = append(r.clients, c)
}

func (r *Registry) Clients() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Client, len(r.clients))
	copy(out, r.clients)
	return out
}

func (r *Registry) StartAll(ctx context.Context) {
	for _, c := range r.Clients() {
		logger.InfoCF("platform", "Starting platform client", map[string]interface{}{
			"platform": c.Name(),
		})
		if err := c.Start(ctx); err != nil {
			logger.ErrorCF("platform", "Failed to start platform client", map[string]interface{}{
				"platform": c.Name(),
				"error":    err.Error(),
			})
		}
	}
}

func (r *Registry) StopAll(ctx context.Context) {
	for _, c := range r.Clients() {
		if err := c.Stop(ctx); err != nil {
			logger.ErrorCF("platform", "Error stopping platform client", map[string]interface{}{
				"platform": c.Name(),
				"error":    err.Error(),
			})
		}
	}
}

// Select picks the delivery client. With a configured platform name or
// self-identifier it returns the first running client whose name and
// identity match; otherwise the first running client wins.
func (r *Registry) Select(ctx context.Context, platformName, selfID string) (Client, error) {
	pinned := platformName != "" || selfID != ""

	for _, c := range r.Clients() {
		if !c.IsRunning() {
			continue
		}
		if platformName != "" && c.Name() != platformName {
			continue
		}
		if selfID != "" {
			id, err := c.Identity(ctx)
			if err != nil {
				logger.WarnCF("platform", "Identity query failed, skipping client", map[string]interface{}{
					"platform": c.Name(),
					"error":    err.Error(),
				})
				continue
			}
			if id != selfID {
				continue
			}
		}
		return c, nil
	}

	if pinned {
		return nil, ErrNoMatchingClient
	}
	return nil, ErrNoClientAvailable
}
