package platform

import (
	"context"
	"fmt"
	"sync/atomic"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/akinokuni/renderbridge/pkg/config"
	"github.com/akinokuni/renderbridge/pkg/logger"
)

// TelegramClient is send-only: it never long-polls for updates, it just
// pushes photos and text into chats by numeric chat id.
type TelegramClient struct {
	bot     *tgbotapi.BotAPI
	running atomic.Bool
}

func NewTelegramClient(cfg config.TelegramConfig) (*TelegramClient, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth failed: %w", err)
	}
	return &TelegramClient{bot: bot}, nil
}

func (c *TelegramClient) Name() string { return "telegram" }

func (c *TelegramClient) IsRunning() bool { return c.running.Load() }

func (c *TelegramClient) Start(ctx context.Context) error {
	c.running.Store(true)
	logger.InfoCF("telegram", "Telegram client started", map[string]interface{}{
		"username": c.bot.Self.UserName,
	})
	return nil
}

func (c *TelegramClient) Stop(ctx context.Context) error {
	c.running.Store(false)
	return nil
}

func (c *TelegramClient) Identity(ctx context.Context) (string, error) {
	if c.bot.Self.UserName == "" {
		return "", fmt.Errorf("telegram identity unavailable")
	}
	return c.bot.Self.UserName, nil
}

func (c *TelegramClient) SendGroupImage(ctx context.Context, groupID int64, img Image) error {
	return c.sendImage(groupID, img)
}

func (c *TelegramClient) SendPrivateImage(ctx context.Context, userID int64, img Image) error {
	return c.sendImage(userID, img)
}

func (c *TelegramClient) SendGroupText(ctx context.Context, groupID int64, text string) error {
	return c.sendText(groupID, text)
}

func (c *TelegramClient) SendPrivateText(ctx context.Context, userID int64, text string) error {
	return c.sendText(userID, text)
}

func (c *TelegramClient) sendImage(chatID int64, img Image) error {
	var file tgbotapi.RequestFileData
	switch {
	case img.URL != "":
		file = tgbotapi.FileURL(img.URL)
	case img.Path != "":
		file = tgbotapi.FilePath(img.Path)
	default:
		return fmt.Errorf("empty image reference")
	}

	photo := tgbotapi.NewPhoto(chatID, file)
	if _, err := c.bot.Send(photo); err != nil {
		return fmt.Errorf("telegram photo send failed: %w", err)
	}
	return nil
}

func (c *TelegramClient) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram message send failed: %w", err)
	}
	return nil
}
