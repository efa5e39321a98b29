package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/akinokuni/renderbridge/pkg/config"
	"github.com/akinokuni/renderbridge/pkg/logger"
)

// DiscordClient delivers into channels (group targets) and DMs (private
// targets, resolved through UserChannelCreate). Target ids are snowflakes,
// carried as int64 at the dispatch boundary and stringified here.
type DiscordClient struct {
	session *discordgo.Session
	running atomic.Bool
}

func NewDiscordClient(cfg config.DiscordConfig) (*DiscordClient, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord session init failed: %w", err)
	}
	return &DiscordClient{session: session}, nil
}

func (c *DiscordClient) Name() string { return "discord" }

func (c *DiscordClient) IsRunning() bool { return c.running.Load() }

func (c *DiscordClient) Start(ctx context.Context) error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("discord gateway open failed: %w", err)
	}
	c.running.Store(true)
	logger.InfoC("discord", "Discord client started")
	return nil
}

func (c *DiscordClient) Stop(ctx context.Context) error {
	c.running.Store(false)
	return c.session.Close()
}

func (c *DiscordClient) Identity(ctx context.Context) (string, error) {
	if c.session.State != nil && c.session.State.User != nil {
		return c.session.State.User.ID, nil
	}
	user, err := c.session.User("@me")
	if err != nil {
		return "", fmt.Errorf("discord identity query failed: %w", err)
	}
	return user.ID, nil
}

func (c *DiscordClient) SendGroupImage(ctx context.Context, groupID int64, img Image) error {
	return c.sendImage(strconv.FormatInt(groupID, 10), img)
}

func (c *DiscordClient) SendPrivateImage(ctx context.Context, userID int64, img Image) error {
	channelID, err := c.dmChannel(userID)
	if err != nil {
		return err
	}
	return c.sendImage(channelID, img)
}

func (c *DiscordClient) SendGroupText(ctx context.Context, groupID int64, text string) error {
	_, err := c.session.ChannelMessageSend(strconv.FormatInt(groupID, 10), text)
	return err
}

func (c *DiscordClient) SendPrivateText(ctx context.Context, userID int64, text string) error {
	channelID, err := c.dmChannel(userID)
	if err != nil {
		return err
	}
	_, err = c.session.ChannelMessageSend(channelID, text)
	return err
}

func (c *DiscordClient) dmChannel(userID int64) (string, error) {
	channel, err := c.session.UserChannelCreate(strconv.FormatInt(userID, 10))
	if err != nil {
		return "", fmt.Errorf("discord DM channel create failed: %w", err)
	}
	return channel.ID, nil
}

func (c *DiscordClient) sendImage(channelID string, img Image) error {
	if img.URL != "" {
		msg := &discordgo.MessageSend{
			Embed: &discordgo.MessageEmbed{
				Image: &discordgo.MessageEmbedImage{URL: img.URL},
			},
		}
		_, err := c.session.ChannelMessageSendComplex(channelID, msg)
		return err
	}

	if img.Path == "" {
		return fmt.Errorf("empty image reference")
	}

	f, err := os.Open(img.Path)
	if err != nil {
		return fmt.Errorf("open image file: %w", err)
	}
	defer f.Close()

	msg := &discordgo.MessageSend{
		Files: []*discordgo.File{{
			Name:   filepath.Base(img.Path),
			Reader: f,
		}},
	}
	_, err = c.session.ChannelMessageSendComplex(channelID, msg)
	return err
}
