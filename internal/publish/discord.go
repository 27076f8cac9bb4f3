// Package publish delivers finished narrations to a Discord channel.
package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/narration-lab/internal/logging"
	"github.com/narration-lab/internal/voice"
)

// session is the slice of *discordgo.Session used for delivery.
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// Meta describes the narration being posted.
type Meta struct {
	CorrelationID string
	Voice         string
}

// Result identifies the posted message.
type Result struct {
	ChannelID string
	Channel   string
	MessageID string
}

// Discord posts WAV attachments through the bot REST API. No gateway
// connection is opened.
type Discord struct {
	s         session
	channelID string

	mu           sync.Mutex
	channelCache map[string]cacheEntry
}

type cacheEntry struct {
	val    string
	expiry time.Time
}

// cacheTTL controls how long a cached channel name is valid.
var cacheTTL = 5 * time.Minute

// ErrDisabled is returned by NewDiscord when publishing is not configured.
var ErrDisabled = errors.New("discord publishing not configured")

// Enabled reports whether token and channelID are both set.
func Enabled(token, channelID string) bool {
	return strings.TrimSpace(token) != "" && strings.TrimSpace(channelID) != ""
}

// NewDiscord returns ErrDisabled when either token or channelID is empty.
func NewDiscord(token, channelID string) (*Discord, error) {
	if !Enabled(token, channelID) {
		return nil, ErrDisabled
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discordgo.New: %w", err)
	}
	return newDiscord(dg, channelID), nil
}

func newDiscord(s session, channelID string) *Discord {
	return &Discord{s: s, channelID: channelID, channelCache: make(map[string]cacheEntry)}
}

// ChannelName resolves the configured channel's name, cached for cacheTTL.
func (d *Discord) ChannelName() string {
	id := d.channelID
	d.mu.Lock()
	if e, ok := d.channelCache[id]; ok && time.Now().Before(e.expiry) {
		d.mu.Unlock()
		return e.val
	}
	d.mu.Unlock()
	ch, err := d.s.Channel(id)
	if err != nil || ch == nil {
		return ""
	}
	d.mu.Lock()
	d.channelCache[id] = cacheEntry{val: ch.Name, expiry: time.Now().Add(cacheTTL)}
	d.mu.Unlock()
	return ch.Name
}

// Publish uploads c as an attachment with a short caption.
func (d *Discord) Publish(ctx context.Context, c *voice.Container, meta Meta) (Result, error) {
	if d == nil {
		return Result{}, errors.New("discord publishing not configured")
	}
	caption := fmt.Sprintf("Narration ready (voice %s, %.1fs)", meta.Voice, c.Duration().Seconds())
	if meta.CorrelationID != "" {
		caption += " `" + meta.CorrelationID + "`"
	}
	msg, err := d.s.ChannelMessageSendComplex(d.channelID, &discordgo.MessageSend{
		Content: caption,
		Files: []*discordgo.File{{
			Name:        c.Filename(),
			ContentType: "audio/wav",
			Reader:      c.Reader(),
		}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		logging.WarnwCtx(ctx, "publish: discord upload failed", "channel_id", d.channelID, "err", err)
		return Result{}, fmt.Errorf("discord upload: %w", err)
	}
	res := Result{ChannelID: d.channelID, Channel: d.ChannelName(), MessageID: msg.ID}
	logging.InfowCtx(ctx, "publish: posted narration", "channel_id", res.ChannelID, "channel", res.Channel, "message_id", res.MessageID)
	return res, nil
}
