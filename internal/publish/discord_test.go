package publish

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narration-lab/internal/voice"
)

type fakeSession struct {
	sent         *discordgo.MessageSend
	sentTo       string
	attachment   []byte
	sendErr      error
	channelCalls int
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sentTo, f.sent = channelID, data
	f.attachment, _ = io.ReadAll(data.Files[0].Reader)
	return &discordgo.Message{ID: "m-1", ChannelID: channelID}, nil
}

func (f *fakeSession) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.channelCalls++
	return &discordgo.Channel{ID: channelID, Name: "narrations"}, nil
}

func TestPublishUploadsWAV(t *testing.T) {
	fs := &fakeSession{}
	d := newDiscord(fs, "chan-1")
	c := voice.NewContainer(make([]byte, 48000), voice.GeminiFormat, time.UnixMilli(1000))

	res, err := d.Publish(context.Background(), c, Meta{CorrelationID: "cid-7", Voice: "Kore"})
	require.NoError(t, err)
	assert.Equal(t, Result{ChannelID: "chan-1", Channel: "narrations", MessageID: "m-1"}, res)
	assert.Equal(t, "chan-1", fs.sentTo)
	assert.Equal(t, "Narration ready (voice Kore, 1.0s) `cid-7`", fs.sent.Content)
	require.Len(t, fs.sent.Files, 1)
	assert.Equal(t, "speech_1000.wav", fs.sent.Files[0].Name)
	assert.Equal(t, "audio/wav", fs.sent.Files[0].ContentType)
	assert.Equal(t, c.Bytes(), fs.attachment)
}

func TestChannelNameIsCached(t *testing.T) {
	fs := &fakeSession{}
	d := newDiscord(fs, "chan-1")
	assert.Equal(t, "narrations", d.ChannelName())
	assert.Equal(t, "narrations", d.ChannelName())
	assert.Equal(t, 1, fs.channelCalls)
}

func TestPublishError(t *testing.T) {
	d := newDiscord(&fakeSession{sendErr: errors.New("HTTP 403 Forbidden")}, "chan-1")
	c := voice.NewContainer([]byte{0, 0}, voice.GeminiFormat, time.Now())
	_, err := d.Publish(context.Background(), c, Meta{Voice: "Kore"})
	assert.ErrorContains(t, err, "403")
}

func TestNewDiscordDisabled(t *testing.T) {
	assert.False(t, Enabled("", "chan"))
	assert.False(t, Enabled("tok", "  "))
	assert.True(t, Enabled("tok", "chan"))
	d, err := NewDiscord("", "chan")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Nil(t, d)
	var nilD *Discord
	_, err = nilD.Publish(context.Background(), nil, Meta{})
	assert.Error(t, err)
}
