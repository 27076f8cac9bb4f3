package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/narration-lab/internal/config"
	"github.com/narration-lab/internal/cover"
	"github.com/narration-lab/internal/logging"
	"github.com/narration-lab/internal/metrics"
	"github.com/narration-lab/internal/narrate"
	"github.com/narration-lab/internal/publish"
	"github.com/narration-lab/internal/source"
	"github.com/narration-lab/internal/voice"
	"github.com/narration-lab/llm"
)

var version = "dev"

var (
	configPath string
	logLevel   string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "narrator",
	Short: "Turn text into narrated WAV audio and cover art",
	Long: `narrator prepares text from Google Sheets, published Google Docs,
uploaded files or direct input, rewrites it for narration, and streams it
through Gemini text-to-speech into a playable WAV file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.Logging.Level = logLevel
		}
		// stdio MCP owns stdout
		if cmd.Name() == "mcp" {
			logging.InitTo(c.Logging.Level, "stderr")
		} else {
			logging.Init(c.Logging.Level)
		}
		cfg = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (or set NARRATOR_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd, speakCmd, coverCmd, inspectCmd, toolsCmd, mcpCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the wired pipelines.
type app struct {
	service *narrate.Service
	metrics *metrics.Metrics
	archive *voice.SidecarManager
}

// buildApp reads the key and prompt files and wires every pipeline from
// cfg. Archiving and Discord publishing stay off unless configured.
func buildApp(ctx context.Context, c *config.Config) (*app, error) {
	if err := c.LoadFiles(); err != nil {
		return nil, err
	}
	m := metrics.New()

	client, err := llm.NewClient(ctx, llm.Config{
		APIKey:            c.Gemini.APIKey,
		TextModel:         c.Gemini.TextModel,
		ImageModel:        c.Gemini.ImageModel,
		SystemPrompt:      c.Prompts.SystemPrompt,
		ImageInstructions: c.Prompts.ImageInstructions,
	})
	if err != nil {
		return nil, err
	}

	tts := voice.NewGeminiSource(c.Gemini.BaseURL, c.Gemini.APIKey, c.Gemini.TTSModel, c.Gemini.Timeout)
	synth := voice.NewSynthesizer(tts, c.Gemini.DefaultVoice)
	synth.Observer = narrate.TransitionObserver(m)

	svc := &narrate.Service{
		Loader:      source.NewLoader(c.Gemini.SheetsAPIKey, c.Gemini.Timeout),
		Rewriter:    client,
		Synthesizer: synth,
		Covers:      cover.NewService(client),
		Metrics:     m,
	}

	a := &app{service: svc, metrics: m}
	if sm := voice.NewSidecarManager(c.Archive.Dir, c.Archive.Locking); sm != nil {
		svc.Archive = sm
		a.archive = sm
	}
	if publish.Enabled(c.Discord.BotToken, c.Discord.ChannelID) {
		d, err := publish.NewDiscord(c.Discord.BotToken, c.Discord.ChannelID)
		if err != nil {
			return nil, err
		}
		svc.Publisher = d
		logging.Infow("narrator: discord publishing enabled", "channel_id", c.Discord.ChannelID, "channel", d.ChannelName())
	}
	return a, nil
}
