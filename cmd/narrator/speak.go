package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/narration-lab/internal/cover"
	"github.com/narration-lab/internal/source"
	"github.com/narration-lab/internal/voice"
	"github.com/narration-lab/llm"
)

var (
	speakText    string
	speakFile    string
	speakVoice   string
	speakOut     string
	speakRewrite bool
)

var speakCmd = &cobra.Command{
	Use:   "speak",
	Short: "Narrate text from a flag, a .txt/.docx file or stdin into a WAV file",
	Example: `  narrator speak --text "Hello there" --voice Puck
  narrator speak --file chapter.docx --rewrite -o chapter.wav
  echo "Hi" | narrator speak`,
	RunE: runSpeak,
}

var (
	coverText   string
	coverPrompt string
	coverStyle  string
	coverAspect string
	coverRes    string
	coverOut    string
)

var coverCmd = &cobra.Command{
	Use:   "cover",
	Short: "Generate a cover image inspired by text",
	RunE:  runCover,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE.wav",
	Short: "Print the header fields of a WAV file and check them against its size",
	Args:  cobra.ExactArgs(1),
	// no upstream access needed
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runInspect,
}

func init() {
	speakCmd.Flags().StringVarP(&speakText, "text", "t", "", "text to narrate")
	speakCmd.Flags().StringVarP(&speakFile, "file", "f", "", ".txt or .docx file to narrate")
	speakCmd.Flags().StringVar(&speakVoice, "voice", "", "prebuilt voice name (default from config)")
	speakCmd.Flags().StringVarP(&speakOut, "output", "o", "", "output path (default speech_<ms>.wav)")
	speakCmd.Flags().BoolVar(&speakRewrite, "rewrite", false, "run the text through the narration prompt first")

	coverCmd.Flags().StringVarP(&coverText, "text", "t", "", "text the cover is inspired by")
	coverCmd.Flags().StringVar(&coverPrompt, "prompt", "", "custom prompt used instead of text")
	coverCmd.Flags().StringVar(&coverStyle, "style", cover.DefaultStyle, "art style")
	coverCmd.Flags().StringVar(&coverAspect, "aspect", "1:1", "aspect ratio: "+strings.Join(cover.AspectRatios, ", "))
	coverCmd.Flags().StringVar(&coverRes, "resolution", string(cover.ResolutionStandard), "standard, hd or 4k")
	coverCmd.Flags().StringVarP(&coverOut, "output", "o", "cover.png", "output path")
}

func speakSource(stdin io.Reader) (source.Request, error) {
	switch {
	case speakFile != "":
		data, err := os.ReadFile(speakFile)
		if err != nil {
			return source.Request{}, err
		}
		return source.Request{Method: source.MethodFile, FileName: speakFile, FileData: data}, nil
	case speakText != "":
		return source.Request{Method: source.MethodDirect, Text: speakText}, nil
	}
	b, err := io.ReadAll(io.LimitReader(stdin, source.MaxFileBytes))
	if err != nil {
		return source.Request{}, err
	}
	return source.Request{Method: source.MethodDirect, Text: string(b)}, nil
}

func runSpeak(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	req, err := speakSource(cmd.InOrStdin())
	if err != nil {
		return err
	}

	var text string
	if speakRewrite {
		p, err := a.service.PrepareText(ctx, req)
		if err != nil {
			return fmt.Errorf("prepare text: %s", llm.Message(err))
		}
		text = p.Processed
	} else if text, err = a.service.Loader.Load(ctx, req); err != nil {
		return err
	}

	n, err := a.service.Narrate(ctx, text, speakVoice)
	if err != nil {
		return err
	}
	out := speakOut
	if out == "" {
		out = n.Container.Filename()
	}
	if err := voice.SaveFileAtomic(out, n.Container.Bytes(), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\tvoice=%s\tduration=%s\tcorrelation_id=%s\n",
		out, n.Voice, n.Container.Duration().Round(time.Millisecond), n.CorrelationID)
	return nil
}

func runCover(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	img, err := a.service.Cover(ctx, cover.Request{
		Text:         coverText,
		CustomPrompt: coverPrompt,
		Style:        coverStyle,
		AspectRatio:  coverAspect,
		Resolution:   cover.Resolution(coverRes),
	})
	if err != nil {
		return fmt.Errorf("cover: %s", llm.Message(err))
	}
	if coverOut == "-" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(img.Data))
		return err
	}
	if err := voice.SaveFileAtomic(coverOut, img.Data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\nprompt: %s\n", coverOut, img.MIMEType, img.Prompt)
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := voice.Inspect(f)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "format:      %d\n", info.AudioFormat)
	fmt.Fprintf(w, "channels:    %d\n", info.NumChannels)
	fmt.Fprintf(w, "sample rate: %d Hz\n", info.SampleRate)
	fmt.Fprintf(w, "bits:        %d\n", info.BitsPerSample)
	fmt.Fprintf(w, "data:        %d bytes declared, %d present\n", info.DataSize, info.DataRead)
	fmt.Fprintf(w, "duration:    %s\n", info.Duration())
	if !info.Consistent() {
		return fmt.Errorf("%s: header sizes do not match file contents", args[0])
	}
	fmt.Fprintln(w, "consistent:  yes")
	return nil
}
