package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/menosai/menos/internal/fetchers"
	"github.com/menosai/menos/internal/urlclass"
)

func newFetchVideoCmd(log *slog.Logger) *cobra.Command {
	var showTranscript bool

	cmd := &cobra.Command{
		Use:   "fetch-video <url-or-id>",
		Short: "Fetch YouTube metadata and transcript without ingesting",
		Long: `fetch-video hits the YouTube Data API and transcript endpoint directly,
for inspecting a video before deciding whether to run ingest against it. It
does not write anything to storage.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return newUsageError("fetch-video requires exactly one URL or video ID argument")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetchVideo(cmd.Context(), log, args[0], showTranscript)
		},
	}

	cmd.Flags().BoolVar(&showTranscript, "transcript", false, "print the full transcript instead of just its length")
	return cmd
}

func runFetchVideo(ctx context.Context, log *slog.Logger, raw string, showTranscript bool) error {
	videoID := raw
	if class, err := urlclass.Classify(raw); err == nil && class.Kind == urlclass.KindYouTube {
		videoID = class.Identifier
	}

	cfg := loadConfig()
	client := fetchers.NewYouTubeClient(cfg.YouTubeAPIKey)

	meta, err := client.FetchMetadata(ctx, videoID)
	if err != nil {
		return fmt.Errorf("fetch metadata: %w", err)
	}
	fmt.Printf("video_id=%s title=%q channel=%q duration_seconds=%d\n",
		videoID, meta.Title, meta.ChannelTitle, meta.DurationSeconds)

	transcript, err := client.FetchTranscript(ctx, videoID)
	if err != nil {
		return fmt.Errorf("fetch transcript: %w", err)
	}
	if showTranscript {
		fmt.Println(transcript)
		return nil
	}
	fmt.Printf("transcript_chars=%d\n", len(transcript))
	return nil
}
