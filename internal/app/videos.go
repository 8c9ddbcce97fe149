package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tubechat/pkg/domain"
	"tubechat/pkg/store"
	"tubechat/pkg/transcript"
	"tubechat/pkg/youtube"
)

// SaveVideoInput is the payload for the get-or-create video operation.
type SaveVideoInput struct {
	VideoID       string
	URL           string
	Title         string
	Transcript    string
	TranscriptRaw string
}

// CheckVideo looks up a cached transcript by YouTube id. No authentication:
// cache presence is not user data.
func (a *App) CheckVideo(videoID string) (domain.Video, bool, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return domain.Video{}, false, fmt.Errorf("%w: videoId required", ErrValidation)
	}
	return a.store.GetVideoByVideoID(videoID)
}

// SaveVideo caches a transcript record, get-or-create semantics: when the
// video is already cached (including a concurrent writer winning the race)
// the existing record is returned and the new transcript is discarded.
func (a *App) SaveVideo(identity domain.Identity, input SaveVideoInput) (domain.Video, error) {
	if _, err := a.requireUser(identity); err != nil {
		return domain.Video{}, err
	}
	videoID := strings.TrimSpace(input.VideoID)
	if videoID == "" {
		return domain.Video{}, fmt.Errorf("%w: videoId required", ErrValidation)
	}
	if strings.TrimSpace(input.Transcript) == "" {
		return domain.Video{}, fmt.Errorf("%w: transcript required", ErrValidation)
	}
	if existing, ok, err := a.store.GetVideoByVideoID(videoID); err != nil {
		return domain.Video{}, fmt.Errorf("check video: %w", err)
	} else if ok {
		return existing, nil
	}
	url := strings.TrimSpace(input.URL)
	if url == "" {
		url = youtube.WatchURL(videoID)
	}
	video := domain.Video{
		ID:            store.NewID(),
		VideoID:       videoID,
		URL:           url,
		Title:         strings.TrimSpace(input.Title),
		Transcript:    input.Transcript,
		TranscriptRaw: input.TranscriptRaw,
		CreatedAt:     time.Now().UTC(),
	}
	created, err := a.store.CreateVideo(video)
	if err != nil {
		return domain.Video{}, fmt.Errorf("create video: %w", err)
	}
	return created, nil
}

// FetchTranscript proxies the external transcript API. Only YouTube URLs are
// accepted, and concurrent fetches of the same URL are collapsed into one
// upstream call.
func (a *App) FetchTranscript(ctx context.Context, identity domain.Identity, videoURL string) (transcript.Result, error) {
	if _, err := a.requireUser(identity); err != nil {
		return transcript.Result{}, err
	}
	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		return transcript.Result{}, fmt.Errorf("%w: video_url required", ErrValidation)
	}
	if _, ok := youtube.ExtractVideoID(videoURL); !ok {
		return transcript.Result{}, fmt.Errorf("%w: not a YouTube video url", ErrValidation)
	}
	if a.transcripts == nil {
		return transcript.Result{}, fmt.Errorf("%w: transcript api not configured", ErrUpstream)
	}
	value, err, _ := a.transcriptGroup.Do(videoURL, func() (any, error) {
		return a.transcripts.Fetch(ctx, videoURL)
	})
	if err != nil {
		return transcript.Result{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return value.(transcript.Result), nil
}
