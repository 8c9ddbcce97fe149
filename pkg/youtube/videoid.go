// Package youtube extracts video ids from the URL shapes users paste.
package youtube

import (
	"regexp"
	"strings"
)

// Video ids are 11 characters of base64url alphabet. The pattern accepts
// watch?v=, youtu.be/, embed/, shorts/, live/, and /watch/ path forms, with
// or without scheme and www.
var videoIDPattern = regexp.MustCompile(`(?i)(?:youtube\.com/(?:watch\?(?:[^#\s]*&)?v=|embed/|shorts/|live/|watch/)|youtu\.be/)([A-Za-z0-9_-]{11})`)

// ExtractVideoID returns the video id embedded in url, or false when the
// input is not a recognizable YouTube video URL.
func ExtractVideoID(url string) (string, bool) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", false
	}
	match := videoIDPattern.FindStringSubmatch(url)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// WatchURL builds the canonical watch URL for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
