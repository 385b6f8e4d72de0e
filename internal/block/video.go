package block

import "strings"

// Video provider tags derived from URL patterns.
const (
	VideoYouTube = "youtube"
	VideoVimeo   = "vimeo"
	VideoLoom    = "loom"
	VideoWistia  = "wistia"
	VideoOther   = "other"
)

// DetectVideoProvider matches well-known hosting URL patterns; anything
// unrecognized is tagged "other" and embedded as a plain link.
func DetectVideoProvider(url string) string {
	u := strings.ToLower(url)
	switch {
	case strings.Contains(u, "youtube.com") || strings.Contains(u, "youtu.be"):
		return VideoYouTube
	case strings.Contains(u, "vimeo.com"):
		return VideoVimeo
	case strings.Contains(u, "loom.com"):
		return VideoLoom
	case strings.Contains(u, "wistia.com") || strings.Contains(u, "wistia.net"):
		return VideoWistia
	default:
		return VideoOther
	}
}
