package content

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vytor/ceplayer/internal/estimate"
)

// Media types a manifest may declare.
const (
	MediaImages = "images"
	MediaVideo  = "video"
	MediaQuiz   = "quiz"
)

// Question is one quiz item. Correct is an option index for multiple_choice and
// image_select questions and a boolean for true_false.
type Question struct {
	Type        string   `json:"type"`
	Question    string   `json:"question"`
	Options     []string `json:"options,omitempty"`
	Images      []string `json:"images,omitempty"`
	Correct     any      `json:"correct"`
	Explanation string   `json:"explanation,omitempty"`
}

type Assets struct {
	Audio   string   `json:"audio,omitempty"`
	Images  []string `json:"images,omitempty"`
	Video   string   `json:"video,omitempty"`
	YouTube string   `json:"youtube,omitempty"`
}

// Tabs holds the three text panels shown beside the media.
type Tabs struct {
	Scenario   string `json:"scenario,omitempty"`
	Connection string `json:"connection,omitempty"`
	Law        string `json:"law,omitempty"`
}

// TabNames are the tab identifiers in display order.
var TabNames = []string{"scenario", "connection", "law"}

// Manifest mirrors manifest.json inside a block directory.
type Manifest struct {
	Title     string     `json:"title"`
	MediaType string     `json:"media_type"`
	Assets    Assets     `json:"assets"`
	Quiz      []Question `json:"quiz,omitempty"`
	Content   Tabs       `json:"content"`
	Citation  string     `json:"tdlr_citation,omitempty"`
}

// Block is a manifest resolved for serving: asset names become URLs under the block's
// base path and YouTube links become embed URLs.
type Block struct {
	Hour       int        `json:"hour"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	MediaType  string     `json:"media_type"`
	BasePath   string     `json:"base_path"`
	AudioURL   string     `json:"audio_url,omitempty"`
	ImageURLs  []string   `json:"image_urls"`
	VideoURL   string     `json:"video_url,omitempty"`
	YouTubeURL string     `json:"youtube_url,omitempty"`
	Quiz       []Question `json:"quiz,omitempty"`
	Content    Tabs       `json:"content"`
	Citation   string     `json:"citation,omitempty"`
}

// BasePath is the URL prefix of a block's assets.
func BasePath(hour int, blockID string) string {
	return fmt.Sprintf("/content/hour_%d/%s/", hour, blockID)
}

// Resolve turns a manifest into a servable block.
func (m *Manifest) Resolve(hour int, blockID string) *Block {
	base := BasePath(hour, blockID)
	b := &Block{
		Hour:       hour,
		ID:         blockID,
		Title:      m.Title,
		MediaType:  m.MediaType,
		BasePath:   base,
		ImageURLs:  make([]string, 0, len(m.Assets.Images)),
		YouTubeURL: YouTubeEmbedURL(m.Assets.YouTube),
		Quiz:       m.Quiz,
		Content:    m.Content,
		Citation:   m.Citation,
	}
	for _, img := range m.Assets.Images {
		if img != "" {
			b.ImageURLs = append(b.ImageURLs, assetURL(base, img))
		}
	}
	if m.Assets.Audio != "" {
		b.AudioURL = assetURL(base, m.Assets.Audio)
	}
	if m.Assets.Video != "" {
		b.VideoURL = assetURL(base, m.Assets.Video)
	}
	return b
}

// assetURL joins base with a relative asset name; absolute URLs pass through.
func assetURL(base, name string) string {
	if u, err := url.Parse(name); err == nil && u.IsAbs() {
		return name
	}
	return base + strings.TrimPrefix(name, "/")
}

// YouTubeEmbedURL converts youtu.be and watch?v= links to embed URLs. Embed URLs pass
// through; anything else yields "".
func YouTubeEmbedURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	var id string
	switch {
	case strings.Contains(raw, "youtu.be/"):
		id = strings.SplitN(strings.SplitN(raw, "youtu.be/", 2)[1], "?", 2)[0]
	case strings.Contains(raw, "watch?v="):
		id = strings.SplitN(strings.SplitN(raw, "watch?v=", 2)[1], "&", 2)[0]
	case strings.Contains(raw, "youtube.com/embed/"):
		return raw
	}
	id = strings.Trim(id, "/")
	if id == "" {
		return ""
	}
	return "https://www.youtube.com/embed/" + id
}

// HasVideo reports whether the block plays a video file or an embedded video.
func (b *Block) HasVideo() bool {
	return b.VideoURL != "" || b.YouTubeURL != ""
}

// Shape returns the estimator inputs. audioSeconds is the duration the player measured;
// it only counts when the block actually has audio. Quiz questions count only for quiz
// blocks.
func (b *Block) Shape(audioSeconds float64) estimate.BlockShape {
	s := estimate.BlockShape{
		ImageCount: len(b.ImageURLs),
		HasVideo:   b.HasVideo(),
	}
	if b.AudioURL != "" {
		s.AudioSeconds = audioSeconds
	}
	if b.MediaType == MediaQuiz {
		s.QuizQuestions = len(b.Quiz)
	}
	return s
}

// CyclesImages reports whether salon mode rotates this block's images.
func (b *Block) CyclesImages() bool {
	return len(b.ImageURLs) > 1 && !b.HasVideo()
}
