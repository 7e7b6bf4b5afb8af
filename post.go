package magstand

import (
	"encoding/json"
	"strings"
	"time"
)

// Membership tiers. A post's tier decides who may read its full content.
const (
	TierPublic  = 0 // readable by anyone
	TierLogin   = 1 // requires a logged-in session
	TierPremium = 2 // requires an active premium subscription

	// TierUnassigned marks a normalized post whose tier has not been decided
	// yet. The tier assigner replaces it before the post reaches the store.
	TierUnassigned = -1
)

// DefaultCategory is used when the remote record carries no category.
const DefaultCategory = "Uncategorized"

// Post is the canonical article record persisted by the Store.
type Post struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Slug            string `json:"slug"`
	Excerpt         string `json:"excerpt"`
	Content         string `json:"content"`
	Image           string `json:"image,omitempty"`
	Category        string `json:"category"`
	Author          string `json:"author,omitempty"`
	AuthorImage     string `json:"authorImage,omitempty"`
	Date            string `json:"date"`
	Modified        string `json:"modified"`
	Views           int64  `json:"views"`
	Saved           bool   `json:"saved"`
	MembershipLevel int    `json:"membership_level"`
}

// RawPost is the wire shape of a post as returned by the content API.
// WordPress installations disagree on field shapes: `title`, `excerpt` and
// `content` arrive either as plain strings or as {"rendered": "..."} objects,
// `author` as a string or an embedded object, and several fields may be
// missing entirely. All of that is absorbed here so the rest of the engine
// only ever sees the canonical Post.
type RawPost struct {
	ID              int64     `json:"id"`
	Title           textField `json:"title"`
	Slug            string    `json:"slug"`
	Excerpt         textField `json:"excerpt"`
	Content         textField `json:"content"`
	Image           nameField `json:"image"`
	Category        nameField `json:"category"`
	Author          nameField `json:"author"`
	AuthorImage     nameField `json:"authorImage"`
	Date            string    `json:"date"`
	Modified        string    `json:"modified"`
	Views           *int64    `json:"views"`
	MembershipLevel *int      `json:"membership_level"`
}

// Normalize converts a raw remote record into the canonical Post shape,
// defaulting missing fields explicitly. Posts without a declared tier come
// out with TierUnassigned; the saved flag is locally owned and always starts
// false for remote records.
func (r RawPost) Normalize() Post {
	p := Post{
		ID:          r.ID,
		Title:       r.Title.value,
		Slug:        r.Slug,
		Excerpt:     r.Excerpt.value,
		Content:     r.Content.value,
		Image:       r.Image.value,
		Category:    strings.TrimSpace(r.Category.value),
		Author:      r.Author.value,
		AuthorImage: r.AuthorImage.value,
		Date:        r.Date,
		Modified:    r.Modified,
	}
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	if r.Views != nil {
		p.Views = *r.Views
	}
	if r.MembershipLevel != nil && *r.MembershipLevel >= TierPublic && *r.MembershipLevel <= TierPremium {
		p.MembershipLevel = *r.MembershipLevel
	} else {
		p.MembershipLevel = TierUnassigned
	}
	return p
}

// textField decodes a JSON value that is either a plain string or a
// WordPress-style {"rendered": "..."} object.
type textField struct {
	value string
}

func (f *textField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.value = s
		return nil
	}
	var obj struct {
		Rendered string `json:"rendered"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		f.value = obj.Rendered
		return nil
	}
	// Unknown shape: treat as absent rather than failing the whole record.
	f.value = ""
	return nil
}

func (f textField) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.value)
}

// nameField decodes a JSON value that is either a plain string, null, or an
// embedded object carrying a "name" (author) or "url"/"source_url" (media).
type nameField struct {
	value string
}

func (f *nameField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.value = s
		return nil
	}
	var obj struct {
		Name      string `json:"name"`
		URL       string `json:"url"`
		SourceURL string `json:"source_url"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		switch {
		case obj.Name != "":
			f.value = obj.Name
		case obj.SourceURL != "":
			f.value = obj.SourceURL
		default:
			f.value = obj.URL
		}
		return nil
	}
	f.value = ""
	return nil
}

func (f nameField) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.value)
}

// timestampLayouts are the formats the content API has been observed to emit
// for date/modified fields, most specific first.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp converts a remote timestamp string to Unix seconds.
// Returns 0 when the string matches none of the known layouts; admission
// then falls back to lexical comparison of the raw strings.
func parseTimestamp(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix()
		}
	}
	return 0
}

// Teaser returns a truncated preview of the post content for readers who are
// not entitled to the full article. HTML tags are stripped so the teaser is
// safe to show as plain text.
func (p Post) Teaser(maxRunes int) string {
	text := stripTags(p.Content)
	if text == "" {
		text = stripTags(p.Excerpt)
	}
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= maxRunes {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}

// stripTags removes HTML tags from rendered article bodies. This is a
// display helper for teasers only; full content is passed through verbatim.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
