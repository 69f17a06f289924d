package models

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/mymmrac/telego"
)

// MediaRefsFromMessage extracts image references from a Telegram message in
// display order. A photo contributes only its largest size; documents count
// when their MIME type is an image.
func MediaRefsFromMessage(msg telego.Message) []MediaRef {
	var refs []MediaRef
	if best, ok := largestPhoto(msg.Photo); ok {
		refs = append(refs, MediaRef{
			FileID:       best.FileID,
			FileUniqueID: best.FileUniqueID,
			Kind:         MediaPhoto,
			Width:        best.Width,
			Height:       best.Height,
		})
	}
	if doc := msg.Document; doc != nil && doc.FileID != "" && strings.HasPrefix(doc.MimeType, "image/") {
		refs = append(refs, MediaRef{
			FileID:       doc.FileID,
			FileUniqueID: doc.FileUniqueID,
			Kind:         MediaDocument,
		})
	}
	return refs
}

// largestPhoto picks the best size of a photo. Telegram orders sizes from
// smallest to largest, so the last entry wins unless a later one is smaller.
func largestPhoto(sizes []telego.PhotoSize) (telego.PhotoSize, bool) {
	var best telego.PhotoSize
	found := false
	for _, s := range sizes {
		if s.FileID == "" {
			continue
		}
		if !found || s.Width*s.Height >= best.Width*best.Height {
			best = s
			found = true
		}
	}
	return best, found
}

// legacyPayload covers stored payload shapes written by other importers:
// Bot API (media_group_id) and MTProto exports (grouped_id).
type legacyPayload struct {
	MediaGroupID string          `json:"media_group_id"`
	GroupedID    json.RawMessage `json:"grouped_id"`
}

// GroupIDFromPayload reads the album identifier from a stored raw payload.
// It returns "" when the payload has none or cannot be decoded.
func GroupIDFromPayload(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var p legacyPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ""
	}
	if p.MediaGroupID != "" {
		return p.MediaGroupID
	}
	g := strings.Trim(strings.TrimSpace(string(p.GroupedID)), `"`)
	if g == "" || g == "null" || g == "0" {
		return ""
	}
	return g
}

// MediaRefsFromPayload decodes a stored Bot API message payload and extracts
// its media references. Undecodable payloads yield no references.
func MediaRefsFromPayload(raw []byte) []MediaRef {
	if len(raw) == 0 {
		return nil
	}
	var msg telego.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil
	}
	return MediaRefsFromMessage(msg)
}
