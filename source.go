package fakecheck

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceKind tells ImageLoader how to obtain the bitmap.
type SourceKind int

const (
	SourceUnknown SourceKind = iota
	SourcePath
	SourceURL
	SourceBytes
	SourceImage
)

func (k SourceKind) String() string {
	switch k {
	case SourcePath:
		return "path"
	case SourceURL:
		return "url"
	case SourceBytes:
		return "bytes"
	case SourceImage:
		return "image"
	default:
		return "unknown"
	}
}

// ImageSource references an image by file path, remote URL, raw bytes or an
// already-decoded bitmap. ID is an optional caller label used in reports.
type ImageSource struct {
	ID    string
	Kind  SourceKind
	Path  string
	URL   string
	Data  []byte
	Image image.Image
}

// SourceFromPath references a local file.
func SourceFromPath(path string) ImageSource {
	return ImageSource{ID: path, Kind: SourcePath, Path: path}
}

// SourceFromURL references a remote image fetched over HTTP(S).
func SourceFromURL(rawURL string) ImageSource {
	return ImageSource{ID: rawURL, Kind: SourceURL, URL: rawURL}
}

// SourceFromBytes references encoded image bytes held in memory.
func SourceFromBytes(id string, data []byte) ImageSource {
	return ImageSource{ID: id, Kind: SourceBytes, Data: data}
}

// SourceFromImage wraps an already-decoded bitmap.
func SourceFromImage(id string, img image.Image) ImageSource {
	return ImageSource{ID: id, Kind: SourceImage, Image: img}
}

// InlineIDPrefix starts the ID ParseSource derives for data URL sources.
const InlineIDPrefix = "inline:"

// inlineID names inline bytes by a short content digest.
func inlineID(data []byte) string {
	sum := sha256.Sum256(data)
	return InlineIDPrefix + hex.EncodeToString(sum[:6])
}

// ParseSource treats http:// and https:// strings as URLs, base64 data URLs
// as inline bytes named by content digest and anything else as a path. A
// malformed data URL yields a bytes source with no data, which fails to load
// as "empty".
func ParseSource(s string) ImageSource {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return SourceFromURL(s)
	case strings.HasPrefix(lower, "data:"):
		data, _, _ := DecodeDataURL(s)
		return SourceFromBytes(inlineID(data), data)
	default:
		return SourceFromPath(s)
	}
}

// Descriptor is a short human-readable origin of the image.
func (s ImageSource) Descriptor() string {
	switch s.Kind {
	case SourcePath:
		return s.Path
	case SourceURL:
		return s.URL
	case SourceBytes:
		return fmt.Sprintf("bytes:%s(%d)", s.ID, len(s.Data))
	case SourceImage:
		return "image:" + s.ID
	default:
		return s.ID
	}
}

// label is the identifier used in duplicate groups and index matches.
func (s ImageSource) label() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Descriptor()
}

// IsZero reports whether the source references nothing.
func (s ImageSource) IsZero() bool {
	return s.Kind == SourceUnknown && s.Path == "" && s.URL == "" && len(s.Data) == 0 && s.Image == nil
}

// sourceJSON is the object form of an ImageSource.
type sourceJSON struct {
	ID  string `json:"id" yaml:"id"`
	Src string `json:"src,omitempty" yaml:"src"`
}

// src is the string ParseSource turns back into s: the path, the URL or a
// data URL for inline bytes. Decoded bitmaps have none.
func (s ImageSource) src() string {
	switch s.Kind {
	case SourcePath:
		return s.Path
	case SourceURL:
		return s.URL
	case SourceBytes:
		return EncodeDataURL(s.Data, http.DetectContentType(s.Data))
	default:
		return ""
	}
}

// MarshalJSON encodes the source as a plain string when parsing that string
// gives the same ID back, and as {"id", "src"} otherwise. Bytes sources are
// written as data URLs. SourceImage bitmaps are not serialised: they encode
// as {"id"} alone and decode to a source without an image.
func (s ImageSource) MarshalJSON() ([]byte, error) {
	src := s.src()
	if src != "" && ParseSource(src).ID == s.ID {
		return json.Marshal(src)
	}
	return json.Marshal(sourceJSON{ID: s.label(), Src: src})
}

// UnmarshalJSON accepts a path, URL or data URL string, or an object with
// "id" and "src" keys.
func (s *ImageSource) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*s = ParseSource(raw)
		return nil
	}
	var aux sourceJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("image source must be a string or an {id, src} object: %w", err)
	}
	*s = aux.source()
	return nil
}

func (a sourceJSON) source() ImageSource {
	if a.Src == "" {
		return ImageSource{ID: a.ID}
	}
	s := ParseSource(a.Src)
	if a.ID != "" {
		s.ID = a.ID
	}
	return s
}

// UnmarshalYAML accepts either a plain path/URL string or a mapping with
// "id" and "src" keys.
func (s *ImageSource) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*s = ParseSource(node.Value)
		return nil
	}
	var aux sourceJSON
	if err := node.Decode(&aux); err != nil {
		return fmt.Errorf("decode image source: %w", err)
	}
	*s = aux.source()
	return nil
}
