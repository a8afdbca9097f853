package fakecheck

import (
	"bytes"
	"strings"

	"github.com/bep/imagemeta"
)

// ImageMetadata holds the EXIF, IPTC and XMP/Dublin Core rights fields of an
// image. Brand photographers and catalogue studios fill these in; a listing
// photo that still carries them was usually copied from an official source.
type ImageMetadata struct {
	EXIFCopyright string
	EXIFArtist    string
	IPTCCopyright string
	IPTCCredit    string
	IPTCSource    string
	IPTCByline    string
	DCRights      string
	DCCreator     string
}

// rightsText joins the non-empty rights fields, one per line.
func (m *ImageMetadata) rightsText() string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	for _, f := range [...]string{
		m.EXIFCopyright, m.EXIFArtist,
		m.IPTCCopyright, m.IPTCCredit, m.IPTCSource, m.IPTCByline,
		m.DCRights, m.DCCreator,
	} {
		if f != "" {
			b.WriteString(f)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// CreditedBrands returns the canonical brands (from brands) named in any
// rights field of meta, using the same permissive matching as brand
// detection. Returns nil for nil metadata.
func CreditedBrands(meta *ImageMetadata, brands []Brand) []string {
	text := meta.rightsText()
	if text == "" {
		return nil
	}
	return detectBrands(text, brands)
}

// rightsTag identifies one metadata tag by its container.
type rightsTag struct {
	src imagemeta.Source
	tag string
}

// rightsTags maps every tag read from an image to the field it fills.
var rightsTags = map[rightsTag]func(*ImageMetadata) *string{
	{imagemeta.EXIF, "Copyright"}:       func(m *ImageMetadata) *string { return &m.EXIFCopyright },
	{imagemeta.EXIF, "Artist"}:          func(m *ImageMetadata) *string { return &m.EXIFArtist },
	{imagemeta.IPTC, "CopyrightNotice"}: func(m *ImageMetadata) *string { return &m.IPTCCopyright },
	{imagemeta.IPTC, "Credit"}:          func(m *ImageMetadata) *string { return &m.IPTCCredit },
	{imagemeta.IPTC, "Source"}:          func(m *ImageMetadata) *string { return &m.IPTCSource },
	{imagemeta.IPTC, "Byline"}:          func(m *ImageMetadata) *string { return &m.IPTCByline },
	{imagemeta.XMP, "Rights"}:           func(m *ImageMetadata) *string { return &m.DCRights },
	{imagemeta.XMP, "Creator"}:          func(m *ImageMetadata) *string { return &m.DCCreator },
}

// ExtractImageMetadata reads the rights fields of an encoded image. It returns
// nil for empty or unparsable data and for images that carry none of them.
func ExtractImageMetadata(data []byte) *ImageMetadata {
	format, ok := metadataFormat(data)
	if !ok {
		return nil
	}

	var meta ImageMetadata
	filled := 0
	_, err := imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: format,
		Sources:     imagemeta.EXIF | imagemeta.IPTC | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			_, ok := rightsTags[rightsTag{ti.Source, ti.Tag}]
			return ok
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			field, ok := rightsTags[rightsTag{ti.Source, ti.Tag}]
			if !ok {
				return nil
			}
			if v := firstString(ti.Value); v != "" {
				*field(&meta) = v
				filled++
			}
			return nil
		},
	})
	if err != nil || filled == 0 {
		return nil
	}
	return &meta
}

// metadataFormat sniffs the container from its magic bytes. imagemeta does
// not detect formats itself.
func metadataFormat(data []byte) (imagemeta.ImageFormat, bool) {
	switch {
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return imagemeta.JPEG, true
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return imagemeta.PNG, true
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return imagemeta.TIFF, true
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return imagemeta.WebP, true
	default:
		return 0, false
	}
}

// firstString unwraps a tag value; XMP lists yield their first entry.
func firstString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		if len(val) > 0 {
			return val[0]
		}
	case []any:
		if len(val) > 0 {
			s, _ := val[0].(string)
			return s
		}
	}
	return ""
}
