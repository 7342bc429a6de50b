package sniffer

import (
	"bytes"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHead  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13}
	jpegHead = []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10}
	webpHead = append([]byte("RIFF\x00\x00\x00\x00WEBP"), "VP8 "...)
	avifHead = append([]byte{0, 0, 0, 0x1c}, "ftypavif\x00\x00\x00\x00"...)
)

func TestDetectHead(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want MediaType
		ext  string
	}{
		{"png", pngHead, TypePNG, "png"},
		{"jpeg", jpegHead, TypeJPEG, "jpg"},
		{"gif", []byte("GIF89a\x01\x00"), TypeGIF, "gif"},
		{"webp", webpHead, TypeWEBP, "webp"},
		{"avif", avifHead, TypeAVIF, "avif"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectHead(tt.head)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Type)
			assert.Equal(t, tt.ext, got.Ext())
		})
	}
}

func TestDetectHeadRejects(t *testing.T) {
	for name, head := range map[string][]byte{
		"empty": nil,
		"svg":   []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`),
		"text":  []byte("hello world"),
		"pdf":   []byte("%PDF-1.7"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DetectHead(head)
			assert.ErrorIs(t, err, ErrUnknownType)
		})
	}
}

func TestDetectReturnsHead(t *testing.T) {
	body := append(append([]byte{}, pngHead...), bytes.Repeat([]byte{1}, 1024)...)
	res, head, err := Detect(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, TypePNG, res.Type)
	assert.Len(t, head, 512)
}

func TestMatches(t *testing.T) {
	png := Result{Type: TypePNG, MIME: "image/png"}
	jpeg := Result{Type: TypeJPEG, MIME: "image/jpeg"}

	assert.True(t, png.Matches(""))
	assert.True(t, png.Matches("application/octet-stream"))
	assert.True(t, png.Matches("image/png"))
	assert.False(t, png.Matches("image/jpeg"))
	assert.True(t, jpeg.Matches("image/jpg"))
	assert.False(t, png.Matches("image/jpg"))
}

func TestMimeTypeFromHTTP(t *testing.T) {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", "Image/PNG; charset=binary")
	assert.Equal(t, "image/png", MimeTypeFromHTTP(h))
	assert.Empty(t, MimeTypeFromHTTP(textproto.MIMEHeader{}))
}
