// Package sniffer identifies avatar image formats from their leading bytes.
package sniffer

import (
	"bytes"
	"errors"
	"mime"
	"net/textproto"
)

// HeadSize is the number of leading bytes Detect needs.
const HeadSize = 512

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWEBP Format = "webp"
	FormatAVIF Format = "avif"
	FormatSVG  Format = "svg"
)

var ErrUnknownFormat = errors.New("unsupported image format")

var mimeTypes = map[Format]string{
	FormatJPEG: "image/jpeg",
	FormatPNG:  "image/png",
	FormatGIF:  "image/gif",
	FormatWEBP: "image/webp",
	FormatAVIF: "image/avif",
	FormatSVG:  "image/svg+xml",
}

func (f Format) MIME() string {
	return mimeTypes[f]
}

// Ext is the file extension used for stored objects.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

type matcher struct {
	format Format
	match  func(head []byte) bool
}

// Binary formats are checked before the textual svg heuristic.
var matchers = []matcher{
	{FormatJPEG, func(h []byte) bool { return bytes.HasPrefix(h, []byte{0xff, 0xd8, 0xff}) }},
	{FormatPNG, func(h []byte) bool { return bytes.HasPrefix(h, []byte("\x89PNG\r\n\x1a\n")) }},
	{FormatGIF, func(h []byte) bool {
		return bytes.HasPrefix(h, []byte("GIF87a")) || bytes.HasPrefix(h, []byte("GIF89a"))
	}},
	{FormatWEBP, func(h []byte) bool {
		return len(h) >= 12 && bytes.Equal(h[:4], []byte("RIFF")) && bytes.Equal(h[8:12], []byte("WEBP"))
	}},
	{FormatAVIF, func(h []byte) bool {
		return len(h) >= 12 && bytes.Equal(h[4:8], []byte("ftyp")) && bytes.Contains(h[8:], []byte("avif"))
	}},
	{FormatSVG, isSVG},
}

func Detect(head []byte) (Format, error) {
	if len(head) > HeadSize {
		head = head[:HeadSize]
	}
	for _, m := range matchers {
		if m.match(head) {
			return m.format, nil
		}
	}
	return "", ErrUnknownFormat
}

func isSVG(head []byte) bool {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(head, []byte("\xef\xbb\xbf")))
	if bytes.HasPrefix(trimmed, []byte("<svg")) {
		return true
	}
	return bytes.HasPrefix(trimmed, []byte("<?xml")) && bytes.Contains(bytes.ToLower(trimmed), []byte("<svg"))
}

// DeclaredType returns the media type of a multipart part header without
// parameters, or "" when none was sent.
func DeclaredType(header textproto.MIMEHeader) string {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	return mediaType
}
