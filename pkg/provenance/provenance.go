package provenance

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/matzehuels/deciduous/pkg/errors"
)

// Markers delimiting embedded source.
const (
	dotBegin  = "// deciduous:source:begin"
	dotEnd    = "// deciduous:source:end"
	dotPrefix = "//|"

	svgBegin = "<!--deciduous:source\n"
	svgEnd   = "\n-->"

	pngMagic = "\ndeciduous:source\n"
)

var (
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
	pngIEND      = []byte("IEND")
)

// EmbedDOT returns dot with source prepended as a comment block. Each source
// line becomes one //| comment between marker lines, so the described graph
// is unchanged. A block left by an earlier EmbedDOT is replaced.
func EmbedDOT(dot, source string) string {
	dot = stripDOT(dot)
	var b strings.Builder
	b.Grow(len(dot) + len(source) + 64)
	b.WriteString(dotBegin)
	b.WriteByte('\n')
	for _, line := range strings.Split(source, "\n") {
		b.WriteString(dotPrefix)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(dotEnd)
	b.WriteByte('\n')
	b.WriteString(dot)
	return b.String()
}

// stripDOT removes the first embedded source block, if any. Source lines
// all carry the //| prefix, so the first bare end marker closes the block.
func stripDOT(dot string) string {
	start := strings.Index(dot, dotBegin+"\n")
	if start < 0 || (start > 0 && dot[start-1] != '\n') {
		return dot
	}
	end := strings.Index(dot[start:], "\n"+dotEnd+"\n")
	if end < 0 {
		return dot
	}
	return dot[:start] + dot[start+end+len(dotEnd)+2:]
}

// ExtractDOT recovers the source embedded by [EmbedDOT].
func ExtractDOT(dot string) (string, error) {
	start := strings.Index(dot, dotBegin+"\n")
	if start < 0 {
		return "", errors.New(errors.ErrCodeNoSource, "DOT text carries no embedded source")
	}
	rest := dot[start+len(dotBegin)+1:]

	var lines []string
	for {
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			return "", errors.New(errors.ErrCodeNoSource, "embedded source block is not terminated")
		}
		line := rest[:nl]
		rest = rest[nl+1:]
		if line == dotEnd {
			break
		}
		if !strings.HasPrefix(line, dotPrefix) {
			return "", errors.New(errors.ErrCodeNoSource, "malformed embedded source line %q", line)
		}
		lines = append(lines, line[len(dotPrefix):])
	}
	return strings.Join(lines, "\n"), nil
}

// EmbedSVG returns svg with source inserted as an XML comment directly after
// the opening <svg> tag. If svg has no <svg> tag the comment is prepended.
// A comment left by an earlier EmbedSVG is replaced.
func EmbedSVG(svg, source string) string {
	svg = stripSVG(svg)
	at := svgInsertionPoint(svg)
	var b strings.Builder
	b.Grow(len(svg) + len(source) + len(svgBegin) + len(svgEnd))
	b.WriteString(svg[:at])
	b.WriteString(svgBegin)
	b.WriteString(escapeComment(source))
	b.WriteString(svgEnd)
	b.WriteString(svg[at:])
	return b.String()
}

// ExtractSVG recovers the source embedded by [EmbedSVG].
func ExtractSVG(svg string) (string, error) {
	start := strings.Index(svg, svgBegin)
	if start < 0 {
		return "", errors.New(errors.ErrCodeNoSource, "SVG carries no embedded source")
	}
	body := svg[start+len(svgBegin):]
	end := strings.Index(body, "-->")
	if end < 0 || !strings.HasSuffix(body[:end+3], svgEnd) {
		return "", errors.New(errors.ErrCodeNoSource, "embedded source comment is not terminated")
	}
	return unescapeComment(body[:end+3-len(svgEnd)])
}

// stripSVG removes the first embedded source comment, if any. The escaped
// body never contains "--", so the first "-->" closes the comment.
func stripSVG(svg string) string {
	start := strings.Index(svg, svgBegin)
	if start < 0 {
		return svg
	}
	end := strings.Index(svg[start:], "-->")
	if end < 0 {
		return svg
	}
	return svg[:start] + svg[start+end+3:]
}

// svgInsertionPoint returns the offset just past the root element's start
// tag, skipping the XML declaration, doctype and any leading comments.
func svgInsertionPoint(svg string) int {
	i := strings.Index(svg, "<svg")
	if i < 0 {
		return 0
	}
	end := strings.IndexByte(svg[i:], '>')
	if end < 0 {
		return 0
	}
	return i + end + 1
}

// escapeComment makes s safe inside an XML comment. '&' always becomes a
// reference so that references can be told apart from authored text; a '-'
// following another '-' and every character XML forbids are written as
// numeric references.
func escapeComment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prev := rune(0)
	for _, r := range s {
		switch {
		case r == '&':
			b.WriteString("&amp;")
		case r == '-' && prev == '-':
			b.WriteString("&#x2D;")
			r = 0
		case r == utf8.RuneError, !xmlChar(r):
			// RuneError also stands for invalid UTF-8, which XML cannot
			// carry; both round-trip as U+FFFD.
			fmt.Fprintf(&b, "&#x%X;", r)
		default:
			b.WriteRune(r)
		}
		prev = r
	}
	return b.String()
}

func unescapeComment(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for {
		i := strings.IndexByte(s, '&')
		if i < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		b.WriteString(s[:i])
		s = s[i:]
		semi := strings.IndexByte(s, ';')
		if semi < 0 {
			return "", errors.New(errors.ErrCodeNoSource, "truncated character reference in embedded source")
		}
		ref := s[1:semi]
		switch {
		case ref == "amp":
			b.WriteByte('&')
		case strings.HasPrefix(ref, "#x"):
			n, err := strconv.ParseUint(ref[2:], 16, 32)
			if err != nil {
				return "", errors.Wrap(errors.ErrCodeNoSource, err, "bad character reference %q", s[:semi+1])
			}
			b.WriteRune(rune(n))
		default:
			return "", errors.New(errors.ErrCodeNoSource, "unknown character reference %q", s[:semi+1])
		}
		s = s[semi+1:]
	}
}

// xmlChar reports whether r may appear in an XML 1.0 document.
func xmlChar(r rune) bool {
	return r == '\t' || r == '\n' || r == '\r' ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

// AppendPNG returns png with source appended after the IEND chunk. Bytes
// that already followed IEND, such as an earlier trailer, are replaced.
// If png has no IEND chunk the trailer is appended at the end.
func AppendPNG(png []byte, source string) []byte {
	cut := iendEnd(png)
	if cut < 0 {
		cut = len(png)
	}
	out := make([]byte, 0, cut+len(pngMagic)+len(source))
	out = append(out, png[:cut]...)
	out = append(out, pngMagic...)
	return append(out, source...)
}

// ExtractPNG recovers the source appended by [AppendPNG].
func ExtractPNG(png []byte) (string, error) {
	cut := iendEnd(png)
	if cut < 0 {
		return "", errors.New(errors.ErrCodeNoSource, "PNG has no IEND chunk")
	}
	trailer := png[cut:]
	if !bytes.HasPrefix(trailer, []byte(pngMagic)) {
		return "", errors.New(errors.ErrCodeNoSource, "PNG carries no embedded source")
	}
	return string(trailer[len(pngMagic):]), nil
}

// iendEnd returns the offset just past the IEND chunk's CRC, or -1.
// Chunks are walked by their length fields so that IEND bytes inside image
// data are never mistaken for the marker.
func iendEnd(png []byte) int {
	if !bytes.HasPrefix(png, pngSignature) {
		return -1
	}
	off := len(pngSignature)
	for off+12 <= len(png) {
		n := int(uint32(png[off])<<24 | uint32(png[off+1])<<16 | uint32(png[off+2])<<8 | uint32(png[off+3]))
		if n < 0 || off+12+n > len(png) {
			return -1
		}
		if bytes.Equal(png[off+4:off+8], pngIEND) {
			return off + 12 + n
		}
		off += 12 + n
	}
	return -1
}

// Extract sniffs the format of an exported artifact and returns the
// embedded source together with the detected format ("png", "svg" or
// "dot"). For text artifacts the earliest source marker decides the format.
func Extract(artifact []byte) (source, format string, err error) {
	if bytes.HasPrefix(artifact, pngSignature) {
		source, err = ExtractPNG(artifact)
		return source, errors.FormatPNG, err
	}

	text := string(artifact)
	svgAt := strings.Index(text, svgBegin)
	dotAt := strings.Index(text, dotBegin+"\n")
	switch {
	case svgAt >= 0 && (dotAt < 0 || svgAt < dotAt):
		source, err = ExtractSVG(text)
		return source, errors.FormatSVG, err
	case dotAt >= 0:
		source, err = ExtractDOT(text)
		return source, errors.FormatDOT, err
	}
	return "", "", errors.New(errors.ErrCodeNoSource, "artifact carries no embedded source")
}
