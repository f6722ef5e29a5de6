package errors

import (
	"strings"
	"unicode/utf8"
)

// maxNodeIDLength bounds node identifiers. Graphviz handles longer names,
// but ids this long are almost certainly a paste accident.
const maxNodeIDLength = 256

// ValidateNodeID checks an authored node identifier.
//
// The validation rules are intentionally permissive because the emitter
// quotes every identifier:
//   - No empty ids
//   - No null bytes (Graphviz stores names as C strings)
//   - Valid UTF-8
//   - Maximum length of 256 bytes
func ValidateNodeID(id string) error {
	if id == "" {
		return Invalid(ErrCodeInvalidDocument, "", "node id cannot be empty")
	}
	if len(id) > maxNodeIDLength {
		return Invalid(ErrCodeInvalidDocument, id[:32]+"...", "node id too long (max %d bytes)", maxNodeIDLength)
	}
	if strings.ContainsRune(id, 0) {
		return Invalid(ErrCodeInvalidDocument, strings.ReplaceAll(id, "\x00", `\0`), "node id contains a null byte")
	}
	if !utf8.ValidString(id) {
		return Invalid(ErrCodeInvalidDocument, "", "node id is not valid UTF-8")
	}
	return nil
}

// Export formats understood by the render pipeline.
const (
	FormatDOT  = "dot"
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatJSON = "json"
)

var renderFormats = map[string]bool{FormatDOT: true, FormatSVG: true, FormatPNG: true}

// ValidateFormat checks that format is one of the rendered artifact formats
// (dot, svg, png). Format names are case-sensitive.
func ValidateFormat(format string) error {
	if !renderFormats[format] {
		return New(ErrCodeInvalidFormat, "invalid format: %q (must be 'dot', 'svg' or 'png')", format)
	}
	return nil
}

// ValidateFormats checks every entry with [ValidateFormat].
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}
