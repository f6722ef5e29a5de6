// Package provenance embeds the authored document inside exported artifacts
// and recovers it again.
//
// Every artifact stays valid for its own format:
//
//   - DOT: the source becomes a block of // line comments ahead of the
//     digraph statement.
//   - SVG: the source becomes an XML comment right after the opening <svg>
//     tag. Characters that would end or invalidate the comment are written
//     as character references and restored on extraction.
//   - PNG: the source is appended after the IEND chunk. Decoders stop at
//     IEND and ignore the trailer.
//
// The embed functions only locate an insertion point; they never parse the
// artifact they augment. [Extract] sniffs the artifact format and applies
// the matching inverse.
package provenance
