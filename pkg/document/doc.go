// Package document defines the threat-model document and its validation.
//
// # Overview
//
// A document is a YAML mapping with optional top-level keys:
//
//	title: Attack tree for S3 bucket
//	facts:
//	- public_bucket: S3 bucket set to public
//	  from:
//	  - reality
//	attacks:
//	- bucket_search: AWS public buckets search
//	  from:
//	  - public_bucket: '#yolosec'
//	mitigations:
//	- private_bucket: Auth required
//	  from:
//	  - bucket_search:
//	    implemented: false
//	goals:
//	- s3_asset: Access video recordings
//	  from:
//	  - bucket_search
//	filter:
//	- s3_asset
//
// Each category section is a sequence of entries. An entry declares one node
// id (with an optional label) and lists the nodes it is enabled by in from.
// Node ids are unique across the entire document, not just within a section.
//
// # Edge References
//
// From entries come in three shapes, decoded into a closed variant:
//
//   - [PlainRef]: `- phishing`
//   - [TaggedRef]: `- phishing: '#yolosec'` (tag rendered as annotation)
//   - [FlaggedRef]: `- phishing: {implemented: false, backwards: true}`
//
// The flags may also be written as sibling keys of the id, which is how most
// hand-written documents spell them.
//
// # Validation
//
// [Decode] rejects the whole document on the first duplicate id, unresolved
// from reference or unresolved filter entry. Errors are
// [errors.ValidationError] or [errors.FilterError] values carrying the
// offending node id. The implicit root node [RealityID] may be referenced
// without being declared.
package document
