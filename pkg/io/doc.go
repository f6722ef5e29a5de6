// Package io exports compiled attack graphs as JSON for external tooling.
//
// # JSON Format
//
//	{
//	  "title": "Bank",
//	  "filter": ["money"],
//	  "categories": ["fact", "attack", "goal"],
//	  "nodes": [
//	    {"id": "reality", "category": "fact", "label": "Reality", "builtin": true},
//	    {"id": "phish", "category": "attack", "label": "Phishing"},
//	    {"id": "money", "category": "goal", "label": "Steal money"}
//	  ],
//	  "edges": [
//	    {"from": "reality", "to": "phish", "implemented": true},
//	    {"from": "phish", "to": "money", "tag": "#yolosec", "implemented": true}
//	  ]
//	}
//
// Edges always run from prerequisite to dependent; "backwards" records the
// drawing hint only. The export is one-way: the authored document remains
// the only source format.
package io
