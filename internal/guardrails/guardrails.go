// Copyright 2026 The storylens Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package guardrails deterministically post-processes raw model text into
// the structured fields the API returns. Every function here is pure: no
// I/O, no randomness, no clock. The same input always yields the same
// output, which is what makes the outputs policy-enforceable.
package guardrails

import (
	"regexp"
	"strconv"
	"strings"
)

// Detail is the caller-selected verbosity tier controlling truncation depth.
type Detail string

const (
	DetailShort  Detail = "short"
	DetailMedium Detail = "medium"
	DetailLong   Detail = "long"
)

// ValidDetail reports whether s names a known detail tier.
func ValidDetail(s string) bool {
	switch Detail(s) {
	case DetailShort, DetailMedium, DetailLong:
		return true
	}
	return false
}

// ObjectCount is one recognized object with its accumulated count.
type ObjectCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// maxExtracted caps both the object list and the tag list.
const maxExtracted = 10

var (
	sentenceSplitRe = regexp.MustCompile(`[.!?]+`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	countedNounRe   = regexp.MustCompile(`\b(\d+)\s+([a-zA-Z]+)\b`)
	articleNounRe   = regexp.MustCompile(`(?i)\b(a|an)\s+([a-zA-Z]+)\b`)
	tagSplitRe      = regexp.MustCompile(`[,;\n]`)
	settingLabelRe  = regexp.MustCompile(`(?i)\bsetting\s*[:\-]\s*([^.!?\n]+)`)
)

// bannedTags are never returned to callers regardless of model output.
// Entries are in canonical (lowercase, underscore-joined) form.
var bannedTags = map[string]struct{}{
	"photorealistic":  {},
	"photo":           {},
	"photograph":      {},
	"image":           {},
	"picture":         {},
	"50mm":            {},
	"4k":              {},
	"8k":              {},
	"hd":              {},
	"hdr":             {},
	"high_resolution": {},
}

// settingKeywords is the fixed scene vocabulary scanned when the model did
// not label a setting explicitly. Order is match precedence.
var settingKeywords = []string{
	"indoor", "outdoor", "studio", "beach", "forest", "mountain",
	"desert", "city", "street", "office", "kitchen", "garden",
	"underwater", "night", "sunset", "sunrise",
}

// Sanitize normalizes raw model text: trims surrounding whitespace and
// collapses internal whitespace runs to single spaces.
func Sanitize(text string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
}

// TrimToDetail truncates sanitized text to the detail tier: short keeps the
// first 2 sentence-delimited segments, medium keeps 4, long returns the
// sanitized text unchanged. Segments are split on runs of [.!?]; empty
// segments are dropped; kept segments are rejoined with ". " and a trailing
// period is appended only when segments were actually dropped.
func TrimToDetail(text string, tier Detail) string {
	sanitized := Sanitize(text)
	var limit int
	switch tier {
	case DetailShort:
		limit = 2
	case DetailMedium:
		limit = 4
	default:
		return sanitized
	}

	segments := make([]string, 0, limit)
	dropped := false
	for _, seg := range sentenceSplitRe.Split(sanitized, -1) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if len(segments) == limit {
			dropped = true
			break
		}
		segments = append(segments, seg)
	}

	out := strings.Join(segments, ". ")
	if dropped {
		out += "."
	}
	return out
}

// ExtractObjects recognizes objects from two pattern families, numeric
// quantifiers ("5 dogs") and indefinite articles ("a cat"), accumulating
// counts per lowercase noun across both. Up to 10 entries are returned in
// first-seen order.
func ExtractObjects(text string) []ObjectCount {
	counts := make(map[string]int)
	order := make([]string, 0, maxExtracted)

	record := func(noun string, n int) {
		noun = strings.ToLower(noun)
		if _, seen := counts[noun]; !seen {
			order = append(order, noun)
		}
		counts[noun] += n
	}

	for _, m := range countedNounRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			continue
		}
		record(m[2], n)
	}
	for _, m := range articleNounRe.FindAllStringSubmatch(text, -1) {
		record(m[2], 1)
	}

	if len(order) > maxExtracted {
		order = order[:maxExtracted]
	}
	objects := make([]ObjectCount, 0, len(order))
	for _, noun := range order {
		objects = append(objects, ObjectCount{Name: noun, Count: counts[noun]})
	}
	return objects
}

// ExtractTags splits text on commas, semicolons and newlines, canonicalizes
// each segment (trim, lowercase, underscore-join), drops empties and banned
// entries, deduplicates, and caps the result at 10.
func ExtractTags(text string) []string {
	tags := make([]string, 0, maxExtracted)
	seen := make(map[string]struct{})

	for _, seg := range tagSplitRe.Split(text, -1) {
		tag := canonicalTag(seg)
		if tag == "" {
			continue
		}
		if _, banned := bannedTags[tag]; banned {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == maxExtracted {
			break
		}
	}
	return tags
}

// canonicalTag lowercases a segment and joins its words with underscores.
func canonicalTag(seg string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(seg)))
	return strings.Join(fields, "_")
}

// ExtractSetting derives the scene setting from model text. A labeled
// "setting:" segment wins; otherwise the first match from the fixed scene
// vocabulary is used; otherwise the empty string.
func ExtractSetting(text string) string {
	if m := settingLabelRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	lower := strings.ToLower(text)
	bestIdx := -1
	best := ""
	for _, kw := range settingKeywords {
		if idx := strings.Index(lower, kw); idx >= 0 {
			if bestIdx == -1 || idx < bestIdx {
				bestIdx = idx
				best = kw
			}
		}
	}
	return best
}
