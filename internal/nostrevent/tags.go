package nostrevent

import (
	"strings"
)

// GetTag returns the first tag whose name matches, or nil if none exists.
func GetTag(tags Tags, name string) Tag {
	for _, t := range tags {
		if len(t) > 0 && t[0] == name {
			return t
		}
	}
	return nil
}

// GetTags returns every tag whose name matches, preserving order.
func GetTags(tags Tags, name string) []Tag {
	var out []Tag
	for _, t := range tags {
		if len(t) > 0 && t[0] == name {
			out = append(out, t)
		}
	}
	return out
}

// GetTagValue returns the value (index 1) of the first matching tag, or ""
// if the tag is absent or has no value.
func GetTagValue(tags Tags, name string) string {
	t := GetTag(tags, name)
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

// AddTag returns a new Tags slice with the given tag appended. It never
// mutates the input, matching the pure-function contract the rest of the
// package relies on for testability.
func AddTag(tags Tags, tag Tag) Tags {
	out := make(Tags, len(tags), len(tags)+1)
	copy(out, tags)
	return append(out, tag)
}

// SetTag returns a new Tags slice where the first tag matching tag[0] is
// replaced by tag, or tag is appended if no match exists. Use this for
// single-valued tags (e.g. "d", "euc"); use AddTag for repeatable ones
// (e.g. "r", "p").
func SetTag(tags Tags, tag Tag) Tags {
	if len(tag) == 0 {
		return tags
	}
	out := make(Tags, len(tags))
	copy(out, tags)
	for i, t := range out {
		if len(t) > 0 && t[0] == tag[0] {
			out[i] = tag
			return out
		}
	}
	return append(out, tag)
}

// RemoveTag returns a new Tags slice with every tag named name removed.
func RemoveTag(tags Tags, name string) Tags {
	out := make(Tags, 0, len(tags))
	for _, t := range tags {
		if len(t) > 0 && t[0] == name {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ParseEucTag extracts the Earliest Unique Commit id from an event's "euc"
// tag. Returns ("", false) when absent or empty.
func ParseEucTag(tags Tags) (string, bool) {
	v := GetTagValue(tags, "euc")
	if v == "" {
		return "", false
	}
	return v, true
}

// ParseRootTag extracts the thread root event id from an uppercase "E" tag
// (NIP-22 style scoping), falling back to a lowercase "e" marked "root", and
// then to the first lowercase "e" tag whatever its marker.
func ParseRootTag(tags Tags) (string, bool) {
	if v := GetTagValue(tags, "E"); v != "" {
		return v, true
	}
	for _, t := range GetTags(tags, "e") {
		if len(t) >= 4 && strings.EqualFold(t[3], "root") {
			return t[1], true
		}
	}
	if t := GetTag(tags, "e"); len(t) >= 2 {
		return t[1], true
	}
	return "", false
}

// ParseReplyTag extracts the immediate-parent event id: lowercase "e" tag
// marked "reply", or the last "e" tag when none is marked "reply".
func ParseReplyTag(tags Tags) (string, bool) {
	es := GetTags(tags, "e")
	for _, t := range es {
		if len(t) >= 4 && strings.EqualFold(t[3], "reply") {
			return t[1], true
		}
	}
	if len(es) > 0 {
		last := es[len(es)-1]
		if len(last) >= 2 {
			return last[1], true
		}
	}
	return "", false
}

// ParseAddrTag extracts the value of an "a" tag matching prefix (e.g. "30617:").
func ParseAddrTag(tags Tags, prefix string) (string, bool) {
	for _, t := range GetTags(tags, "a") {
		if len(t) >= 2 && strings.HasPrefix(t[1], prefix) {
			return t[1], true
		}
	}
	return "", false
}
