package retrieval

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

const flatSeparator = ". "

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// truncateRunes cuts s to at most n code points.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if runeLen(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// #region flat
// packFlat appends item texts, joined by ". ", until the next one would pass
// volume. That item is cut to the remaining room and packing stops.
func packFlat(items []Scored, volume int) ([]Scored, string) {
	var b strings.Builder
	used := 0
	var kept []Scored
	for _, it := range items {
		sep := 0
		if len(kept) > 0 {
			sep = runeLen(flatSeparator)
		}
		text := it.Text()
		cost := sep + runeLen(text)
		if used+cost <= volume {
			if sep > 0 {
				b.WriteString(flatSeparator)
			}
			b.WriteString(text)
			used += cost
			kept = append(kept, it)
			continue
		}
		room := volume - used - sep
		if room > 0 {
			if sep > 0 {
				b.WriteString(flatSeparator)
			}
			cut := truncateRunes(text, room)
			b.WriteString(cut)
			it.Statement = cut
			it.Edge = nil
			kept = append(kept, it)
		}
		break
	}
	return kept, b.String()
}

// #endregion flat

// #region structured
func toRecord(it Scored) Record {
	r := Record{Entity: it.Entity, Statement: it.Statement}
	if it.Edge != nil {
		r.Provenance = it.Edge.Provenance
		r.Evidence = it.Edge.Evidence
	}
	return r
}

func renderJSON(records []Record) string {
	if records == nil {
		records = []Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Record holds only strings; encoding cannot fail.
	_ = enc.Encode(records)
	return strings.TrimSuffix(buf.String(), "\n")
}

// packStructured adds records until the rendered JSON array would pass
// volume. The overflowing record's statement is shortened to the longest
// prefix that still fits, or dropped when no prefix does. An empty array
// that does not fit renders as "".
func packStructured(items []Scored, volume int) ([]Scored, string) {
	var records []Record
	var kept []Scored
	text := renderJSON(nil)
	for _, it := range items {
		rec := toRecord(it)
		candidate := renderJSON(append(records, rec))
		if runeLen(candidate) <= volume {
			records = append(records, rec)
			kept = append(kept, it)
			text = candidate
			continue
		}

		full := []rune(rec.Statement)
		lo, hi := 0, len(full)-1
		fit := -1
		for lo <= hi {
			mid := (lo + hi) / 2
			rec.Statement = string(full[:mid])
			if runeLen(renderJSON(append(records, rec))) <= volume {
				fit = mid
				lo = mid + 1
			} else {
				hi = mid - 1
			}
		}
		if fit > 0 {
			rec.Statement = string(full[:fit])
			records = append(records, rec)
			it.Statement = rec.Statement
			kept = append(kept, it)
			text = renderJSON(records)
		}
		break
	}
	if runeLen(text) > volume {
		return nil, ""
	}
	return kept, text
}

// #endregion structured
