// Package anonymizer provides the stateful, reversible substitution of
// detected sensitive values with stable placeholders.
//
// An Anonymizer is exclusively owned by one logical request or session turn.
// It must be constructed fresh per scope and discarded at the end of it;
// reusing an instance across unrelated sessions is a caller error this
// design deliberately makes hard (there is no shared singleton). The scope
// ownership rule, not a lock, is what prevents cross-session data leakage.
package anonymizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lexops/privguard/internal/privacy"
)

// placeholderLabels map a detection kind to the label embedded in its
// placeholder token. The bracketed underscore format cannot collide with
// naturally occurring text or with any detection pattern.
var placeholderLabels = map[privacy.Kind]string{
	privacy.KindPESEL:          "PESEL",
	privacy.KindNIP:            "NIP",
	privacy.KindREGON:          "REGON",
	privacy.KindIBAN:           "KONTO",
	privacy.KindPhone:          "TELEFON",
	privacy.KindEmail:          "EMAIL",
	privacy.KindPostalCode:     "KOD",
	privacy.KindCourtSignature: "SYGNATURA",
	privacy.KindName:           "OSOBA",
	privacy.KindAddress:        "ADRES",
	privacy.KindCompany:        "FIRMA",
	privacy.KindDocumentNumber: "DOKUMENT",
}

// normalizedKinds are looked up and registered with separator characters
// stripped, so "526-104-08-28" and "5261040828" resolve to the same
// placeholder within a scope.
var normalizedKinds = map[privacy.Kind]bool{
	privacy.KindPESEL: true,
	privacy.KindNIP:   true,
	privacy.KindREGON: true,
	privacy.KindPhone: true,
	privacy.KindIBAN:  true,
}

// Anonymizer holds the bidirectional value-to-placeholder mapping for a single
// call scope.
type Anonymizer struct {
	detector *privacy.Detector
	forward  map[string]string // original and normalized forms → placeholder
	reverse  map[string]string // placeholder → original form
	counters map[privacy.Kind]int
}

// New creates an empty anonymization scope around the given detector.
func New(detector *privacy.Detector) *Anonymizer {
	return &Anonymizer{
		detector: detector,
		forward:  make(map[string]string),
		reverse:  make(map[string]string),
		counters: make(map[privacy.Kind]int),
	}
}

// Anonymize substitutes every detected span in text with a placeholder.
// Values already seen in this scope, in any recognized spelling, resolve to
// their existing placeholder.
func (a *Anonymizer) Anonymize(text string) string {
	result := a.detector.Detect(text)
	if len(result.Spans) == 0 {
		return text
	}

	// Spans arrive in offset order. Overlapping spans of different kinds can
	// claim the same bytes; the leftmost span wins and stale spans are
	// dropped. Placeholders are allocated here, in reading order, so counters
	// run front to back.
	applied := make([]privacy.Span, 0, len(result.Spans))
	replacements := make([]string, 0, len(result.Spans))
	lastEnd := 0
	for _, span := range result.Spans {
		if span.Start < lastEnd {
			continue
		}
		applied = append(applied, span)
		replacements = append(replacements, a.placeholderFor(span))
		lastEnd = span.Start + len(span.Value)
	}

	// Splice back-to-front so earlier offsets stay valid.
	for i := len(applied) - 1; i >= 0; i-- {
		span := applied[i]
		text = text[:span.Start] + replacements[i] + text[span.Start+len(span.Value):]
	}

	return text
}

// Deanonymize reverses known placeholders in text. This is best-effort: a
// placeholder rewritten or truncated by the remote processor is left as-is,
// because the overriding guarantee is that raw values never leave the trust
// boundary, not that restoration is perfect.
func (a *Anonymizer) Deanonymize(text string) string {
	if len(a.reverse) == 0 {
		return text
	}

	// Longest placeholders first, so a shorter literal that is a substring
	// of a longer one cannot clobber it.
	placeholders := make([]string, 0, len(a.reverse))
	for p := range a.reverse {
		placeholders = append(placeholders, p)
	}
	sort.Slice(placeholders, func(i, j int) bool {
		if len(placeholders[i]) != len(placeholders[j]) {
			return len(placeholders[i]) > len(placeholders[j])
		}
		return placeholders[i] < placeholders[j]
	})

	for _, p := range placeholders {
		text = strings.ReplaceAll(text, p, a.reverse[p])
	}
	return text
}

// HasReplacements reports whether this scope has registered any mapping.
func (a *Anonymizer) HasReplacements() bool {
	return len(a.reverse) > 0
}

// MappingCount returns the number of distinct placeholders in this scope.
func (a *Anonymizer) MappingCount() int {
	return len(a.reverse)
}

// placeholderFor resolves or creates the placeholder for a span.
func (a *Anonymizer) placeholderFor(span privacy.Span) string {
	norm := normalize(span.Kind, span.Value)

	if p, ok := a.forward[span.Value]; ok {
		return p
	}
	if p, ok := a.forward[norm]; ok {
		// New spelling of a known value; register it too.
		a.forward[span.Value] = p
		return p
	}

	a.counters[span.Kind]++
	label, ok := placeholderLabels[span.Kind]
	if !ok {
		label = "DANE"
	}
	p := fmt.Sprintf("[%s_%d]", label, a.counters[span.Kind])

	a.forward[span.Value] = p
	a.forward[norm] = p
	a.reverse[p] = span.Value
	return p
}

// normalize reduces a value to its canonical lookup form. Digit-bearing
// kinds drop separator characters; names and companies drop surrounding
// whitespace only.
func normalize(kind privacy.Kind, value string) string {
	if normalizedKinds[kind] {
		var b strings.Builder
		b.Grow(len(value))
		for i := 0; i < len(value); i++ {
			switch value[i] {
			case ' ', '-', '\t':
			default:
				b.WriteByte(value[i])
			}
		}
		return b.String()
	}
	return strings.TrimSpace(value)
}
