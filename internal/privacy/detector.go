package privacy

import (
	"sort"
	"strings"

	"github.com/lexops/privguard/internal/config"
	"github.com/lexops/privguard/internal/logger"
	"go.uber.org/zap"
)

// Detector scans free text for regulated personal-data patterns. It holds no
// mutable state and is safe to call concurrently from any number of scopes.
type Detector struct {
	rules  []DetectionRule
	logger *logger.Logger
	config config.PrivacyConfig
}

// New creates a new detector instance
func New(cfg config.PrivacyConfig, log *logger.Logger) *Detector {
	d := &Detector{
		rules:  defaultRules(),
		logger: log,
		config: cfg,
	}

	log.Info("Privacy detector initialized",
		zap.Int("pattern_rules", len(d.rules)),
		zap.Int("keywords", len(sensitiveKeywords)),
	)

	return d
}

// Detect scans text and returns every detected span plus matched keywords.
// Spans are returned in input order. Overlapping spans of different kinds
// are not deduplicated except for the REGON exclusion against validated
// PESEL matches; the anonymizer resolves remaining overlaps leftmost-first.
func (d *Detector) Detect(text string) DetectionResult {
	if !d.config.Enabled || text == "" {
		return DetectionResult{}
	}

	var spans []Span

	// PESEL and REGON work on maximal digit runs: an 11-digit run with a
	// valid checksum is a PESEL; 9 and 14 digit runs are REGON candidates
	// unless claimed by a validated PESEL at the same position.
	runs := digitRuns(text)
	var peselRanges [][2]int
	for _, r := range runs {
		if r.end-r.start == 11 && ValidPESELChecksum(text[r.start:r.end]) {
			spans = append(spans, Span{Kind: KindPESEL, Value: text[r.start:r.end], Start: r.start})
			peselRanges = append(peselRanges, [2]int{r.start, r.end})
		}
	}
	for _, r := range runs {
		n := r.end - r.start
		if n != 9 && n != 14 {
			continue
		}
		if intersectsAny(peselRanges, r.start, r.end) {
			continue
		}
		spans = append(spans, Span{Kind: KindREGON, Value: text[r.start:r.end], Start: r.start})
	}

	// Pattern rules.
	for _, rule := range d.rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			value := text[loc[0]:loc[1]]
			if rule.Validate != nil && !rule.Validate(value) {
				continue
			}
			spans = append(spans, Span{Kind: rule.Kind, Value: value, Start: loc[0]})
		}
	}

	// Personal names following a legal role label.
	for _, loc := range roleNamePattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2], loc[3]
		for end > start && (text[end-1] == ' ') {
			end--
		}
		if end > start {
			spans = append(spans, Span{Kind: KindName, Value: text[start:end], Start: start})
		}
	}

	// Dictionary-based name matching.
	spans = append(spans, matchNames(text)...)

	spans = dedupeSpans(spans)
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	keywords := matchKeywords(text)

	if len(spans) > 0 || len(keywords) > 0 {
		d.logger.Debug("Sensitive data detected",
			zap.Int("span_count", len(spans)),
			zap.Int("keyword_count", len(keywords)),
		)
	}

	return DetectionResult{
		HasSensitiveData: len(spans) > 0 || len(keywords) > 0,
		MatchedKeywords:  keywords,
		Spans:            spans,
	}
}

// ContainsSensitiveData is the short-circuit convenience form of Detect.
func (d *Detector) ContainsSensitiveData(text string) bool {
	return d.Detect(text).HasSensitiveData
}

type digitRun struct {
	start, end int
}

// digitRuns returns the maximal runs of consecutive ASCII digits in text.
func digitRuns(text string) []digitRun {
	var runs []digitRun
	start := -1
	for i := 0; i < len(text); i++ {
		if text[i] >= '0' && text[i] <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			runs = append(runs, digitRun{start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, digitRun{start: start, end: len(text)})
	}
	return runs
}

// dedupeSpans removes exact duplicates. The role-label rule and the name
// dictionaries can both report the same name at the same offset.
func dedupeSpans(spans []Span) []Span {
	type key struct {
		kind  Kind
		start int
		value string
	}
	seen := make(map[key]bool, len(spans))
	out := spans[:0]
	for _, s := range spans {
		k := key{kind: s.Kind, start: s.Start, value: s.Value}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

func matchKeywords(text string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}
