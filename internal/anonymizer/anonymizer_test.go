package anonymizer

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/lexops/privguard/internal/config"
	"github.com/lexops/privguard/internal/logger"
	"github.com/lexops/privguard/internal/privacy"
)

func newTestAnonymizer() *Anonymizer {
	detector := privacy.New(config.PrivacyConfig{Enabled: true}, &logger.Logger{Logger: zap.NewNop()})
	return New(detector)
}

func TestAnonymizeRoundTrip(t *testing.T) {
	a := newTestAnonymizer()

	original := "Klient: Jan Kowalski, PESEL 92010112343"
	anonymized := a.Anonymize(original)

	if anonymized != "Klient: [OSOBA_1], PESEL [PESEL_1]" {
		t.Fatalf("unexpected anonymized text: %q", anonymized)
	}
	if strings.Contains(anonymized, "Kowalski") || strings.Contains(anonymized, "92010112343") {
		t.Fatal("raw values leaked into anonymized text")
	}

	restored := a.Deanonymize(anonymized)
	if restored != original {
		t.Fatalf("round trip mismatch: %q", restored)
	}
}

func TestPlaceholderConsistencyWithinScope(t *testing.T) {
	a := newTestAnonymizer()

	first := a.Anonymize("email jan@firma.pl")
	second := a.Anonymize("proszę odpisać na jan@firma.pl")

	if !strings.Contains(first, "[EMAIL_1]") {
		t.Fatalf("expected [EMAIL_1], got %q", first)
	}
	if !strings.Contains(second, "[EMAIL_1]") {
		t.Fatalf("repeated value must reuse its placeholder, got %q", second)
	}
	if a.MappingCount() != 1 {
		t.Fatalf("expected one mapping, got %d", a.MappingCount())
	}
}

func TestNormalizedSpellingsSharePlaceholder(t *testing.T) {
	a := newTestAnonymizer()

	withSeparators := a.Anonymize("NIP 526-104-08-28")
	bare := a.Anonymize("NIP 5261040828")

	if !strings.Contains(withSeparators, "[NIP_1]") {
		t.Fatalf("expected [NIP_1], got %q", withSeparators)
	}
	if !strings.Contains(bare, "[NIP_1]") {
		t.Fatalf("different spelling of the same number must share the placeholder, got %q", bare)
	}
	if a.MappingCount() != 1 {
		t.Fatalf("expected one mapping, got %d", a.MappingCount())
	}

	// Restoration yields the spelling that was registered first.
	if got := a.Deanonymize("[NIP_1]"); got != "526-104-08-28" {
		t.Errorf("unexpected restored spelling: %q", got)
	}
}

func TestPerKindCounters(t *testing.T) {
	a := newTestAnonymizer()

	got := a.Anonymize("a@b.pl i c@d.pl, tel. 601 234 567")
	want := "[EMAIL_1] i [EMAIL_2], tel. [TELEFON_1]"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFreshScopeIndependence(t *testing.T) {
	a := newTestAnonymizer()
	b := newTestAnonymizer()

	a.Anonymize("email jan@firma.pl")

	// A fresh scope knows nothing about another scope's placeholders.
	if got := b.Deanonymize("[EMAIL_1]"); got != "[EMAIL_1]" {
		t.Fatalf("foreign placeholder must pass through unchanged, got %q", got)
	}
	if b.HasReplacements() {
		t.Fatal("fresh scope should have no mappings")
	}

	// The same input in a fresh scope starts the numbering over.
	if got := b.Anonymize("email anna@firma.pl"); !strings.Contains(got, "[EMAIL_1]") {
		t.Fatalf("fresh scope should restart counters, got %q", got)
	}
}

func TestDeanonymizeBestEffort(t *testing.T) {
	a := newTestAnonymizer()
	a.Anonymize("email jan@firma.pl")

	got := a.Deanonymize("odpowiedź dla [EMAIL_1] oraz [EMAIL_99]")
	if !strings.Contains(got, "jan@firma.pl") {
		t.Errorf("known placeholder not restored: %q", got)
	}
	if !strings.Contains(got, "[EMAIL_99]") {
		t.Errorf("unknown placeholder must be left as-is: %q", got)
	}
}

func TestOverlappingSpansResolveToOnePlaceholder(t *testing.T) {
	a := newTestAnonymizer()

	// A bare nine-digit mobile number is also a REGON candidate; exactly one
	// of the overlapping spans may claim the bytes.
	original := "601234567"
	anonymized := a.Anonymize(original)

	if strings.Count(anonymized, "[") != 1 {
		t.Fatalf("expected exactly one placeholder, got %q", anonymized)
	}
	if got := a.Deanonymize(anonymized); got != original {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestAnonymizeCleanTextUnchanged(t *testing.T) {
	a := newTestAnonymizer()

	text := "Umowa obowiązuje od dnia podpisania."
	if got := a.Anonymize(text); got != text {
		t.Fatalf("clean text must pass through unchanged, got %q", got)
	}
	if a.HasReplacements() {
		t.Fatal("no mappings expected for clean text")
	}
}

func TestAnonymizeIdempotentOnPlaceholders(t *testing.T) {
	a := newTestAnonymizer()

	once := a.Anonymize("PESEL 92010112343")
	twice := a.Anonymize(once)
	if once != twice {
		t.Fatalf("anonymization must be idempotent: %q vs %q", once, twice)
	}
}
