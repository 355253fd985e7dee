package privacy

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/lexops/privguard/internal/config"
	"github.com/lexops/privguard/internal/logger"
)

func newTestDetector() *Detector {
	return New(config.PrivacyConfig{Enabled: true}, &logger.Logger{Logger: zap.NewNop()})
}

// validPESEL carries a check digit computed with the official weights.
const validPESEL = "92010112343"

func TestPESELChecksum(t *testing.T) {
	t.Run("ValidValue", func(t *testing.T) {
		if !ValidPESELChecksum(validPESEL) {
			t.Fatalf("expected %s to pass the checksum", validPESEL)
		}
	})

	t.Run("AllSingleDigitPerturbationsFail", func(t *testing.T) {
		// Every checksum weight is coprime with 10, so changing any single
		// digit must change the expected check digit.
		for pos := 0; pos < len(validPESEL); pos++ {
			for d := byte('0'); d <= '9'; d++ {
				if validPESEL[pos] == d {
					continue
				}
				mutated := validPESEL[:pos] + string(d) + validPESEL[pos+1:]
				if ValidPESELChecksum(mutated) {
					t.Errorf("perturbed value %s (pos %d) unexpectedly passed", mutated, pos)
				}
			}
		}
	})

	t.Run("BadInputs", func(t *testing.T) {
		for _, s := range []string{"", "1234567890", "123456789012", "9201011234a", "abcdefghijk"} {
			if ValidPESELChecksum(s) {
				t.Errorf("%q should not pass the checksum", s)
			}
		}
	})
}

func kindsOf(spans []Span) map[Kind]int {
	counts := make(map[Kind]int)
	for _, s := range spans {
		counts[s.Kind]++
	}
	return counts
}

func TestDetectNationalIdentifiers(t *testing.T) {
	d := newTestDetector()

	t.Run("ValidPESEL", func(t *testing.T) {
		result := d.Detect("PESEL " + validPESEL)
		if !result.HasSensitiveData {
			t.Fatal("expected sensitive data")
		}
		if len(result.Spans) != 1 || result.Spans[0].Kind != KindPESEL {
			t.Fatalf("expected one PESEL span, got %+v", result.Spans)
		}
		if result.Spans[0].Value != validPESEL {
			t.Errorf("wrong span value: %q", result.Spans[0].Value)
		}
		if result.Spans[0].Start != len("PESEL ") {
			t.Errorf("wrong span offset: %d", result.Spans[0].Start)
		}
	})

	t.Run("InvalidChecksumIgnored", func(t *testing.T) {
		result := d.Detect("PESEL 92010112345")
		if result.HasSensitiveData {
			t.Fatalf("11 digits with a bad check digit must not match, got %+v", result.Spans)
		}
	})

	t.Run("REGONNineDigits", func(t *testing.T) {
		result := d.Detect("REGON 123456785")
		counts := kindsOf(result.Spans)
		if counts[KindREGON] != 1 {
			t.Fatalf("expected one REGON span, got %+v", result.Spans)
		}
	})

	t.Run("REGONFourteenDigits", func(t *testing.T) {
		result := d.Detect("REGON 12345678512347")
		counts := kindsOf(result.Spans)
		if counts[KindREGON] != 1 {
			t.Fatalf("expected one REGON span, got %+v", result.Spans)
		}
	})

	t.Run("PESELNotDoubleReportedAsREGON", func(t *testing.T) {
		result := d.Detect(validPESEL)
		counts := kindsOf(result.Spans)
		if counts[KindREGON] != 0 || counts[KindPESEL] != 1 {
			t.Fatalf("expected PESEL only, got %+v", result.Spans)
		}
	})

	t.Run("NIPWithSeparators", func(t *testing.T) {
		result := d.Detect("NIP: 526-104-08-28")
		if len(result.Spans) != 1 || result.Spans[0].Kind != KindNIP {
			t.Fatalf("expected one NIP span, got %+v", result.Spans)
		}
		if result.Spans[0].Value != "526-104-08-28" {
			t.Errorf("wrong span value: %q", result.Spans[0].Value)
		}
	})
}

func TestDetectFinancialAndContact(t *testing.T) {
	d := newTestDetector()

	t.Run("IBAN", func(t *testing.T) {
		result := d.Detect("przelew na PL61 1090 1014 0000 0712 1981 2874")
		if len(result.Spans) != 1 || result.Spans[0].Kind != KindIBAN {
			t.Fatalf("expected one IBAN span, got %+v", result.Spans)
		}
	})

	t.Run("MobilePhone", func(t *testing.T) {
		result := d.Detect("tel. 601 234 567")
		if len(result.Spans) != 1 || result.Spans[0].Kind != KindPhone {
			t.Fatalf("expected one phone span, got %+v", result.Spans)
		}
	})

	t.Run("InternationalPhone", func(t *testing.T) {
		result := d.Detect("kontakt: +48 601 234 567")
		if kindsOf(result.Spans)[KindPhone] == 0 {
			t.Fatalf("expected a phone span, got %+v", result.Spans)
		}
	})

	t.Run("NonMobilePrefixRejected", func(t *testing.T) {
		result := d.Detect("numer 123 456 789")
		if kindsOf(result.Spans)[KindPhone] != 0 {
			t.Fatalf("prefix 12 is not a mobile prefix, got %+v", result.Spans)
		}
	})

	t.Run("Email", func(t *testing.T) {
		result := d.Detect("kontakt: jkowalski@kancelaria.pl")
		if len(result.Spans) != 1 || result.Spans[0].Kind != KindEmail {
			t.Fatalf("expected one email span, got %+v", result.Spans)
		}
	})
}

func TestDetectLegalAndLocation(t *testing.T) {
	d := newTestDetector()

	t.Run("PostalCode", func(t *testing.T) {
		result := d.Detect("00-950 Warszawa")
		if kindsOf(result.Spans)[KindPostalCode] != 1 {
			t.Fatalf("expected a postal code span, got %+v", result.Spans)
		}
	})

	t.Run("CourtSignature", func(t *testing.T) {
		result := d.Detect("sygn. akt II K 123/21")
		spans := result.Spans
		if len(spans) != 1 || spans[0].Kind != KindCourtSignature {
			t.Fatalf("expected one court signature span, got %+v", spans)
		}
		if spans[0].Value != "II K 123/21" {
			t.Errorf("wrong span value: %q", spans[0].Value)
		}
	})

	t.Run("Address", func(t *testing.T) {
		result := d.Detect("zamieszkały przy ul. Marszałkowska 10/5")
		if kindsOf(result.Spans)[KindAddress] != 1 {
			t.Fatalf("expected an address span, got %+v", result.Spans)
		}
	})

	t.Run("Company", func(t *testing.T) {
		result := d.Detect("pozew przeciwko Budex Sp. z o.o.")
		if kindsOf(result.Spans)[KindCompany] != 1 {
			t.Fatalf("expected a company span, got %+v", result.Spans)
		}
	})

	t.Run("IdentityCard", func(t *testing.T) {
		result := d.Detect("seria ABC 123456")
		if kindsOf(result.Spans)[KindDocumentNumber] != 1 {
			t.Fatalf("expected a document span, got %+v", result.Spans)
		}
	})

	t.Run("Passport", func(t *testing.T) {
		result := d.Detect("paszport EH 1234567")
		if kindsOf(result.Spans)[KindDocumentNumber] != 1 {
			t.Fatalf("expected a document span, got %+v", result.Spans)
		}
	})
}

func TestDetectNames(t *testing.T) {
	d := newTestDetector()

	t.Run("FirstNameSurnamePair", func(t *testing.T) {
		result := d.Detect("Jan Kowalski złożył pozew")
		if len(result.Spans) != 1 || result.Spans[0].Kind != KindName {
			t.Fatalf("expected one name span, got %+v", result.Spans)
		}
		if result.Spans[0].Value != "Jan Kowalski" {
			t.Errorf("wrong span value: %q", result.Spans[0].Value)
		}
	})

	t.Run("ThreeTokenSuppressesTwoToken", func(t *testing.T) {
		result := d.Detect("stawiła się Anna Maria Nowak")
		if len(result.Spans) != 1 {
			t.Fatalf("expected exactly one span, got %+v", result.Spans)
		}
		if result.Spans[0].Value != "Anna Maria Nowak" {
			t.Errorf("most specific match should win, got %q", result.Spans[0].Value)
		}
	})

	t.Run("RoleLabelCatchesUnknownName", func(t *testing.T) {
		// Neither token is in the dictionaries; the role label carries it.
		result := d.Detect("Pozwana: Janina Iksińska")
		if len(result.Spans) != 1 || result.Spans[0].Kind != KindName {
			t.Fatalf("expected one name span, got %+v", result.Spans)
		}
		if result.Spans[0].Value != "Janina Iksińska" {
			t.Errorf("wrong span value: %q", result.Spans[0].Value)
		}
	})

	t.Run("RoleLabelAndDictionaryDeduped", func(t *testing.T) {
		result := d.Detect("Klientka: Anna Nowak")
		if len(result.Spans) != 1 {
			t.Fatalf("same name reported twice: %+v", result.Spans)
		}
	})

	t.Run("LowercaseTokensIgnored", func(t *testing.T) {
		result := d.Detect("jan kowalski")
		if len(result.Spans) != 0 {
			t.Fatalf("lowercase tokens are not names, got %+v", result.Spans)
		}
	})
}

func TestDetectKeywords(t *testing.T) {
	d := newTestDetector()

	result := d.Detect("Proszę o usunięcie moich danych zgodnie z RODO")
	if !result.HasSensitiveData {
		t.Fatal("keyword hit should flag the text")
	}
	if len(result.Spans) != 0 {
		t.Fatalf("no spans expected, got %+v", result.Spans)
	}
	found := false
	for _, kw := range result.MatchedKeywords {
		if kw == "rodo" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected keyword rodo, got %v", result.MatchedKeywords)
	}
}

func TestDetectMisc(t *testing.T) {
	d := newTestDetector()

	t.Run("EmptyText", func(t *testing.T) {
		if d.Detect("").HasSensitiveData {
			t.Fatal("empty text cannot be sensitive")
		}
	})

	t.Run("CleanText", func(t *testing.T) {
		result := d.Detect("Umowa obowiązuje od dnia podpisania przez obie strony.")
		if result.HasSensitiveData {
			t.Fatalf("clean text flagged: %+v", result)
		}
	})

	t.Run("PlaceholdersNotReDetected", func(t *testing.T) {
		result := d.Detect("Klient [OSOBA_1], PESEL [PESEL_1], tel. [TELEFON_1]")
		if result.HasSensitiveData {
			t.Fatalf("placeholder tokens must not match, got %+v", result.Spans)
		}
	})

	t.Run("Disabled", func(t *testing.T) {
		off := New(config.PrivacyConfig{Enabled: false}, &logger.Logger{Logger: zap.NewNop()})
		if off.Detect("PESEL " + validPESEL).HasSensitiveData {
			t.Fatal("disabled detector must report nothing")
		}
	})

	t.Run("SpansSortedByOffset", func(t *testing.T) {
		result := d.Detect("Jan Kowalski, NIP 526-104-08-28, email jk@firma.pl")
		for i := 1; i < len(result.Spans); i++ {
			if result.Spans[i-1].Start > result.Spans[i].Start {
				t.Fatalf("spans out of order: %+v", result.Spans)
			}
		}
		if len(result.Spans) < 3 {
			t.Fatalf("expected name, NIP and email spans, got %+v", result.Spans)
		}
	})
}

func TestKindsDeduplicated(t *testing.T) {
	result := DetectionResult{Spans: []Span{
		{Kind: KindEmail, Start: 0},
		{Kind: KindEmail, Start: 10},
		{Kind: KindPhone, Start: 20},
	}}
	kinds := result.Kinds()
	if len(kinds) != 2 || kinds[0] != KindEmail || kinds[1] != KindPhone {
		t.Fatalf("unexpected kinds: %v", kinds)
	}
}

func TestContainsSensitiveData(t *testing.T) {
	d := newTestDetector()
	if !d.ContainsSensitiveData("tajemnica adwokacka") {
		t.Error("keyword text should be sensitive")
	}
	if d.ContainsSensitiveData("zwykła notatka") {
		t.Error("plain text should not be sensitive")
	}
}

func TestNormalizedSpellingsShareDigits(t *testing.T) {
	d := newTestDetector()
	spaced := d.Detect("NIP 526 104 08 28")
	plain := d.Detect("NIP 5261040828")
	if len(spaced.Spans) != 1 || len(plain.Spans) != 1 {
		t.Fatalf("expected single NIP spans, got %+v / %+v", spaced.Spans, plain.Spans)
	}
	strip := func(s string) string {
		return strings.Map(func(r rune) rune {
			if r == ' ' || r == '-' {
				return -1
			}
			return r
		}, s)
	}
	if strip(spaced.Spans[0].Value) != plain.Spans[0].Value {
		t.Errorf("spellings differ in digits: %q vs %q", spaced.Spans[0].Value, plain.Spans[0].Value)
	}
}
