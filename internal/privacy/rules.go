package privacy

import "regexp"

// DetectionRule represents a single pattern-based detection rule
type DetectionRule struct {
	Kind    Kind
	Pattern *regexp.Regexp
	// Validate optionally rejects a regex candidate (checksum, prefix
	// range). Nil means every match is accepted.
	Validate func(string) bool
}

const polishUpper = `A-ZĄĆĘŁŃÓŚŹŻ`
const polishLower = `a-ząćęłńóśźż`

var (
	nipPattern   = regexp.MustCompile(`\b\d{3}[-\s]?\d{3}[-\s]?\d{2}[-\s]?\d{2}\b`)
	ibanPattern  = regexp.MustCompile(`\b(?:PL\s?)?\d{2}(?:\s?\d{4}){6}\b`)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)

	intlPhonePattern     = regexp.MustCompile(`(?:\+48|00\s?48)[\s\-]?\d{3}[\s\-]?\d{3}[\s\-]?\d{3}\b`)
	domesticPhonePattern = regexp.MustCompile(`\b\d{3}[\s\-]?\d{3}[\s\-]?\d{3}\b`)

	postalCodePattern = regexp.MustCompile(`\b\d{2}-\d{3}\b`)

	// Chamber designator (optionally a Roman numeral division) followed by
	// a docket number and a two-to-four digit year, e.g. "II K 123/21".
	courtSignaturePattern = regexp.MustCompile(`\b(?:[IVXLC]+\s+)?[A-Z][A-Za-z]{0,3}\s+\d{1,6}/\d{2,4}\b`)

	// A legal role label, a colon, then 2-4 capitalized tokens. The label is
	// matched case-insensitively; the name tokens are not.
	roleNamePattern = regexp.MustCompile(
		`\b(?i:klient(?:ka)?|powód(?:ka)?|pozwany|pozwana|pełnomocnik|wnioskodawca|uczestni(?:k|czka)|dłużni(?:k|czka)|wierzyciel|spadkodawca|spadkobierca|oskarżon[ya]|pokrzywdzon[ya])` +
			`\s*:\s*((?:[` + polishUpper + `][` + polishLower + `\-]+ ?){2,4})`)

	addressPattern = regexp.MustCompile(
		`\b(?:ul\.|al\.|pl\.|os\.|ulica|aleja|plac)\s*[` + polishUpper + `][` + polishLower + polishUpper + `\-]*` +
			`(?:\s+[` + polishUpper + polishLower + `\-]+){0,3}\s+\d+[a-zA-Z]?(?:/\d+[a-zA-Z]?)?`)

	companyPattern = regexp.MustCompile(
		`\b[` + polishUpper + `][` + polishLower + polishUpper + `0-9&\-]*` +
			`(?:\s+[` + polishUpper + polishLower + `0-9&\-\.]+){0,4}\s+` +
			`(?:[Ss]p\.\s*z\s*o\.\s*o\.|S\.A\.|[Ss]p\.\s*j\.|[Ss]p\.\s*k\.)`)

	idCardPattern   = regexp.MustCompile(`\b[A-Z]{3}\s?\d{6}\b`)
	passportPattern = regexp.MustCompile(`\b[A-Z]{2}\s?\d{7}\b`)
)

// mobilePrefixes are the two-digit prefixes of Polish mobile numbers. A bare
// nine-digit run is only treated as a phone number when it starts with one
// of these.
var mobilePrefixes = map[string]bool{
	"45": true, "50": true, "51": true, "53": true, "57": true,
	"60": true, "66": true, "69": true, "72": true, "73": true,
	"78": true, "79": true, "88": true,
}

// sensitiveKeywords are matched case-insensitively as substrings. Any hit is
// reported independently of span detection.
var sensitiveKeywords = []string{
	"dane osobowe",
	"dane wrażliwe",
	"adres zamieszkania",
	"numer dowodu",
	"numer paszportu",
	"tajemnica adwokacka",
	"tajemnica radcowska",
	"rodo",
	"stan zdrowia",
	"karalność",
	"wyrok skazujący",
	"numer konta",
}

// peselWeights are the checksum weights for the first ten digits of a PESEL.
var peselWeights = [10]int{1, 3, 7, 9, 1, 3, 7, 9, 1, 3}

// ValidPESELChecksum reports whether an 11-digit string carries a valid
// PESEL check digit. This eliminates most incidental 11-digit numbers
// (invoice numbers, phone numbers with country digits) that are not genuine
// identifiers.
func ValidPESELChecksum(s string) bool {
	if len(s) != 11 {
		return false
	}
	sum := 0
	for i := 0; i < 10; i++ {
		d := s[i]
		if d < '0' || d > '9' {
			return false
		}
		sum += int(d-'0') * peselWeights[i]
	}
	last := s[10]
	if last < '0' || last > '9' {
		return false
	}
	check := (10 - sum%10) % 10
	return check == int(last-'0')
}

func isMobilePrefix(s string) bool {
	digits := make([]byte, 0, 2)
	for i := 0; i < len(s) && len(digits) < 2; i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits = append(digits, s[i])
		}
	}
	return len(digits) == 2 && mobilePrefixes[string(digits)]
}

// defaultRules returns the pattern-based rules. PESEL and REGON are handled
// separately by the detector because they need maximal digit-run scanning
// and cross-rule exclusion.
func defaultRules() []DetectionRule {
	return []DetectionRule{
		{Kind: KindNIP, Pattern: nipPattern},
		{Kind: KindIBAN, Pattern: ibanPattern},
		{Kind: KindPhone, Pattern: intlPhonePattern},
		{Kind: KindPhone, Pattern: domesticPhonePattern, Validate: isMobilePrefix},
		{Kind: KindEmail, Pattern: emailPattern},
		{Kind: KindPostalCode, Pattern: postalCodePattern},
		{Kind: KindCourtSignature, Pattern: courtSignaturePattern},
		{Kind: KindAddress, Pattern: addressPattern},
		{Kind: KindCompany, Pattern: companyPattern},
		{Kind: KindDocumentNumber, Pattern: idCardPattern},
		{Kind: KindDocumentNumber, Pattern: passportPattern},
	}
}
