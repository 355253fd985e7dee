package privacy

// Kind classifies the category of sensitive data found in text.
type Kind string

// Supported kinds of regulated personal data.
const (
	KindPESEL          Kind = "pesel"
	KindNIP            Kind = "nip"
	KindREGON          Kind = "regon"
	KindIBAN           Kind = "iban"
	KindPhone          Kind = "phone"
	KindEmail          Kind = "email"
	KindPostalCode     Kind = "postal_code"
	KindCourtSignature Kind = "court_signature"
	KindName           Kind = "name"
	KindAddress        Kind = "address"
	KindCompany        Kind = "company"
	KindDocumentNumber Kind = "document_number"
)

// Span is a single detected sensitive value and its byte offset in the
// original text. Value is never serialized; only kind and position metadata
// may leave the process.
type Span struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"-"`
	Start int    `json:"start"`
}

// DetectionResult contains the outcome of scanning one text.
type DetectionResult struct {
	HasSensitiveData bool     `json:"has_sensitive_data"`
	MatchedKeywords  []string `json:"matched_keywords,omitempty"`
	Spans            []Span   `json:"spans,omitempty"`
}

// Kinds returns the distinct span kinds in detection order.
func (r DetectionResult) Kinds() []Kind {
	seen := make(map[Kind]bool, len(r.Spans))
	var kinds []Kind
	for _, s := range r.Spans {
		if !seen[s.Kind] {
			seen[s.Kind] = true
			kinds = append(kinds, s.Kind)
		}
	}
	return kinds
}
