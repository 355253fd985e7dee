package privacy

import "regexp"

// Static name dictionaries, loaded once at process start and never mutated.
// Shared by reference across all call scopes.

var maleFirstNames = nameSet(
	"Adam", "Adrian", "Aleksander", "Andrzej", "Antoni", "Artur", "Bartosz",
	"Bogdan", "Cezary", "Damian", "Daniel", "Dariusz", "Dawid", "Dominik",
	"Filip", "Franciszek", "Grzegorz", "Henryk", "Igor", "Jacek", "Jakub",
	"Jan", "Janusz", "Jarosław", "Jerzy", "Kamil", "Karol", "Kazimierz",
	"Konrad", "Krystian", "Krzysztof", "Leszek", "Lucjan", "Łukasz",
	"Maciej", "Marcin", "Marek", "Mariusz", "Mateusz", "Michał", "Mikołaj",
	"Paweł", "Piotr", "Przemysław", "Radosław", "Rafał", "Robert", "Roman",
	"Ryszard", "Sebastian", "Sławomir", "Stanisław", "Stefan", "Szymon",
	"Tadeusz", "Tomasz", "Waldemar", "Wiesław", "Witold", "Wojciech",
	"Zbigniew", "Zdzisław", "Zygmunt",
)

var femaleFirstNames = nameSet(
	"Agata", "Agnieszka", "Aleksandra", "Alicja", "Amelia", "Anna",
	"Barbara", "Beata", "Bożena", "Celina", "Danuta", "Dorota", "Edyta",
	"Elżbieta", "Emilia", "Ewa", "Ewelina", "Gabriela", "Grażyna", "Halina",
	"Hanna", "Helena", "Irena", "Iwona", "Izabela", "Jadwiga", "Joanna",
	"Jolanta", "Julia", "Justyna", "Kamila", "Karolina", "Katarzyna",
	"Kinga", "Krystyna", "Lidia", "Magdalena", "Małgorzata", "Maria",
	"Marta", "Martyna", "Monika", "Natalia", "Oliwia", "Patrycja",
	"Paulina", "Renata", "Sylwia", "Teresa", "Urszula", "Weronika",
	"Wiktoria", "Zofia", "Zuzanna",
)

var surnames = nameSet(
	"Adamczyk", "Baran", "Borkowski", "Borkowska", "Chmielewski",
	"Chmielewska", "Czarnecki", "Czarnecka", "Dąbrowski", "Dąbrowska",
	"Duda", "Dudek", "Głowacki", "Głowacka", "Górski", "Górska", "Grabowski",
	"Grabowska", "Jankowski", "Jankowska", "Jaworski", "Jaworska",
	"Kaczmarek", "Kalinowski", "Kalinowska", "Kamiński", "Kamińska",
	"Kaźmierczak", "Kowalczyk", "Kowalski", "Kowalska", "Kozłowski",
	"Kozłowska", "Król", "Krupa", "Kubiak", "Kucharski", "Kucharska",
	"Kwiatkowski", "Kwiatkowska", "Lewandowski", "Lewandowska", "Lis",
	"Majewski", "Majewska", "Makowski", "Makowska", "Malinowski",
	"Malinowska", "Mazur", "Mazurek", "Michalak", "Michalski", "Michalska",
	"Nowak", "Nowakowski", "Nowakowska", "Olszewski", "Olszewska",
	"Ostrowski", "Ostrowska", "Pawlak", "Pawłowski", "Pawłowska",
	"Piotrowski", "Piotrowska", "Przybylski", "Przybylska", "Rutkowski",
	"Rutkowska", "Sadowski", "Sadowska", "Sikora", "Sikorski", "Sikorska",
	"Sobczak", "Stępień", "Szewczyk", "Szulc", "Szymański", "Szymańska",
	"Tomaszewski", "Tomaszewska", "Walczak", "Wasilewski", "Wasilewska",
	"Wieczorek", "Wiśniewski", "Wiśniewska", "Witkowski", "Witkowska",
	"Wojciechowski", "Wojciechowska", "Woźniak", "Wójcik", "Wróbel",
	"Zając", "Zakrzewski", "Zakrzewska", "Zawadzki", "Zawadzka", "Zieliński",
	"Zielińska", "Ziółkowski", "Ziółkowska", "Żak",
)

func nameSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func isFirstName(token string) bool {
	return maleFirstNames[token] || femaleFirstNames[token]
}

func isSurname(token string) bool {
	return surnames[token]
}

// capitalizedToken matches one capitalized word using the Polish alphabet.
var capitalizedToken = regexp.MustCompile(`[` + polishUpper + `][` + polishLower + `]+`)

type nameToken struct {
	text  string
	start int
	end   int
}

// matchNames scans text for plausible personal names using the static
// dictionaries. Three-token windows are matched first (double surnames,
// maternal/paternal chains); two-token windows are then matched only where
// they do not intersect an accepted three-token match, so the most specific
// match wins and "Jan Kowalski" inside a triple is not reported twice.
func matchNames(text string) []Span {
	idx := capitalizedToken.FindAllStringIndex(text, -1)
	if len(idx) == 0 {
		return nil
	}

	tokens := make([]nameToken, 0, len(idx))
	for _, loc := range idx {
		tokens = append(tokens, nameToken{text: text[loc[0]:loc[1]], start: loc[0], end: loc[1]})
	}

	var spans []Span
	var claimed [][2]int

	// Pass 1: three consecutive capitalized tokens.
	for i := 0; i+2 < len(tokens); i++ {
		a, b, c := tokens[i], tokens[i+1], tokens[i+2]
		if !adjacent(text, a, b) || !adjacent(text, b, c) {
			continue
		}
		union := func(t nameToken) bool { return isFirstName(t.text) || isSurname(t.text) }
		ok := (union(a) && union(b) && isSurname(c.text)) ||
			(isFirstName(a.text) && isSurname(b.text) && isSurname(c.text))
		if !ok {
			continue
		}
		spans = append(spans, Span{Kind: KindName, Value: text[a.start:c.end], Start: a.start})
		claimed = append(claimed, [2]int{a.start, c.end})
	}

	// Pass 2: first-name + surname pairs outside claimed ranges.
	for i := 0; i+1 < len(tokens); i++ {
		a, b := tokens[i], tokens[i+1]
		if !adjacent(text, a, b) {
			continue
		}
		if !isFirstName(a.text) || !isSurname(b.text) {
			continue
		}
		if intersectsAny(claimed, a.start, b.end) {
			continue
		}
		spans = append(spans, Span{Kind: KindName, Value: text[a.start:b.end], Start: a.start})
	}

	return spans
}

// adjacent reports whether two tokens are separated by whitespace only.
func adjacent(text string, a, b nameToken) bool {
	if b.start <= a.end {
		return false
	}
	for _, r := range text[a.end:b.start] {
		if r != ' ' && r != '\t' {
			return false
		}
	}
	return true
}

func intersectsAny(ranges [][2]int, start, end int) bool {
	for _, r := range ranges {
		if start < r[1] && end > r[0] {
			return true
		}
	}
	return false
}
