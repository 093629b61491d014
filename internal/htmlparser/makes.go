package htmlparser

import "strings"

// knownMakes is the closed list used by the card and section strategies to
// decide whether a blob of text is talking about a vehicle at all.
var knownMakes = []string{
	"Acura", "Alfa Romeo", "Aston Martin", "Audi", "Bentley", "BMW", "Buick",
	"Cadillac", "Chevrolet", "Chrysler", "Dodge", "Ferrari", "Fiat", "Ford",
	"Genesis", "GMC", "Honda", "Hummer", "Hyundai", "Infiniti", "Jaguar",
	"Jeep", "Kia", "Lamborghini", "Land Rover", "Lexus", "Lincoln", "Lucid",
	"Maserati", "Mazda", "Mercedes-Benz", "Mini", "Mitsubishi", "Nissan",
	"Polestar", "Pontiac", "Porsche", "Ram", "Rivian", "Rolls-Royce", "Saab",
	"Saturn", "Scion", "Smart", "Subaru", "Suzuki", "Tesla", "Toyota",
	"Volkswagen", "Volvo",
}

// makeAliases canonicalizes the colloquial forms dealers actually print.
var makeAliases = map[string]string{
	"chevy":    "Chevrolet",
	"vw":       "Volkswagen",
	"mercedes": "Mercedes-Benz",
	"benz":     "Mercedes-Benz",
	"landrover": "Land Rover",
}

// colorVocabulary backs the unlabeled color extractor.
var colorVocabulary = []string{
	"black", "white", "silver", "gray", "grey", "red", "blue", "green",
	"brown", "beige", "tan", "gold", "orange", "yellow", "purple", "maroon",
	"burgundy", "charcoal", "pearl", "champagne", "bronze", "navy",
}

// modelStopwords are capture fragments that are marketing copy, not models.
var modelStopwords = map[string]bool{
	"for":       true,
	"sale":      true,
	"certified": true,
	"pre":       true,
	"owned":     true,
	"used":      true,
	"new":       true,
}

// titleCase capitalizes the first letter of each space- or hyphen-separated
// word and lowercases the rest, preserving all-caps short tokens (GMC, BMW).
func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var b strings.Builder
	word := true
	for _, r := range s {
		switch {
		case r == ' ' || r == '-':
			word = true
			b.WriteRune(r)
		case word:
			b.WriteRune(toUpper(r))
			word = false
		default:
			b.WriteRune(toLower(r))
		}
	}
	return b.String()
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - 32
	}
	return r
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + 32
	}
	return r
}
