// Package extract turns loose listing text into typed fields.
//
// Every extractor is best effort: it returns ok=false instead of failing, so a
// miss on one field never blocks the others. Where several terms can match,
// the priority is the order of the exported tables below.
package extract

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"olx-car-scraper/models"
)

var (
	// priceRegexp captures an integer part with optional thousands
	// separators and an optional 1-2 digit decimal part.
	priceRegexp = regexp.MustCompile(`(\d{1,3}(?:[.,\s]\d{3})+|\d+)(?:[.,](\d{1,2}))?`)
	// yearRegexp captures the first plausible model year.
	yearRegexp = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	// mileageRegexp captures a number directly followed by km. Dots, commas
	// and no-break spaces group thousands freely; a plain space only after a
	// 2-3 digit lead, so "Golf 2 150 km" stays 150.
	mileageRegexp = regexp.MustCompile(`(?i)\b(\d{1,3}(?:[.,\x{00a0}\x{202f}]\d{3})+|\d{2,3}(?: \d{3})+|\d+)[\s\x{00a0}\x{202f}]*kms?\b`)
	// engineRegexp captures displacement written as cm3 / cm³ / cc.
	engineRegexp = regexp.MustCompile(`(?i)\b(\d\.\d{3}|\d{3,4})\s*(?:cm3|cm³|cc)`)
	// idRegexp captures the listing identifier embedded in detail URLs.
	idRegexp = regexp.MustCompile(`ID([0-9A-Za-z]+)`)

	currencyReplacer = strings.NewReplacer(
		"€", " ", "Euros", " ", "euros", " ", "EUR", " ", "eur", " ",
		"\u00a0", " ", "\u202f", " ",
	)
)

// Term maps every spelling of a value to its canonical name.
type Term struct {
	Name    string
	Aliases []string
}

// FuelTypes is checked top to bottom; the first alias found in the text wins.
// Specific terms come first so that "híbrido gasolina" is a hybrid and
// "gasóleo" is never read as gas.
var FuelTypes = []Term{
	{Name: "Elétrico", Aliases: []string{"elétrico", "eletrico", "electrico", "electric"}},
	{Name: "Híbrido", Aliases: []string{"híbrido", "hibrido", "hybrid", "plug-in"}},
	{Name: "Diesel", Aliases: []string{"diesel", "gasóleo", "gasoleo"}},
	{Name: "Gasolina", Aliases: []string{"gasolina", "petrol"}},
	{Name: "GPL", Aliases: []string{"gpl", "lpg"}},
	{Name: "Gás", Aliases: []string{"gás", "gas"}},
}

// Transmissions lists automatic before manual: automatic wins when both
// appear.
var Transmissions = []Term{
	{Name: "Automatic", Aliases: []string{"automático", "automatico", "automática", "automatica", "automatic"}},
	{Name: "Manual", Aliases: []string{"manual"}},
}

// Brands are matched on whole tokens. Within a brand, multi-word aliases
// are listed first.
var Brands = []Term{
	{Name: "Mercedes-Benz", Aliases: []string{"mercedes-benz", "mercedes benz", "mercedes"}},
	{Name: "Alfa Romeo", Aliases: []string{"alfa romeo", "alfa"}},
	{Name: "Land Rover", Aliases: []string{"land rover", "land-rover"}},
	{Name: "Aston Martin", Aliases: []string{"aston martin"}},
	{Name: "Rolls-Royce", Aliases: []string{"rolls-royce", "rolls royce"}},
	{Name: "Volkswagen", Aliases: []string{"volkswagen", "vw"}},
	{Name: "Citroën", Aliases: []string{"citroën", "citroen"}},
	{Name: "Škoda", Aliases: []string{"škoda", "skoda"}},
	{Name: "BMW", Aliases: []string{"bmw"}},
	{Name: "Audi", Aliases: []string{"audi"}},
	{Name: "Abarth", Aliases: []string{"abarth"}},
	{Name: "Cupra", Aliases: []string{"cupra"}},
	{Name: "Dacia", Aliases: []string{"dacia"}},
	{Name: "Ferrari", Aliases: []string{"ferrari"}},
	{Name: "Fiat", Aliases: []string{"fiat"}},
	{Name: "Ford", Aliases: []string{"ford"}},
	{Name: "Honda", Aliases: []string{"honda"}},
	{Name: "Hyundai", Aliases: []string{"hyundai"}},
	{Name: "Jaguar", Aliases: []string{"jaguar"}},
	{Name: "Jeep", Aliases: []string{"jeep"}},
	{Name: "Kia", Aliases: []string{"kia"}},
	{Name: "Lancia", Aliases: []string{"lancia"}},
	{Name: "Lexus", Aliases: []string{"lexus"}},
	{Name: "Mazda", Aliases: []string{"mazda"}},
	{Name: "Mini", Aliases: []string{"mini"}},
	{Name: "Mitsubishi", Aliases: []string{"mitsubishi"}},
	{Name: "Nissan", Aliases: []string{"nissan"}},
	{Name: "Opel", Aliases: []string{"opel"}},
	{Name: "Peugeot", Aliases: []string{"peugeot"}},
	{Name: "Porsche", Aliases: []string{"porsche"}},
	{Name: "Renault", Aliases: []string{"renault"}},
	{Name: "Seat", Aliases: []string{"seat"}},
	{Name: "Smart", Aliases: []string{"smart"}},
	{Name: "Subaru", Aliases: []string{"subaru"}},
	{Name: "Suzuki", Aliases: []string{"suzuki"}},
	{Name: "Tesla", Aliases: []string{"tesla"}},
	{Name: "Toyota", Aliases: []string{"toyota"}},
	{Name: "Volvo", Aliases: []string{"volvo"}},
}

// Price returns the first amount found in text. The currency is always the
// market's single currency when an amount is found.
func Price(text string) (float64, string, bool) {
	cleaned := currencyReplacer.Replace(text)
	m := priceRegexp.FindStringSubmatch(cleaned)
	if m == nil {
		return 0, "", false
	}

	amount, err := strconv.ParseFloat(digitsOnly(m[1]), 64)
	if err != nil {
		return 0, "", false
	}
	if m[2] != "" {
		frac, err := strconv.ParseFloat("0."+m[2], 64)
		if err == nil {
			amount += frac
		}
	}
	return amount, models.DefaultCurrency, true
}

// Year returns the first 19xx/20xx token. It does not check the calendar.
func Year(title string) (int, bool) {
	m := yearRegexp.FindString(title)
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return y, true
}

// Mileage returns the first number immediately followed by km.
func Mileage(title string) (int, bool) {
	m := mileageRegexp.FindStringSubmatch(title)
	if m == nil {
		return 0, false
	}
	km, err := strconv.Atoi(digitsOnly(m[1]))
	if err != nil {
		return 0, false
	}
	return km, true
}

// FuelType returns the canonical fuel of the first FuelTypes entry found.
func FuelType(title string) (string, bool) {
	return firstTerm(FuelTypes, title)
}

// Transmission returns "Automatic" or "Manual".
func Transmission(title string) (string, bool) {
	return firstTerm(Transmissions, title)
}

// EngineCC returns the displacement in cm³.
func EngineCC(text string) (int, bool) {
	m := engineRegexp.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	cc, err := strconv.Atoi(digitsOnly(m[1]))
	if err != nil || cc == 0 {
		return 0, false
	}
	return cc, true
}

// SellerType classifies the seller as "private" or "dealer".
func SellerType(text string) (string, bool) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "particular"):
		return "private", true
	case strings.Contains(lower, "profissional"), strings.Contains(lower, "empresa"):
		return "dealer", true
	}
	return "", false
}

// ExternalID returns the identifier embedded in the last path segment of a
// detail URL, e.g. ".../bmw-e30-325i-IDHvZ3k.html" -> "HvZ3k". When the
// segment holds several ID tokens the last one wins.
func ExternalID(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Path == "" {
		return "", false
	}
	segment := path.Base(u.Path)
	matches := idRegexp.FindAllStringSubmatch(segment, -1)
	if len(matches) == 0 {
		return "", false
	}
	return matches[len(matches)-1][1], true
}

// Brand returns the canonical brand that appears earliest in the title.
func Brand(title string) (string, bool) {
	name, _, ok := findBrand(tokenise(title))
	return name, ok
}

// Model returns the first token after the brand that is not a year.
func Model(title string) (string, bool) {
	tokens := tokenise(title)
	_, next, ok := findBrand(tokens)
	if !ok {
		return "", false
	}
	for _, tok := range tokens[next:] {
		if strings.Trim(tok, "-") == "" || yearRegexp.MatchString(tok) {
			continue
		}
		return tok, true
	}
	return "", false
}

// Normalise strips leading/trailing whitespace and collapses internal whitespace.
func Normalise(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

func firstTerm(terms []Term, text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, term := range terms {
		for _, alias := range term.Aliases {
			if strings.Contains(lower, alias) {
				return term.Name, true
			}
		}
	}
	return "", false
}

// findBrand returns the brand and the index of the token after it.
func findBrand(tokens []string) (string, int, bool) {
	lower := make([]string, len(tokens))
	for i, t := range tokens {
		lower[i] = strings.ToLower(t)
	}

	for i := range lower {
		for _, brand := range Brands {
			for _, alias := range brand.Aliases {
				parts := strings.Fields(alias)
				if hasTokens(lower[i:], parts) {
					return brand.Name, i + len(parts), true
				}
			}
		}
	}
	return "", 0, false
}

func hasTokens(tokens, parts []string) bool {
	if len(parts) > len(tokens) {
		return false
	}
	for j, p := range parts {
		if tokens[j] != p {
			return false
		}
	}
	return true
}

func tokenise(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
