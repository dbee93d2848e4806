package olx

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"olx-car-scraper/extract"
	"olx-car-scraper/models"
)

// Selectors of the detail page. They are the only coupling to the site's markup.
const (
	selTitle       = "h1"
	selPrice       = `[data-testid="ad-price"]`
	selLocation    = `[data-testid="location"]`
	selDescription = `[data-testid="ad-description"]`
	selSeller      = `[data-testid="seller-name"]`
	selImages      = `img[data-testid="ad-image"]`
	selParameters  = `[data-testid="ad-parameters"] li`
)

// Parameter labels used in the ad's key/value list.
const (
	paramBrand        = "marca"
	paramModel        = "modelo"
	paramYear         = "ano"
	paramMileage      = "quilómetros"
	paramFuel         = "combustível"
	paramTransmission = "caixa de velocidades"
	paramEngine       = "cilindrada"
	paramColor        = "cor"
	paramSeller       = "tipo de anunciante"
)

// ParseErrorKind classifies a parse failure.
type ParseErrorKind int

const (
	MissingField ParseErrorKind = iota + 1
	MalformedPage
)

func (k ParseErrorKind) String() string {
	switch k {
	case MissingField:
		return "missing field"
	case MalformedPage:
		return "malformed page"
	}
	return "unknown"
}

// ParseError is returned when a detail page cannot produce a record.
type ParseError struct {
	Kind  ParseErrorKind
	Field string
	URL   string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse %s: %s %q", e.URL, e.Kind, e.Field)
	}
	return fmt.Sprintf("parse %s: %s", e.URL, e.Kind)
}

// Is matches ErrMissingField and ErrMalformedPage by kind.
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	return ok && t.Field == "" && t.URL == "" && t.Kind == e.Kind
}

var (
	ErrMissingField  = &ParseError{Kind: MissingField}
	ErrMalformedPage = &ParseError{Kind: MalformedPage}
)

// IsMissingID reports whether err is a parse failure caused by a detail URL
// without an identifier.
func IsMissingID(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Kind == MissingField && pe.Field == "external_id"
}

// Parser converts a detail page into a ListingRecord. It performs no I/O.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse extracts a record from html. The returned record has zero
// FirstSeenAt/LastSeenAt; the reconciler stamps them.
func (p *Parser) Parse(html, pageURL string) (*models.ListingRecord, error) {
	base, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || !base.IsAbs() || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, &ParseError{Kind: MalformedPage, Field: "source_url", URL: pageURL}
	}

	id, ok := extract.ExternalID(base.String())
	if !ok {
		return nil, &ParseError{Kind: MissingField, Field: "external_id", URL: pageURL}
	}

	if strings.TrimSpace(html) == "" {
		return nil, &ParseError{Kind: MalformedPage, URL: pageURL}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ParseError{Kind: MalformedPage, URL: pageURL}
	}

	title := extract.Normalise(doc.Find(selTitle).First().Text())
	if title == "" {
		return nil, &ParseError{Kind: MissingField, Field: "title", URL: pageURL}
	}

	rec := &models.ListingRecord{
		ExternalID:  id,
		Title:       title,
		Location:    optionalText(doc, selLocation),
		SellerName:  optionalText(doc, selSeller),
		Description: optionalText(doc, selDescription),
		ImageURLs:   imageURLs(doc, base),
		SourceURL:   base.String(),
		Active:      true,
	}

	if amount, currency, ok := extract.Price(doc.Find(selPrice).First().Text()); ok {
		rec.Price = models.Ptr(amount)
		rec.Currency = models.Ptr(currency)
	}

	params := parameters(doc)
	description := ""
	if rec.Description != nil {
		description = *rec.Description
	}

	rec.Brand = firstOf(extract.Brand, title, params[paramBrand])
	if rec.Brand == nil && params[paramBrand] != "" {
		rec.Brand = models.Ptr(params[paramBrand])
	}
	rec.Model = firstOf(extract.Model, title)
	if rec.Model == nil && params[paramModel] != "" {
		rec.Model = models.Ptr(params[paramModel])
	}

	rec.Year = firstInt(extract.Year, title, params[paramYear], description)
	rec.MileageKm = firstInt(extract.Mileage, title, withUnit(params[paramMileage], "km"), description)
	rec.EngineCC = firstInt(extract.EngineCC, title, withUnit(params[paramEngine], "cm3"), description)
	rec.FuelType = firstOf(extract.FuelType, title, params[paramFuel], description)
	rec.Transmission = firstOf(extract.Transmission, title, params[paramTransmission], description)
	if c := params[paramColor]; c != "" {
		rec.Color = models.Ptr(c)
	}
	rec.SellerType = sellerType(params)

	return rec, nil
}

func optionalText(doc *goquery.Document, sel string) *string {
	text := extract.Normalise(doc.Find(sel).First().Text())
	if text == "" {
		return nil
	}
	return &text
}

// imageURLs resolves gallery sources, src before data-src, dropping
// duplicates and inline data URIs.
func imageURLs(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	urls := make([]string, 0)
	doc.Find(selImages).Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(src, "data:") {
			src = strings.TrimSpace(s.AttrOr("data-src", ""))
		}
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		urls = append(urls, abs)
	})
	return urls
}

// parameters reads the "Label: value" list. Items without a colon are
// stored with the whole text as label and an empty value.
func parameters(doc *goquery.Document) map[string]string {
	params := make(map[string]string)
	doc.Find(selParameters).Each(func(_ int, s *goquery.Selection) {
		text := extract.Normalise(s.Text())
		if text == "" {
			return
		}
		key, value, _ := strings.Cut(text, ":")
		key = strings.ToLower(strings.TrimSpace(key))
		if _, exists := params[key]; !exists {
			params[key] = strings.TrimSpace(value)
		}
	})
	return params
}

func sellerType(params map[string]string) *string {
	if v, ok := params[paramSeller]; ok {
		if st, ok := extract.SellerType(v); ok {
			return &st
		}
	}
	for key := range params {
		if key == "particular" || key == "profissional" {
			if st, ok := extract.SellerType(key); ok {
				return &st
			}
		}
	}
	return nil
}

// withUnit prepares a parameter value for the title extractors: digit
// groups are joined ("1 995" -> "1995") and a bare number gets unit.
func withUnit(value, unit string) string {
	value = joinDigitGroups(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	if !strings.ContainsFunc(value, unicode.IsLetter) {
		return value + " " + unit
	}
	return value
}

func joinDigitGroups(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsSpace(r) && i > 0 && i+1 < len(runes) &&
			unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func firstOf(fn func(string) (string, bool), sources ...string) *string {
	for _, src := range sources {
		if src == "" {
			continue
		}
		if v, ok := fn(src); ok {
			return &v
		}
	}
	return nil
}

func firstInt(fn func(string) (int, bool), sources ...string) *int {
	for _, src := range sources {
		if src == "" {
			continue
		}
		if v, ok := fn(src); ok {
			return &v
		}
	}
	return nil
}
