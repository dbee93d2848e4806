package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"olx-car-scraper/extract"
	"olx-car-scraper/models"
	"olx-car-scraper/utils"
)

// ValidationError lists the fields of a record that broke a constraint.
type ValidationError struct {
	ExternalID string
	Problems   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record %q: %s", e.ExternalID, strings.Join(e.Problems, "; "))
}

// Cleaner normalises candidate records and checks them against the
// record constraints before they reach storage.
type Cleaner struct {
	logger   *utils.Logger
	validate *validator.Validate
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger, validate: validator.New()}
}

// Clean returns a normalised copy of rec: text fields have collapsed
// whitespace, blank optional text becomes nil and image URLs are
// deduplicated. rec itself is not modified.
func (c *Cleaner) Clean(rec *models.ListingRecord) *models.ListingRecord {
	out := rec.Clone()
	out.ExternalID = strings.TrimSpace(out.ExternalID)
	out.Title = extract.Normalise(out.Title)
	out.SourceURL = strings.TrimSpace(out.SourceURL)

	for _, field := range []**string{
		&out.Currency, &out.Location, &out.SellerName, &out.SellerType, &out.Description,
		&out.Brand, &out.Model, &out.FuelType, &out.Transmission, &out.Color,
	} {
		*field = normaliseOptional(*field)
	}

	seen := make(map[string]struct{}, len(out.ImageURLs))
	images := make([]string, 0, len(out.ImageURLs))
	for _, u := range out.ImageURLs {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		images = append(images, u)
	}
	out.ImageURLs = images
	return out
}

// Validate checks rec against the constraints declared on ListingRecord.
func (c *Cleaner) Validate(rec *models.ListingRecord) error {
	err := c.validate.Struct(rec)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate %q: %w", rec.ExternalID, err)
	}
	problems := make([]string, 0, len(verrs))
	for _, e := range verrs {
		if e.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s failed %s=%s", e.Field(), e.Tag(), e.Param()))
		} else {
			problems = append(problems, fmt.Sprintf("%s failed %s", e.Field(), e.Tag()))
		}
	}
	c.logger.Debug("[cleaner] Rejected %s: %s", rec.ExternalID, strings.Join(problems, "; "))
	return &ValidationError{ExternalID: rec.ExternalID, Problems: problems}
}

func normaliseOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := extract.Normalise(*s)
	if v == "" {
		return nil
	}
	return &v
}
