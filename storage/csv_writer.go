package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"olx-car-scraper/models"
)

// NullToken marks a field that could not be extracted. An empty cell would
// be indistinguishable from an empty string.
const NullToken = "NULL"

// CSVColumns is the header row, one column per record field.
var CSVColumns = []string{
	"external_id", "title", "price", "currency", "location", "seller_name", "seller_type",
	"description", "brand", "model", "year", "mileage_km", "fuel_type", "transmission",
	"engine_cc", "color", "image_urls", "source_url", "first_seen_at", "last_seen_at", "active",
}

// CSVWriter writes listing records as CSV.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	closer io.Closer
	writer *csv.Writer
}

// NewCSVWriter writes the header row to w. Close closes w if it is an
// io.Closer.
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVColumns); err != nil {
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("csv: write header: %w", err)
	}

	c := &CSVWriter{writer: cw}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}
	return c, nil
}

func (c *CSVWriter) Write(records []*models.ListingRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		images, err := json.Marshal(nonNil(r.ImageURLs))
		if err != nil {
			return fmt.Errorf("csv: encode image urls: %w", err)
		}
		row := []string{
			r.ExternalID,
			r.Title,
			csvFloat(r.Price),
			csvString(r.Currency),
			csvString(r.Location),
			csvString(r.SellerName),
			csvString(r.SellerType),
			csvString(r.Description),
			csvString(r.Brand),
			csvString(r.Model),
			csvInt(r.Year),
			csvInt(r.MileageKm),
			csvString(r.FuelType),
			csvString(r.Transmission),
			csvInt(r.EngineCC),
			csvString(r.Color),
			string(images),
			r.SourceURL,
			r.FirstSeenAt.UTC().Format(time.RFC3339),
			r.LastSeenAt.UTC().Format(time.RFC3339),
			strconv.FormatBool(r.Active),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying writer.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return err
	}
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

func csvString(s *string) string {
	if s == nil {
		return NullToken
	}
	return *s
}

func csvInt(n *int) string {
	if n == nil {
		return NullToken
	}
	return strconv.Itoa(*n)
}

func csvFloat(f *float64) string {
	if f == nil {
		return NullToken
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
