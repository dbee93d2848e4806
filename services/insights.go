package services

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"olx-car-scraper/models"
	"olx-car-scraper/utils"
)

const (
	topSellersLimit  = 10
	recentWindow     = 7 * 24 * time.Hour
	summaryLocations = 5
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate computes the report over records as of now. Records without a
// price are counted but left out of the price statistics.
func (s *InsightService) Generate(records []*models.ListingRecord, now time.Time) *models.InsightReport {
	report := &models.InsightReport{
		TopSellers:         make([]models.SellerCount, 0),
		ListingsByLocation: make(map[string]models.LocationStat),
	}

	if len(records) == 0 {
		return report
	}

	report.TotalListings = len(records)

	var prices []float64
	sellers := make(map[string]int)
	locationTotals := make(map[string]float64)
	locationPriced := make(map[string]int)

	for _, r := range records {
		if r.Active {
			report.ActiveListings++
		}
		if !r.FirstSeenAt.IsZero() && now.Sub(r.FirstSeenAt) <= recentWindow {
			report.RecentListings++
		}
		if r.SellerName != nil && *r.SellerName != "" {
			sellers[*r.SellerName]++
		}
		if r.Price != nil {
			prices = append(prices, *r.Price)
			if report.MostExpensive == nil || *r.Price > *report.MostExpensive.Price {
				report.MostExpensive = r
			}
		}
		if r.Location != nil && *r.Location != "" {
			stat := report.ListingsByLocation[*r.Location]
			stat.Count++
			report.ListingsByLocation[*r.Location] = stat
			if r.Price != nil {
				locationTotals[*r.Location] += *r.Price
				locationPriced[*r.Location]++
			}
		}
	}

	// Price stats (only listings with a price)
	if len(prices) > 0 {
		sort.Float64s(prices)
		var total float64
		for _, p := range prices {
			total += p
		}
		report.PricedListings = len(prices)
		report.AveragePrice = round2(total / float64(len(prices)))
		report.MinPrice = round2(prices[0])
		report.MaxPrice = round2(prices[len(prices)-1])
		report.MedianPrice = round2(median(prices))
	}

	for loc, stat := range report.ListingsByLocation {
		if n := locationPriced[loc]; n > 0 {
			stat.AveragePrice = round2(locationTotals[loc] / float64(n))
			report.ListingsByLocation[loc] = stat
		}
	}

	for seller, count := range sellers {
		report.TopSellers = append(report.TopSellers, models.SellerCount{Seller: seller, Count: count})
	}
	sort.Slice(report.TopSellers, func(i, j int) bool {
		if report.TopSellers[i].Count != report.TopSellers[j].Count {
			return report.TopSellers[i].Count > report.TopSellers[j].Count
		}
		return report.TopSellers[i].Seller < report.TopSellers[j].Seller
	})
	if len(report.TopSellers) > topSellersLimit {
		report.TopSellers = report.TopSellers[:topSellersLimit]
	}

	s.logger.Debug("[insights] %d records, %d priced, %d locations",
		report.TotalListings, report.PricedListings, len(report.ListingsByLocation))
	return report
}

func (s *InsightService) Print(w io.Writer, r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 OLX CAR LISTINGS INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total listings         : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  Active listings        : \033[1m%d\033[0m\n", r.ActiveListings)
	fmt.Fprintf(w, "  New in the last 7 days : \033[1m%d\033[0m\n", r.RecentListings)
	fmt.Fprintln(w)

	// Price Stats
	fmt.Fprintf(w, "\033[1;33m  Price Statistics\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedListings > 0 {
		fmt.Fprintf(w, "  Priced listings : %d\n", r.PricedListings)
		fmt.Fprintf(w, "  Average price   : \033[1;32m%s\033[0m\n", euros(r.AveragePrice))
		fmt.Fprintf(w, "  Median price    : \033[1;32m%s\033[0m\n", euros(r.MedianPrice))
		fmt.Fprintf(w, "  Minimum price   : \033[1;32m%s\033[0m\n", euros(r.MinPrice))
		fmt.Fprintf(w, "  Maximum price   : \033[1;32m%s\033[0m\n", euros(r.MaxPrice))
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	// Most Expensive
	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Listing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.MostExpensive.Title, 50))
		fmt.Fprintf(w, "  Location : %s\n", valueOr(r.MostExpensive.Location, "unknown"))
		fmt.Fprintf(w, "  Price    : \033[1;31m%s\033[0m\n", euros(*r.MostExpensive.Price))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\033[1;33m  Top Sellers\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopSellers) == 0 {
		fmt.Fprintf(w, "  No seller data\n")
	} else {
		for i, sc := range r.TopSellers {
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-40s %d\n", i+1, truncate(sc.Seller, 38), sc.Count)
		}
	}
	fmt.Fprintln(w)

	// Listings by Location
	fmt.Fprintf(w, "\033[1;33m  Listings by Location\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ListingsByLocation) == 0 {
		fmt.Fprintf(w, "  No location data\n")
	} else {
		for _, loc := range locationsByCount(r.ListingsByLocation) {
			stat := r.ListingsByLocation[loc]
			bar := strings.Repeat("█", min(stat.Count, 30))
			avg := "n/a"
			if stat.AveragePrice > 0 {
				avg = euros(stat.AveragePrice)
			}
			fmt.Fprintf(w, "  %-30s %s (%d, avg %s)\n", truncate(loc, 28), bar, stat.Count, avg)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// PrintRunSummary prints the short report shown after a scrape: count,
// price range, average and the first few locations.
func (s *InsightService) PrintRunSummary(w io.Writer, query string, records []*models.ListingRecord) {
	fmt.Fprintf(w, "\n=== SCRAPING SUMMARY ===\n")
	fmt.Fprintf(w, "Car Model: %s\n", query)
	fmt.Fprintf(w, "Total Listings Found: %d\n", len(records))
	if len(records) == 0 {
		return
	}

	var prices []float64
	var locations []string
	seen := make(map[string]struct{})
	for _, r := range records {
		if r.Price != nil {
			prices = append(prices, *r.Price)
		}
		if r.Location != nil && *r.Location != "" {
			if _, dup := seen[*r.Location]; !dup {
				seen[*r.Location] = struct{}{}
				locations = append(locations, *r.Location)
			}
		}
	}

	if len(prices) > 0 {
		sort.Float64s(prices)
		var total float64
		for _, p := range prices {
			total += p
		}
		fmt.Fprintf(w, "Price Range: %s - %s\n", euros(prices[0]), euros(prices[len(prices)-1]))
		fmt.Fprintf(w, "Average Price: %s\n", euros(total/float64(len(prices))))
	}

	if len(locations) > 0 {
		shown := locations
		if len(shown) > summaryLocations {
			shown = shown[:summaryLocations]
		}
		fmt.Fprintf(w, "Locations: %s\n", strings.Join(shown, ", "))
		if extra := len(locations) - len(shown); extra > 0 {
			fmt.Fprintf(w, "... and %d more\n", extra)
		}
	}
}

func locationsByCount(stats map[string]models.LocationStat) []string {
	locs := make([]string, 0, len(stats))
	for loc := range stats {
		locs = append(locs, loc)
	}
	sort.Slice(locs, func(i, j int) bool {
		if stats[locs[i]].Count != stats[locs[j]].Count {
			return stats[locs[i]].Count > stats[locs[j]].Count
		}
		return locs[i] < locs[j]
	})
	return locs
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// euros formats whole euros with thousands separators, e.g. €12,500.
func euros(v float64) string {
	return "€" + humanize.Commaf(float64(int64(v+0.5)))
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
