package holiday

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"resty.dev/v3"

	"github.com/edgard/holidaybot/internal/errs"
)

const (
	holidaySelector  = "div.block.holidays ul.itemsNet li div.caption span.title a"
	dayTitleSelector = "div.block.main h1.day_title"
)

// CalendScraper reads holidays from calend.ru day pages
// (https://www.calend.ru/day/YYYY-M-D).
type CalendScraper struct {
	client  *resty.Client
	baseURL string
}

// NewCalendScraper creates a scraper for pages under baseURL.
func NewCalendScraper(baseURL string, timeout time.Duration) *CalendScraper {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; holidaybot/1.0)")
	return &CalendScraper{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/") + "/",
	}
}

// PageURL returns the page address for date.
func (c *CalendScraper) PageURL(date time.Time) string {
	return fmt.Sprintf("%s%d-%d-%d", c.baseURL, date.Year(), int(date.Month()), date.Day())
}

// Lookup downloads and parses the page for date.
func (c *CalendScraper) Lookup(ctx context.Context, date time.Time) (*Holidays, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(c.PageURL(date))
	if err != nil {
		return nil, errs.NewProviderError("calendar request failed", err)
	}
	body := resp.RawResponse.Body
	defer body.Close()

	if resp.RawResponse.StatusCode != http.StatusOK {
		return nil, errs.NewProviderError(fmt.Sprintf("calendar returned status %d", resp.RawResponse.StatusCode), nil)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, errs.NewProviderError("failed to parse calendar page", err)
	}
	return ParsePage(doc), nil
}

// ParsePage extracts the day label and holiday titles from a day page.
func ParsePage(doc *goquery.Document) *Holidays {
	result := &Holidays{Holidays: []string{}}

	doc.Find(holidaySelector).Each(func(_ int, s *goquery.Selection) {
		if title := strings.TrimSpace(s.Text()); title != "" {
			result.Holidays = append(result.Holidays, title)
		}
	})

	// The heading holds the date as its own text node, followed by nested
	// markup with the weekday.
	heading := doc.Find(dayTitleSelector).First()
	heading.Contents().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) != "#text" {
			return true
		}
		if day := cleanDay(s.Text()); day != "" {
			result.Day = day
			return false
		}
		return true
	})
	if result.Day == "" {
		result.Day = cleanDay(heading.Text())
	}

	return result
}

func cleanDay(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}
