package amazon

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"shopscout/config"
	"shopscout/models"
	"shopscout/scraper"
	"shopscout/utils"
)

const site = models.SiteAmazon

// electronicKeywords identifies queries where the card's brand element is
// unreliable and the first word of the product name is the better brand.
var electronicKeywords = []string{
	"laptop", "mobile", "phone", "tablet", "smartphone", "headphone",
	"earphone", "speaker", "camera", "watch", "smartwatch", "tv",
	"television", "monitor", "printer", "router", "mouse", "keyboard",
}

// Scraper extracts product records from Amazon search result pages.
type Scraper struct {
	cfg       *config.Config
	logger    *utils.Logger
	retry     *utils.RetryConfig
	seenLinks *utils.KeySet
}

// New creates a ready-to-use Amazon Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:    cfg,
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		seenLinks: utils.NewKeySet(),
	}
}

// Site returns the site name recorded on every scraped record.
func (s *Scraper) Site() string { return site }

// card mirrors the fields pulled out of one search-result element.
type card struct {
	Name         string `json:"name"`
	Price        string `json:"price"`
	Rating       string `json:"rating"`
	RatingsCount string `json:"ratings_count"`
	Brand        string `json:"brand"`
	Link         string `json:"link"`
	Thumbnail    string `json:"thumbnail"`
}

// Search scrapes up to PagesToScrape result pages for the query. Field
// extraction is best-effort per card; a miss fills the sentinel and the
// record is kept.
func (s *Scraper) Search(query string) ([]*models.RawProduct, error) {
	session, cancel := scraper.NewSession(s.cfg.ChromeBin)
	defer cancel()

	searchURL := "https://www.amazon.in/s?k=" + url.QueryEscape(query)
	isElectronic := queryIsElectronic(query)

	var products []*models.RawProduct
	currentURL := searchURL

	for page := 1; page <= s.cfg.PagesToScrape; page++ {
		cards, nextURL, err := s.scrapePage(session, currentURL, page)
		if err != nil {
			s.logger.Error("[amazon] Page %d failed: %v", page, err)
			break
		}
		if len(cards) == 0 {
			s.logger.Warn("[amazon] Page %d returned 0 cards — stopping", page)
			break
		}

		for _, c := range cards {
			p := s.toRawProduct(c, isElectronic)
			if p.Link != "" && p.Link != models.PriceNotAvailable && !s.seenLinks.Add(p.Link) {
				s.logger.Debug("[amazon] Skipping duplicate link: %s", p.Link)
				continue
			}
			products = append(products, p)
		}

		s.logger.Info("[amazon] Page %d done — %d records so far", page, len(products))

		if nextURL == "" || page >= s.cfg.PagesToScrape {
			break
		}
		currentURL = nextURL
		time.Sleep(time.Duration(s.cfg.RateLimitMs) * time.Millisecond)
	}

	s.logger.Info("[amazon] Search %q complete — %d raw records", query, len(products))
	return products, nil
}

func (s *Scraper) scrapePage(session context.Context, pageURL string, pageNum int) ([]card, string, error) {
	var cards []card
	var nextURL string

	err := s.retry.Do(session, fmt.Sprintf("amazon-page-%d", pageNum), func() error {
		cards = cards[:0]
		nextURL = ""

		return scraper.Run(session, 90*time.Second,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(5*time.Second),

			chromedp.Evaluate(`
				(function() {
					var results = [];
					var items = document.querySelectorAll("[data-component-type='s-search-result']");
					for (var i = 0; i < items.length; i++) {
						var item = items[i];
						var text = function(sel) {
							var el = item.querySelector(sel);
							return el ? el.textContent.trim() : '';
						};
						var attr = function(sel, name) {
							var el = item.querySelector(sel);
							return el ? (el.getAttribute(name) || '') : '';
						};

						var ratingText = text("i.a-icon.a-icon-star-small span.a-icon-alt");
						var rating = ratingText ? ratingText.split(' ')[0] : '';

						var ratingsCount = text("span.a-size-base.s-underline-text");
						ratingsCount = ratingsCount ? ratingsCount.split(' ')[0].replace(/,/g, '') : '';

						results.push({
							name: text("h2.a-size-base-plus.a-spacing-none.a-color-base.a-text-normal, h2.a-size-medium.a-spacing-none.a-color-base.a-text-normal"),
							price: text("span.a-price-whole"),
							rating: rating,
							ratings_count: ratingsCount,
							brand: text("span.a-size-base-plus.a-color-base"),
							link: attr("a.a-link-normal.s-line-clamp-2.s-link-style.a-text-normal", "href"),
							thumbnail: attr("img.s-image", "src")
						});
					}
					return results;
				})()
			`, &cards),

			chromedp.Evaluate(`
				(function() {
					var next = document.querySelector("a.s-pagination-next");
					return next && next.href ? next.href : '';
				})()
			`, &nextURL),
		)
	})

	s.logger.Debug("[amazon] Page %d — found %d cards", pageNum, len(cards))
	return cards, nextURL, err
}

// toRawProduct applies sentinel fills and the electronics brand heuristic.
func (s *Scraper) toRawProduct(c card, isElectronic bool) *models.RawProduct {
	p := &models.RawProduct{
		Name:         c.Name,
		Brand:        c.Brand,
		Price:        c.Price,
		Rating:       c.Rating,
		RatingsCount: c.RatingsCount,
		Website:      site,
		Link:         c.Link,
		Thumbnail:    c.Thumbnail,
		ScrapedAt:    time.Now(),
	}

	if p.Price != "" {
		p.Price = "₹" + p.Price
	} else {
		p.Price = models.PriceNotAvailable
		p.MarkDefaulted("price")
	}
	if p.Rating == "" {
		p.Rating = models.NotRated
		p.MarkDefaulted("rating")
	}
	if p.RatingsCount == "" {
		p.RatingsCount = "0"
		p.MarkDefaulted("ratings_count")
	}
	if p.Brand == "" {
		p.Brand = "Unknown Brand"
		p.MarkDefaulted("brand")
	}
	if isElectronic && p.Name != "" {
		p.Brand = strings.Fields(p.Name)[0]
	}
	if p.Link == "" {
		p.Link = models.PriceNotAvailable
		p.MarkDefaulted("link")
	}
	if p.Thumbnail == "" {
		p.MarkDefaulted("thumbnail")
	}

	// Make relative card links absolute.
	if strings.HasPrefix(p.Link, "/") {
		p.Link = "https://www.amazon.in" + p.Link
	}

	return p
}

// FetchRatings visits a product detail page and extracts the overall rating
// and review count. Failures produce an error-status detail record, never an
// aborted batch.
func (s *Scraper) FetchRatings(link string) (*models.RatingDetail, error) {
	session, cancel := scraper.NewSession(s.cfg.ChromeBin)
	defer cancel()

	detail := &models.RatingDetail{
		Rating:       models.NotRated,
		RatingsCount: "0",
		Status:       "success",
	}

	err := s.retry.Do(session, "amazon-detail", func() error {
		var rating, count string

		err := scraper.Run(session, 60*time.Second,
			chromedp.Navigate(link),
			chromedp.Sleep(4*time.Second),
			chromedp.Evaluate(`
				(function() {
					var el = document.querySelector("i.a-icon.a-icon-star span");
					return el ? el.innerHTML.split(' ')[0] : '';
				})()
			`, &rating),
			chromedp.Evaluate(`
				(function() {
					var el = document.querySelector("span[id='acrCustomerReviewText']");
					return el ? el.innerHTML.split(' ')[0] : '';
				})()
			`, &count),
		)
		if err != nil {
			return fmt.Errorf("chromedp detail extract: %w", err)
		}

		if rating != "" {
			detail.Rating = rating
		}
		if count != "" {
			detail.RatingsCount = count
		}
		return nil
	})

	if err != nil {
		detail.Status = "error"
		detail.Message = err.Error()
		return detail, err
	}
	return detail, nil
}

func queryIsElectronic(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range electronicKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
