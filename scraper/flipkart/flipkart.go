package flipkart

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

const site = models.SiteFlipkart

// Scraper extracts product records from Flipkart search result pages.
type Scraper struct {
	cfg       *config.Config
	logger    *utils.Logger
	retry     *utils.RetryConfig
	seenLinks *utils.KeySet
}

// New creates a ready-to-use Flipkart Scraper.
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

type card struct {
	Name         string `json:"name"`
	Price        string `json:"price"`
	Rating       string `json:"rating"`
	RatingsCount string `json:"ratings_count"`
	Brand        string `json:"brand"`
	Link         string `json:"link"`
	Thumbnail    string `json:"thumbnail"`
}

// Search scrapes up to PagesToScrape result pages for the query. Flipkart
// paginates by URL parameter, so each page is an independent navigation.
func (s *Scraper) Search(query string) ([]*models.RawProduct, error) {
	session, cancel := scraper.NewSession(s.cfg.ChromeBin)
	defer cancel()

	var products []*models.RawProduct

	for page := 1; page <= s.cfg.PagesToScrape; page++ {
		pageURL := fmt.Sprintf("https://www.flipkart.com/search?q=%s&page=%d",
			url.QueryEscape(query), page)

		cards, err := s.scrapePage(session, pageURL, page)
		if err != nil {
			s.logger.Error("[flipkart] Page %d failed: %v", page, err)
			break
		}
		if len(cards) == 0 {
			s.logger.Warn("[flipkart] Page %d returned 0 cards — stopping", page)
			break
		}

		for _, c := range cards {
			if c.Name == "" {
				// A card without a name is navigation chrome, not a product.
				continue
			}
			p := s.toRawProduct(c)
			if p.Link != "" && !s.seenLinks.Add(p.Link) {
				s.logger.Debug("[flipkart] Skipping duplicate link: %s", p.Link)
				continue
			}
			products = append(products, p)
		}

		s.logger.Info("[flipkart] Page %d done — %d records so far", page, len(products))

		if page < s.cfg.PagesToScrape {
			time.Sleep(time.Duration(s.cfg.RateLimitMs) * time.Millisecond)
		}
	}

	s.logger.Info("[flipkart] Search %q complete — %d raw records", query, len(products))
	return products, nil
}

func (s *Scraper) scrapePage(session context.Context, pageURL string, pageNum int) ([]card, error) {
	var cards []card

	err := s.retry.Do(session, fmt.Sprintf("flipkart-page-%d", pageNum), func() error {
		cards = cards[:0]

		return scraper.Run(session, 90*time.Second,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(5*time.Second),

			chromedp.Evaluate(`
				(function() {
					var results = [];
					var items = document.querySelectorAll("div[data-id]");
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

						var name = '';
						var nameEl = item.querySelector("a.wjcEIp, a.WKTcLC, div.KzDlHZ");
						if (nameEl) {
							name = nameEl.tagName === 'A'
								? (nameEl.getAttribute('title') || nameEl.textContent.trim())
								: nameEl.textContent.trim();
						}

						var ratingsText = text("span.Wphh3N");
						var ratingsCount = '';
						if (ratingsText) {
							ratingsCount = ratingsText.split('Ratings')[0].trim().replace(/,/g, '');
						}

						results.push({
							name: name,
							price: text("div.Nx9bqj._4b5DiR, div.Nx9bqj"),
							rating: text("div.XQDdHH"),
							ratings_count: ratingsCount,
							brand: text("div.syl9yP"),
							link: attr("a.WKTcLC.BwBZTg, a.WKTcLC, a.wjcEIp", "href"),
							thumbnail: attr("img.DByuf4, img._53J4C-", "src")
						});
					}
					return results;
				})()
			`, &cards),
		)
	})

	s.logger.Debug("[flipkart] Page %d — found %d cards", pageNum, len(cards))
	return cards, err
}

// toRawProduct applies sentinel fills; when the card has no brand element the
// first word of the name stands in.
func (s *Scraper) toRawProduct(c card) *models.RawProduct {
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

	if p.Price == "" {
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
		if fields := strings.Fields(p.Name); len(fields) > 0 {
			p.Brand = fields[0]
		} else {
			p.Brand = "Unknown Brand"
		}
		p.MarkDefaulted("brand")
	}
	if p.Link == "" {
		p.MarkDefaulted("link")
	} else if strings.HasPrefix(p.Link, "/") {
		p.Link = "https://www.flipkart.com" + p.Link
	}
	if p.Thumbnail == "" {
		p.MarkDefaulted("thumbnail")
	}

	return p
}

// FetchRatings visits a product detail page and extracts the overall rating
// and review count.
func (s *Scraper) FetchRatings(link string) (*models.RatingDetail, error) {
	session, cancel := scraper.NewSession(s.cfg.ChromeBin)
	defer cancel()

	detail := &models.RatingDetail{
		Rating:       models.NotRated,
		RatingsCount: "0",
		Status:       "success",
	}

	err := s.retry.Do(session, "flipkart-detail", func() error {
		var rating, count string

		err := scraper.Run(session, 60*time.Second,
			chromedp.Navigate(link),
			chromedp.Sleep(4*time.Second),
			chromedp.Evaluate(`
				(function() {
					var root = document.querySelector("div.C7fEHH") || document;
					var el = root.querySelector("div.XQDdHH");
					return el ? el.textContent.trim() : '';
				})()
			`, &rating),
			chromedp.Evaluate(`
				(function() {
					var root = document.querySelector("div.C7fEHH") || document;
					var el = root.querySelector("span.Wphh3N span");
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
