package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/xhad/twitoff/internal/models"
)

// Selectors locate timeline elements in a profile page. Defaults match Nitter markup.
type Selectors struct {
	Profile  string
	Username string
	Item     string
	Link     string
	Content  string
	Retweet  string
	Reply    string
	Pinned   string
	NextPage string
}

func DefaultSelectors() Selectors {
	return Selectors{
		Profile:  ".profile-card",
		Username: ".profile-card-username",
		Item:     ".timeline-item",
		Link:     "a.tweet-link",
		Content:  ".tweet-content",
		Retweet:  ".retweet-header",
		Reply:    ".replying-to",
		Pinned:   ".pinned",
		NextPage: ".show-more a",
	}
}

type ScraperConfig struct {
	BaseURL    string
	RateLimit  float64 // requests per second
	MaxPosts   int
	MaxPages   int
	Timeout    time.Duration
	UserAgent  string
	Selectors  Selectors
	OnProgress func(url string)
}

// Scraper reads an author's recent posts from an HTML timeline.
type Scraper struct {
	config   ScraperConfig
	client   *http.Client
	limiter  *rate.Limiter
	baseURL  *url.URL
	statusID *regexp.Regexp
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if config.MaxPosts == 0 {
		config.MaxPosts = 200
	}
	if config.MaxPages == 0 {
		config.MaxPages = 20
	}
	if config.UserAgent == "" {
		config.UserAgent = "twitoff/1.0"
	}
	if config.Selectors == (Selectors{}) {
		config.Selectors = DefaultSelectors()
	}

	parsedURL, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return nil, err
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("timeline base URL must be absolute: %q", config.BaseURL)
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseURL:  parsedURL,
		statusID: regexp.MustCompile(`/status/(\d+)`),
	}, nil
}

// FetchTimeline returns the author's profile and their original posts newer
// than sinceID, newest first. Retweets and replies are skipped.
func (s *Scraper) FetchTimeline(ctx context.Context, name string, sinceID int64) (models.Profile, []models.Post, error) {
	var profile models.Profile
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "/?#") {
		return profile, nil, fmt.Errorf("invalid author name %q: %w", name, models.ErrAuthorNotFound)
	}

	pageURL := s.baseURL.String() + "/" + url.PathEscape(name)
	var posts []models.Post
	seen := make(map[int64]bool)

	for page := 0; page < s.config.MaxPages && pageURL != ""; page++ {
		doc, err := s.fetch(ctx, pageURL)
		if err != nil {
			return profile, nil, fmt.Errorf("timeline of %q: %w", name, err)
		}

		if page == 0 {
			profile, err = s.extractProfile(doc, name)
			if err != nil {
				return profile, nil, err
			}
		}

		items, reachedSince := s.extractPosts(doc, sinceID)
		fresh := 0
		for _, item := range items {
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			fresh++
			if item.Retweet || item.Reply {
				continue
			}
			posts = append(posts, item)
			if len(posts) == s.config.MaxPosts {
				return profile, posts, nil
			}
		}

		if reachedSince || fresh == 0 {
			break
		}
		pageURL = s.nextPage(doc, pageURL)
	}

	return profile, posts, nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if s.config.OnProgress != nil {
		s.config.OnProgress(pageURL)
	}

	// Apply rate limiting
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, models.ErrAuthorNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, pageURL)
	}

	return goquery.NewDocumentFromReader(resp.Body)
}

func (s *Scraper) extractProfile(doc *goquery.Document, name string) (models.Profile, error) {
	card := doc.Find(s.config.Selectors.Profile).First()
	if card.Length() == 0 {
		return models.Profile{}, fmt.Errorf("no profile for %q: %w", name, models.ErrAuthorNotFound)
	}

	id := strings.TrimPrefix(cleanContent(card.Find(s.config.Selectors.Username).First().Text()), "@")
	if id == "" {
		id = name
	}
	return models.Profile{ID: id, Name: name}, nil
}

// extractPosts parses the timeline items of one page. The second result
// reports that an item at or below sinceID was reached.
func (s *Scraper) extractPosts(doc *goquery.Document, sinceID int64) ([]models.Post, bool) {
	sel := s.config.Selectors
	var posts []models.Post
	reachedSince := false

	doc.Find(sel.Item).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		href, ok := item.Find(sel.Link).First().Attr("href")
		if !ok {
			return true
		}
		m := s.statusID.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return true
		}
		// Pinned posts sit out of order and retweets carry the original
		// post's ID, so only the author's own timeline order can stop paging.
		retweet := item.Find(sel.Retweet).Length() > 0
		if item.Find(sel.Pinned).Length() > 0 {
			if id <= sinceID {
				return true
			}
		} else if !retweet && id <= sinceID {
			reachedSince = true
			return false
		}

		posts = append(posts, models.Post{
			ID:      id,
			Text:    cleanContent(item.Find(sel.Content).First().Text()),
			Retweet: retweet,
			Reply:   item.Find(sel.Reply).Length() > 0,
		})
		return true
	})

	return posts, reachedSince
}

func (s *Scraper) nextPage(doc *goquery.Document, current string) string {
	href, ok := doc.Find(s.config.Selectors.NextPage).Last().Attr("href")
	if !ok || href == "" {
		return ""
	}

	base, err := url.Parse(current)
	if err != nil {
		return ""
	}
	next, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(next).String()
	if !s.shouldProcessURL(abs) || abs == current {
		return ""
	}
	return abs
}

// shouldProcessURL keeps pagination on the configured host.
func (s *Scraper) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	return parsedURL.Host == s.baseURL.Host
}

func cleanContent(content string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(content), " "))
}
