package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rankline/seo-cli/internal/resilience"
	"github.com/rankline/seo-cli/pkg/firecrawl"
)

// ScrapeResult is the normalized output of the scrape stage.
type ScrapeResult struct {
	URL       string   `json:"url"`
	Pages     []string `json:"pages"`
	Content   string   `json:"content"`
	PageCount int      `json:"pageCount"`
}

// Scrape discovers URLs under the site and fetches main-content text for
// the first few. Partial success is fine: pages that fail to fetch are
// dropped. Only a failed discovery call fails the operation.
func (p *Pipeline) Scrape(ctx context.Context, url string) (*ScrapeResult, error) {
	timeout := time.Duration(p.cfg.Pipeline.ScrapeTimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	mapResp, err := resilience.DoVal(ctx, p.retry, "firecrawl.map", func(ctx context.Context) (*firecrawl.MapResponse, error) {
		return p.firecrawl.Map(ctx, firecrawl.MapRequest{
			URL:               url,
			Limit:             p.cfg.Pipeline.MaxDiscoverPages,
			IncludeSubdomains: false,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "scrape: discover pages")
	}

	links := mapResp.Links
	if max := p.cfg.Pipeline.MaxDiscoverPages; max > 0 && len(links) > max {
		links = links[:max]
	}
	if len(links) == 0 {
		links = []string{url}
	}

	fetch := links
	if max := p.cfg.Pipeline.MaxContentPages; max > 0 && len(fetch) > max {
		fetch = fetch[:max]
	}

	pages, err := p.fetchPages(ctx, fetch)
	if err != nil {
		// Discovery already succeeded; degrade to an empty-content result
		// and let query generation fall back to the URL alone.
		zap.L().Warn("scrape: content fetch failed, continuing without page text",
			zap.String("url", url), zap.Error(err))
		pages = nil
	}

	var sb strings.Builder
	count := 0
	for _, page := range pages {
		if strings.TrimSpace(page.Markdown) == "" {
			continue
		}
		sb.WriteString("--- Page: " + page.URL + " ---\n")
		sb.WriteString(page.Markdown)
		sb.WriteString("\n\n")
		count++
	}

	return &ScrapeResult{
		URL:       url,
		Pages:     links,
		Content:   strings.TrimSpace(sb.String()),
		PageCount: count,
	}, nil
}

// fetchPages scrapes the given URLs as one batch job and waits for it.
// When the batch path fails it degrades to scraping each page individually,
// dropping the pages that still fail.
func (p *Pipeline) fetchPages(ctx context.Context, urls []string) ([]firecrawl.PageData, error) {
	batch, err := resilience.DoVal(ctx, p.retry, "firecrawl.batch_scrape", func(ctx context.Context) (*firecrawl.BatchScrapeResponse, error) {
		return p.firecrawl.BatchScrape(ctx, firecrawl.BatchScrapeRequest{
			URLs:            urls,
			Formats:         []string{"markdown"},
			OnlyMainContent: true,
		})
	})
	if err == nil {
		status, pollErr := firecrawl.PollBatchScrape(ctx, p.firecrawl, batch.ID)
		if pollErr == nil {
			return status.Data, nil
		}
		err = pollErr
	}

	zap.L().Warn("scrape: batch fetch failed, scraping pages individually", zap.Error(err))
	return p.scrapeEach(ctx, urls)
}

// scrapeEach fetches pages one at a time.
func (p *Pipeline) scrapeEach(ctx context.Context, urls []string) ([]firecrawl.PageData, error) {
	pages := make([]firecrawl.PageData, 0, len(urls))
	for _, u := range urls {
		if ctx.Err() != nil {
			return pages, eris.Wrap(ctx.Err(), "scrape: fetch pages")
		}
		resp, err := p.firecrawl.Scrape(ctx, firecrawl.ScrapeRequest{
			URL:             u,
			Formats:         []string{"markdown"},
			OnlyMainContent: true,
		})
		if err != nil {
			zap.L().Warn("scrape: page fetch failed, dropping page",
				zap.String("url", u), zap.Error(err))
			continue
		}
		pages = append(pages, resp.Data)
	}
	return pages, nil
}
