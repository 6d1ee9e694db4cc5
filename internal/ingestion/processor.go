package ingestion

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/vilaw/backend/internal/learning"
	"github.com/vilaw/backend/internal/metrics"
	"github.com/vilaw/backend/internal/storage/models"
	"github.com/vilaw/backend/pkg/logger"
	"github.com/vilaw/backend/pkg/utils"
)

const (
	summaryLength = 200
	untitled      = "Untitled"
)

var (
	ErrEmptyContent = errors.New("no content to ingest")

	whitespace = regexp.MustCompile(`\s+`)
)

// DocumentSink receives ingested documents; the sqlite client satisfies it.
type DocumentSink interface {
	SaveDocument(ctx context.Context, doc models.Document) error
}

// Input is either raw HTML or plain text. Fields left empty are derived from the content.
type Input struct {
	HTML     string    `json:"html,omitempty"`
	Title    string    `json:"title,omitempty"`
	Content  string    `json:"content,omitempty"`
	Category string    `json:"category,omitempty"`
	Type     string    `json:"type,omitempty"`
	Source   string    `json:"source,omitempty"`
	Date     time.Time `json:"date,omitempty"`
}

type Processor struct {
	sink     DocumentSink
	analyzer *learning.Analyzer
	now      func() time.Time
}

func NewProcessor(sink DocumentSink, analyzer *learning.Analyzer) *Processor {
	if analyzer == nil {
		analyzer = learning.NewAnalyzer(nil)
	}
	return &Processor{
		sink:     sink,
		analyzer: analyzer,
		now:      time.Now,
	}
}

// Process turns the input into a corpus document and saves it. Re-ingesting the same
// source and title overwrites the earlier document.
func (p *Processor) Process(ctx context.Context, in Input) (models.Document, error) {
	doc, err := p.Build(in)
	if err != nil {
		return models.Document{}, err
	}

	if err := p.sink.SaveDocument(ctx, doc); err != nil {
		return models.Document{}, fmt.Errorf("failed to save document: %w", err)
	}

	metrics.DocumentsIngested.Inc()
	logger.Info("Document ingested",
		zap.String("doc_id", doc.ID),
		zap.String("category", doc.Category),
		zap.Int("keywords", len(doc.Keywords)),
	)
	return doc, nil
}

// Build derives the document without saving it.
func (p *Processor) Build(in Input) (models.Document, error) {
	title := strings.TrimSpace(in.Title)
	content := collapse(in.Content)

	if in.HTML != "" {
		page, err := goquery.NewDocumentFromReader(strings.NewReader(in.HTML))
		if err != nil {
			return models.Document{}, fmt.Errorf("failed to parse HTML: %w", err)
		}
		if content == "" {
			content = cleanHTML(page)
		}
		if title == "" {
			title = extractTitle(page)
		}
	}

	if content == "" {
		return models.Document{}, ErrEmptyContent
	}
	if title == "" {
		title = untitled
	}

	text := title + " " + content
	category := in.Category
	if category == "" {
		category = p.analyzer.Categorize(text)
	}

	date := in.Date
	if date.IsZero() {
		date = p.now()
	}

	return models.Document{
		ID:       utils.StableID("doc", in.Source, title),
		Title:    title,
		Content:  content,
		Summary:  summarize(content),
		Category: category,
		Type:     in.Type,
		Keywords: p.analyzer.Keywords(text),
		Date:     date,
		Source:   in.Source,
	}, nil
}

func cleanHTML(page *goquery.Document) string {
	body := page.Find("body").Clone()
	body.Find("script, style, nav, footer, header, aside").Remove()
	return collapse(body.Text())
}

func extractTitle(page *goquery.Document) string {
	title := strings.TrimSpace(page.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(page.Find("h1").First().Text())
	}
	return collapse(title)
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func summarize(content string) string {
	runes := []rune(content)
	if len(runes) <= summaryLength {
		return content
	}
	return strings.TrimSpace(string(runes[:summaryLength])) + "..."
}
