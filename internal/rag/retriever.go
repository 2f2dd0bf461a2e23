package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"tasfish/internal/logging"
	"tasfish/internal/observability"
)

// Section names used by the regulation guides.
const (
	SectionLicence = "fishing_licence"
	SectionSpecies = "species"
	SectionSeasons = "fishing_seasons"
	SectionSpots   = "hot_fishing_spots"

	// SectionAny disables section inference and searches every section.
	SectionAny = "*"
)

// Chunk is a retrieved passage. The first chunk of a result set is the
// primary citation.
type Chunk struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Section    string  `json:"section,omitempty"`
	Rank       int     `json:"rank"`
	Similarity float32 `json:"similarity"`
}

// Citation renders "source/section", with "general" for chunks that carry
// no section.
func (c Chunk) Citation() string {
	section := c.Section
	if section == "" {
		section = "general"
	}
	return c.Source + "/" + section
}

// Searcher is the retrieval contract consumed by the answer pipeline.
type Searcher interface {
	Search(ctx context.Context, query string, k int, section string) ([]Chunk, error)
}

// RetrieverConfig holds retrieval configuration.
type RetrieverConfig struct {
	TopK          int
	MinSimilarity float32
	// Rewrite, when set, normalises the query text before embedding.
	Rewrite func(string) string
}

// Retriever searches the regulation index.
type Retriever struct {
	config  RetrieverConfig
	store   VectorStore
	logger  logging.Logger
	metrics *observability.MetricsCollector
	tracer  *observability.TracerProvider
}

// NewRetriever creates a retriever over store.
func NewRetriever(config RetrieverConfig, store VectorStore, logger logging.Logger, metrics *observability.MetricsCollector, tracer *observability.TracerProvider) *Retriever {
	if config.TopK <= 0 {
		config.TopK = 5
	}
	return &Retriever{
		config:  config,
		store:   store,
		logger:  logging.OrNop(logger),
		metrics: metrics,
		tracer:  tracer,
	}
}

// Search returns up to k chunks ordered by relevance. An empty section
// filter is inferred from the query; SectionAny searches everything. A miss
// returns an empty, non-nil slice.
func (r *Retriever) Search(ctx context.Context, query string, k int, section string) (chunks []Chunk, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Chunk{}, nil
	}
	if k <= 0 {
		k = r.config.TopK
	}
	switch section {
	case "":
		section = InferSection(query)
	case SectionAny:
		section = ""
	}

	ctx, span := r.tracer.StartSpan(ctx, observability.SpanRetrieve, attribute.String(observability.AttrSection, section))
	defer func() { observability.EndSpan(span, err) }()

	text := query
	if r.config.Rewrite != nil {
		text = r.config.Rewrite(query)
	}
	var where map[string]string
	if section != "" {
		where = map[string]string{"section": section}
	}

	start := time.Now()
	results, err := r.store.Query(ctx, text, k, where)
	if err != nil {
		return nil, fmt.Errorf("search store: %w", err)
	}

	chunks = make([]Chunk, 0, len(results))
	for _, res := range results {
		if res.Similarity < r.config.MinSimilarity {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:         res.Document.ID,
			Text:       res.Document.Content,
			Source:     res.Document.Metadata["source"],
			Section:    res.Document.Metadata["section"],
			Rank:       len(chunks) + 1,
			Similarity: res.Similarity,
		})
	}
	label := section
	if label == "" {
		label = "all"
	}
	r.metrics.RecordRetrieval(ctx, label, len(chunks))
	if len(chunks) == 0 {
		r.logger.Info("no chunks for %q (section=%s)", query, label)
	} else {
		r.logger.Debug("retrieved %d chunks for %q (section=%s) in %s", len(chunks), query, label, time.Since(start))
	}
	return chunks, nil
}

var sectionKeywords = []struct {
	section  string
	keywords []string
}{
	{SectionLicence, []string{"license", "licence", "permit", "need to fish"}},
	{SectionSpecies, []string{"bag limit", "size limit", "legal size", "can i keep"}},
	{SectionSeasons, []string{"season", "when", "open", "closed"}},
	{SectionSpots, []string{"where", "location", "spot", "lake", "river", "beach", "bay", "jetty", "good place", "best place", "catch at"}},
}

// InferSection picks a section filter from keywords in the query. The first
// matching group wins; "" means no filter.
func InferSection(query string) string {
	q := strings.ToLower(query)
	for _, group := range sectionKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(q, kw) {
				return group.section
			}
		}
	}
	return ""
}

// FormatContext renders chunks as citation-tagged passages for a prompt.
// When counter is non-nil and budget is positive, passages past the token
// budget are dropped; the primary citation is always kept.
func FormatContext(chunks []Chunk, counter *TokenCounter, budget int) string {
	var sb strings.Builder
	used := 0
	for i, c := range chunks {
		passage := fmt.Sprintf("[Source: %s]\n%s", c.Citation(), c.Text)
		if budget > 0 && i > 0 {
			cost := counter.Count(passage)
			if used+cost > budget {
				break
			}
			used += cost
		} else if budget > 0 {
			used += counter.Count(passage)
		}
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(passage)
	}
	return sb.String()
}

// VerifyCitation reports whether citation appears, case-insensitively, in
// any retrieved chunk.
func VerifyCitation(citation string, chunks []Chunk) bool {
	needle := strings.ToLower(strings.TrimSpace(citation))
	if needle == "" {
		return false
	}
	for _, c := range chunks {
		if strings.Contains(strings.ToLower(c.Text), needle) {
			return true
		}
	}
	return false
}
