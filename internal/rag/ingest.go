package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"tasfish/internal/logging"
)

// IngestStats summarises one ingestion run.
type IngestStats struct {
	RunID    string         `json:"run_id"`
	Sources  int            `json:"sources"`
	Sections int            `json:"sections"`
	Chunks   int            `json:"chunks"`
	PerFile  map[string]int `json:"per_file"`
	Duration time.Duration  `json:"duration"`
}

// Ingestor loads JSON regulation guides into the vector store.
type Ingestor struct {
	chunker *Chunker
	store   VectorStore
	logger  logging.Logger
}

// NewIngestor wires a chunker to a store.
func NewIngestor(chunker *Chunker, store VectorStore, logger logging.Logger) *Ingestor {
	return &Ingestor{chunker: chunker, store: store, logger: logging.OrNop(logger)}
}

// IngestSources loads every named file under basePath.
func (in *Ingestor) IngestSources(ctx context.Context, basePath string, sources []string) (IngestStats, error) {
	stats := IngestStats{RunID: uuid.NewString(), PerFile: map[string]int{}}
	start := time.Now()
	for _, src := range sources {
		path := src
		if !filepath.IsAbs(path) {
			path = filepath.Join(basePath, src)
		}
		sections, chunks, err := in.IngestFile(ctx, path, "")
		if err != nil {
			return stats, err
		}
		stats.Sources++
		stats.Sections += sections
		stats.Chunks += chunks
		stats.PerFile[src] = chunks
	}
	stats.Duration = time.Since(start)
	in.logger.Info("ingest run %s: %d chunks from %d sources", stats.RunID, stats.Chunks, stats.Sources)
	return stats, nil
}

// IngestFile loads one JSON guide. Each top-level key is a section. The
// source name defaults to the file name without extension. It returns the
// number of sections and chunks written.
func (in *Ingestor) IngestFile(ctx context.Context, path, source string) (int, int, error) {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return 0, 0, fmt.Errorf("only JSON files are supported, got %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", path, err)
	}
	if source == "" {
		source = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return in.IngestJSON(ctx, data, source)
}

// IngestJSON loads a guide that is already in memory.
func (in *Ingestor) IngestJSON(ctx context.Context, data []byte, source string) (int, int, error) {
	// yaml.v3 parses JSON and keeps key order, which keeps section text
	// stable across runs.
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return 0, 0, fmt.Errorf("parse %s: %w", source, err)
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return 0, 0, fmt.Errorf("%s: top level must be an object of sections", source)
	}
	doc := root.Content[0]

	sections, total := 0, 0
	for i := 0; i+1 < len(doc.Content); i += 2 {
		section := doc.Content[i].Value
		text := SectionText(section, doc.Content[i+1])
		pieces := in.chunker.Split(text)
		docs := make([]Document, 0, len(pieces))
		for j, piece := range pieces {
			docs = append(docs, Document{
				ID:      fmt.Sprintf("%s:%s:%d", source, section, j),
				Content: piece,
				Metadata: map[string]string{
					"source":   source,
					"section":  section,
					"chunk_id": strconv.Itoa(j),
					"topics":   ExtractTopics(piece, section),
				},
			})
		}
		if err := in.store.Upsert(ctx, docs); err != nil {
			return sections, total, fmt.Errorf("upsert %s/%s: %w", source, section, err)
		}
		in.logger.Debug("section %s/%s: %d chunks", source, section, len(docs))
		sections++
		total += len(docs)
	}
	in.logger.Info("loaded %d chunks from %s across %d sections", total, source, sections)
	return sections, total, nil
}

// SectionText renders a JSON section as readable text under a
// "=== SECTION NAME ===" header.
func SectionText(section string, node *yaml.Node) string {
	lines := []string{"=== " + strings.ToUpper(strings.ReplaceAll(section, "_", " ")) + " ===", ""}
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i].Value, node.Content[i+1]
			switch value.Kind {
			case yaml.MappingNode:
				lines = append(lines, "", titleCase(key)+":")
				for j := 0; j+1 < len(value.Content); j += 2 {
					lines = append(lines, fmt.Sprintf("  • %s: %s", humanize(value.Content[j].Value), inline(value.Content[j+1])))
				}
			case yaml.SequenceNode:
				lines = append(lines, "", titleCase(key)+":")
				lines = append(lines, bulletItems(value)...)
			default:
				lines = append(lines, fmt.Sprintf("%s: %s", titleCase(key), value.Value))
			}
		}
	case yaml.SequenceNode:
		lines = append(lines, bulletItems(node)...)
	default:
		lines = append(lines, node.Value)
	}
	return strings.Join(lines, "\n")
}

func bulletItems(seq *yaml.Node) []string {
	var lines []string
	for _, item := range seq.Content {
		if item.Kind == yaml.MappingNode {
			for j := 0; j+1 < len(item.Content); j += 2 {
				lines = append(lines, fmt.Sprintf("  • %s: %s", humanize(item.Content[j].Value), inline(item.Content[j+1])))
			}
			continue
		}
		lines = append(lines, "  • "+inline(item))
	}
	return lines
}

// inline flattens nested values onto one line.
func inline(node *yaml.Node) string {
	switch node.Kind {
	case yaml.SequenceNode:
		parts := make([]string, 0, len(node.Content))
		for _, c := range node.Content {
			parts = append(parts, inline(c))
		}
		return strings.Join(parts, ", ")
	case yaml.MappingNode:
		parts := make([]string, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			parts = append(parts, humanize(node.Content[i].Value)+": "+inline(node.Content[i+1]))
		}
		return strings.Join(parts, "; ")
	default:
		return node.Value
	}
}

func humanize(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}

func titleCase(key string) string {
	words := strings.Fields(humanize(key))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

var (
	topicSpecies       = []string{"trout", "salmon", "flathead", "bream", "tuna"}
	topicRegions       = []string{"derwent", "east coast", "st helens", "bruny", "entrecasteaux", "tasman", "flinders", "tamar", "devonport", "port sorell", "north west", "king island", "macquarie", "hobart"}
	topicLocationTypes = []string{"lake", "river", "creek", "dam", "beach", "bay", "jetty", "wharf", "coast", "peninsula", "island"}
	topicSpotSpecies   = []string{"salmon", "flathead", "bream", "snapper", "whiting", "calamari", "squid", "barracouta", "kingfish"}
)

// ExtractTopics tags a chunk with comma-separated filter keywords. The
// section name is always the first topic.
func ExtractTopics(chunk, section string) string {
	text := strings.ToLower(chunk)
	topics := []string{section}
	matching := func(words []string) {
		for _, w := range words {
			if strings.Contains(text, w) {
				topics = append(topics, w)
			}
		}
	}
	flag := func(cond bool, topic string) {
		if cond {
			topics = append(topics, topic)
		}
	}

	switch section {
	case SectionLicence:
		flag(strings.Contains(text, "freshwater"), "freshwater")
		flag(strings.Contains(text, "saltwater") || strings.Contains(text, "marine"), "saltwater")
		flag(strings.Contains(text, "recreational"), "recreational")
	case SectionSpecies:
		matching(topicSpecies)
		flag(strings.Contains(text, "bag limit"), "bag_limit")
		flag(strings.Contains(text, "size limit"), "size_limit")
	case SectionSeasons:
		flag(strings.Contains(text, "open"), "open_season")
		flag(strings.Contains(text, "closed"), "closed_season")
	case SectionSpots:
		matching(topicRegions)
		matching(topicLocationTypes)
		matching(topicSpotSpecies)
		flag(strings.Contains(text, "shore"), "shore_fishing")
		flag(strings.Contains(text, "boat"), "boat_fishing")
	}
	return strings.Join(topics, ",")
}
