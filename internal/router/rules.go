package router

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"tasfish/internal/tools/builtin"
)

// SpeciesIndex is the part of the species table the rules need.
type SpeciesIndex interface {
	Known() []string
	NormalizeQuery(query string) string
}

// RuleClassifier routes with keyword and pattern rules. It needs no model
// and is deterministic, which makes it the choice for offline runs and tests.
type RuleClassifier struct {
	species SpeciesIndex
}

// NewRuleClassifier builds a rule classifier. species may be nil, in which
// case size checks take the word after the length as the species.
func NewRuleClassifier(species SpeciesIndex) *RuleClassifier {
	return &RuleClassifier{species: species}
}

var (
	lengthPattern  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(cm|mm|centimet(?:re|er)s?|millimet(?:re|er)s?)\b`)
	wordAfter      = regexp.MustCompile(`^\s*([a-z]+)`)
	daysPattern    = regexp.MustCompile(`(?i)\b(\d+)\s*-?\s*days?\b`)
	placeCapital   = regexp.MustCompile(`\b(?:in|at|for|near|around|off)\s+(?:the\s+)?([A-Z][A-Za-z'.]*(?:\s+[A-Z][A-Za-z'.]*)*)`)
	weatherPattern = regexp.MustCompile(`\b(?:weather|forecasts?|conditions|wind|windy|rain|rainy|raining|good day to fish|best day)\b`)
	placeLowercase = regexp.MustCompile(`\b(?:in|at|for|near|around|off)\s+(?:the\s+)?([a-z][a-z' ]*?)(?:\s+(?:this|next|tomorrow|today|over|on|for)\b|[?.!,]|$)`)
)

var (
	sizeTriggers = []string{"legal", "keep", "undersize", "under size", "big enough", "too small", "size check"}
	docsKeywords = []string{
		"licence", "license", "permit", "bag limit", "how many", "size limit", "season",
		"open", "closed", "where", "spot", "species", "regulation", "rule", "allowed",
		"what can i catch", "what fish", "recommend", "best place",
	}
	domainKeywords = []string{
		"fish", "catch", "caught", "angl", "boat", "shore", "river", "lake", "bay",
		"estuary", "trout", "licen", "bag", "limit", "season", "bait", "lure", "tide",
	}
	notSpecies = map[string]bool{
		"long": true, "is": true, "legal": true, "fish": true, "one": true,
		"and": true, "in": true, "at": true, "to": true, "or": true,
	}
)

// Classify applies the rules. It always succeeds.
func (r *RuleClassifier) Classify(_ context.Context, query string) Decision {
	q := strings.TrimSpace(query)
	lower := strings.ToLower(q)
	if r.species != nil {
		lower = r.species.NormalizeQuery(lower)
	}

	if toolParams, ok := r.sizeCheck(lower); ok {
		docs := containsAny(lower, docsKeywords)
		return Decision{
			Kind:       KindFor(docs, true),
			NeedsDocs:  docs,
			NeedsTool:  true,
			ToolName:   builtin.LegalSizeToolName,
			ToolParams: toolParams,
			Rationale:  "question gives a fish length to check against the size limits",
			Succeeded:  true,
		}
	}

	if weatherPattern.MatchString(lower) {
		docs := containsAny(lower, docsKeywords)
		return Decision{
			Kind:       KindFor(docs, true),
			NeedsDocs:  docs,
			NeedsTool:  true,
			ToolName:   builtin.FishingWeatherToolName,
			ToolParams: weatherParams(q),
			Rationale:  "question asks about weather or fishing conditions",
			Succeeded:  true,
		}
	}

	if r.isChat(lower) {
		return Decision{Kind: Chat, Rationale: "greeting or question outside fishing rules", Succeeded: true}
	}
	return Decision{
		Kind:      DocsOnly,
		NeedsDocs: true,
		Rationale: "question about regulations, species or locations",
		Succeeded: true,
	}
}

func (r *RuleClassifier) sizeCheck(lower string) (map[string]any, bool) {
	loc := lengthPattern.FindStringSubmatchIndex(lower)
	if loc == nil {
		return nil, false
	}
	value, err := strconv.ParseFloat(lower[loc[2]:loc[3]], 64)
	if err != nil {
		return nil, false
	}
	if strings.HasPrefix(lower[loc[4]:loc[5]], "m") {
		value /= 10
	}

	name := r.findSpecies(lower)
	if name == "" {
		if m := wordAfter.FindStringSubmatch(lower[loc[1]:]); m != nil && !notSpecies[m[1]] {
			name = m[1]
		}
	}
	if name == "" && !containsAny(lower, sizeTriggers) {
		return nil, false
	}
	params := map[string]any{"length_cm": value}
	if name != "" {
		params["species"] = name
	}
	return params, true
}

// findSpecies returns the longest known species named in lower.
func (r *RuleClassifier) findSpecies(lower string) string {
	if r.species == nil {
		return ""
	}
	best := ""
	for _, name := range r.species.Known() {
		if len(name) > len(best) && strings.Contains(lower, name) {
			best = name
		}
	}
	return best
}

func (r *RuleClassifier) isChat(lower string) bool {
	if r.findSpecies(lower) != "" || containsAny(lower, domainKeywords) || containsAny(lower, docsKeywords) {
		return false
	}
	return strings.IndexFunc(lower, func(c rune) bool { return c >= 'a' && c <= 'z' }) >= 0
}

func weatherParams(query string) map[string]any {
	params := map[string]any{}
	if place := extractPlace(query); place != "" {
		params["location"] = place
	}
	lower := strings.ToLower(query)
	switch {
	case daysPattern.MatchString(lower):
		n, _ := strconv.Atoi(daysPattern.FindStringSubmatch(lower)[1])
		params["days"] = n
	case strings.Contains(lower, "today"):
		params["days"] = 1
	case strings.Contains(lower, "tomorrow"):
		params["days"] = 2
	case strings.Contains(lower, "weekend"), strings.Contains(lower, "week"):
		params["days"] = 5
	}
	return params
}

func extractPlace(query string) string {
	if m := placeCapital.FindStringSubmatch(query); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := placeLowercase.FindStringSubmatch(strings.ToLower(query)); m != nil {
		place := strings.TrimSpace(m[1])
		for _, skip := range []string{"fishing", "the weekend", "weekend", "tasmanian waters"} {
			if place == skip {
				return ""
			}
		}
		return place
	}
	return ""
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
