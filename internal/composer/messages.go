package composer

import "strings"

// Fixed user-facing messages.
const (
	NoAnswerMessage = "I don't have that information in my knowledge base. Please check the official Inland Fisheries Service Tasmania website at https://ifs.tas.gov.au/"
	ErrorMessage    = "I encountered an error processing your question. Please try rephrasing it or contact support if the issue persists."

	WelcomeMessage = `Welcome to the Tasmania Fishing Information Assistant!

I can help you with:
- Fishing regulations and rules
- Species information
- Fishing locations
- Bag and size limits
- Licence requirements
- Checking whether your catch meets the legal size
- Fishing weather for the next few days

Ask me anything about fishing in Tasmania!`
)

// ExampleQueries are starter questions shown by clients.
var ExampleQueries = []string{
	"What are the bag limits for flathead?",
	"Is a 28cm bream legal to keep?",
	"Where can I fish in the Derwent River?",
	"What licence do I need for rock lobster fishing?",
	"What species can I catch at St Helens?",
}

const (
	greetingReply = "Hello! I'm the Tasmania fishing assistant. Ask me about licences, bag and size limits, seasons, fishing spots, or whether your catch is legal to keep."
	thanksReply   = "You're welcome! Tight lines, and remember to check the size and bag limits before you keep your catch."
	goodbyeReply  = "Goodbye and tight lines! Come back any time you have a question about fishing in Tasmania."
)

func helpReply() string {
	var b strings.Builder
	b.WriteString(WelcomeMessage)
	b.WriteString("\n\nTry one of these:\n")
	for _, q := range ExampleQueries {
		b.WriteString("• ")
		b.WriteString(q)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// cannedReply answers short greetings, thanks, farewells and help requests
// without a generation call.
func cannedReply(query string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(query))
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool { return r < 'a' || r > 'z' }) {
		words[w] = true
	}
	has := func(candidates ...string) bool {
		for _, c := range candidates {
			if words[c] {
				return true
			}
		}
		return false
	}
	n := len(lower)
	switch {
	case has("hello", "hi", "hey") && n < 20:
		return greetingReply, true
	case has("thanks", "thank") && n < 30:
		return thanksReply, true
	case has("bye", "goodbye") && n < 20:
		return goodbyeReply, true
	case has("help") && n < 30:
		return helpReply(), true
	}
	return "", false
}

// followUpRules are checked in order; the first match wins.
var followUpRules = []struct {
	keywords    []string
	suggestions []string
}{
	{
		[]string{"bag limit", "how many"},
		[]string{"Want to know the size limits too?", "Need good locations for this species?"},
	},
	{
		[]string{"where", "location"},
		[]string{"Would you like the weather forecast for this location?", "Want to know what species are there?"},
	},
	{
		[]string{"license", "licence", "permit"},
		[]string{"Need to know the bag limits for your licence type?", "Want to know where to get your licence?"},
	},
	{
		[]string{"caught", "legal", "keep"},
		[]string{"Want to check another fish size?", "Need to know the bag limit?"},
	},
}

// FollowUps returns at most two suggestions keyed on the topic of query.
func FollowUps(query string) []string {
	lower := strings.ToLower(query)
	for _, rule := range followUpRules {
		for _, k := range rule.keywords {
			if strings.Contains(lower, k) {
				s := rule.suggestions
				if len(s) > 2 {
					s = s[:2]
				}
				return append([]string(nil), s...)
			}
		}
	}
	return nil
}

// WithFollowUps appends the suggestions for query to answer.
func WithFollowUps(answer, query string) string {
	suggestions := FollowUps(query)
	if len(suggestions) == 0 {
		return answer
	}
	var b strings.Builder
	b.WriteString(answer)
	b.WriteString("\n\n**What else can I help with?**\n")
	for i, s := range suggestions {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("• ")
		b.WriteString(s)
	}
	return b.String()
}
