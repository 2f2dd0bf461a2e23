package prompts

import (
	"strings"
	"testing"
)

func TestNewLoadsEveryTemplate(t *testing.T) {
	loader, err := New()
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	want := []string{Chat, DocsAnswer, Routing, System, ToolAnswer, ToolIntegration}
	got := loader.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected templates: %v", got)
	}

	tpl, err := loader.Get(ToolIntegration)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if strings.Join(tpl.Variables, ",") != "query,context,tool_result" {
		t.Fatalf("unexpected variables: %v", tpl.Variables)
	}
}

func TestRenderSubstitutesOnce(t *testing.T) {
	out, err := Default().Render(DocsAnswer, map[string]string{
		"query":   "What is the bag limit?",
		"context": "[Source: guide/species]\nflathead {{query}}",
	})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !strings.Contains(out, "Question: What is the bag limit?") {
		t.Fatalf("query not substituted: %s", out)
	}
	if !strings.Contains(out, "<context>\n[Source: guide/species]\nflathead {{query}}\n</context>") {
		t.Fatalf("context not wrapped verbatim: %s", out)
	}
}

func TestRenderReportsMissingVariables(t *testing.T) {
	_, err := Default().Render(ToolAnswer, map[string]string{"query": "q"})
	if err == nil || !strings.Contains(err.Error(), "tool_result") {
		t.Fatalf("expected missing tool_result error, got %v", err)
	}
	if _, err := Default().Render("nope", nil); err == nil {
		t.Fatal("expected unknown template error")
	}
}
