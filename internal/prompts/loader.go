// Package prompts holds the embedded instruction templates sent to the text
// generation provider.
package prompts

import (
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

//go:embed *.md
var promptFS embed.FS

// Template names.
const (
	System          = "system"
	Routing         = "routing"
	DocsAnswer      = "docs_answer"
	ToolAnswer      = "tool_answer"
	ToolIntegration = "tool_integration"
	Chat            = "chat"
)

// Template is one prompt with its {{variable}} placeholders.
type Template struct {
	Name      string
	Content   string
	Variables []string
}

// Loader renders embedded prompt templates. It is read-only after New.
type Loader struct {
	templates map[string]*Template
}

var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// New loads every embedded template.
func New() (*Loader, error) {
	entries, err := promptFS.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts directory: %w", err)
	}
	l := &Loader{templates: make(map[string]*Template, len(entries))}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		content, err := promptFS.ReadFile(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".md")
		tpl := &Template{Name: name, Content: strings.TrimSpace(string(content))}
		seen := map[string]bool{}
		for _, m := range placeholder.FindAllStringSubmatch(tpl.Content, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				tpl.Variables = append(tpl.Variables, m[1])
			}
		}
		l.templates[name] = tpl
	}
	return l, nil
}

var (
	defaultOnce   sync.Once
	defaultLoader *Loader
	defaultErr    error
)

// Default returns the shared loader over the embedded templates.
func Default() *Loader {
	defaultOnce.Do(func() {
		defaultLoader, defaultErr = New()
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("prompts: embedded templates unreadable: %v", defaultErr))
	}
	return defaultLoader
}

// Get returns a template by name.
func (l *Loader) Get(name string) (*Template, error) {
	tpl, ok := l.templates[name]
	if !ok {
		return nil, fmt.Errorf("prompt template %q not found", name)
	}
	return tpl, nil
}

// Render substitutes variables into the named template. A placeholder with
// no value is an error, so a prompt never reaches the provider half filled.
func (l *Loader) Render(name string, variables map[string]string) (string, error) {
	tpl, err := l.Get(name)
	if err != nil {
		return "", err
	}
	var missing []string
	out := placeholder.ReplaceAllStringFunc(tpl.Content, func(ph string) string {
		key := ph[2 : len(ph)-2]
		value, ok := variables[key]
		if !ok {
			missing = append(missing, key)
			return ph
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("prompt %q: missing variables %s", name, strings.Join(missing, ", "))
	}
	return out, nil
}

// MustRender is Render for templates whose variables are fixed in code.
func (l *Loader) MustRender(name string, variables map[string]string) string {
	out, err := l.Render(name, variables)
	if err != nil {
		panic(err)
	}
	return out
}

// Names lists the loaded templates in sorted order.
func (l *Loader) Names() []string {
	names := make([]string, 0, len(l.templates))
	for name := range l.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
