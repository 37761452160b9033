package notify

import (
	_ "embed"
	"fmt"
	htmltemplate "html/template"
	"sort"
	"strings"
	texttemplate "text/template"

	"github.com/ema-residences/service-reservation/internal/application"
	notificationDomain "github.com/ema-residences/service-reservation/internal/domain/notification"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

// templateEntry is one catalogue entry as written in YAML.
type templateEntry struct {
	Type    string `yaml:"type"`
	Title   string `yaml:"title"`
	Message string `yaml:"message"`
	Subject string `yaml:"subject"`
	Text    string `yaml:"text"`
	HTML    string `yaml:"html"`
}

type compiledTemplate struct {
	notifType notificationDomain.NotificationType
	title     *texttemplate.Template
	message   *texttemplate.Template
	subject   *texttemplate.Template
	text      *texttemplate.Template
	html      *htmltemplate.Template
}

// Catalogue renders notifications from a set of named templates.
type Catalogue struct {
	templates map[string]compiledTemplate
}

// DefaultCatalogue loads the catalogue embedded in the binary.
func DefaultCatalogue() (*Catalogue, error) {
	return LoadCatalogue(defaultTemplates)
}

// LoadCatalogue parses a YAML catalogue. Every template is compiled up front so a broken
// catalogue fails at startup.
func LoadCatalogue(raw []byte) (*Catalogue, error) {
	var entries map[string]templateEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse notification catalogue: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("notification catalogue is empty")
	}

	c := &Catalogue{templates: make(map[string]compiledTemplate, len(entries))}
	for name, entry := range entries {
		tmpl, err := compile(name, entry)
		if err != nil {
			return nil, err
		}
		c.templates[name] = tmpl
	}
	return c, nil
}

// Names lists the template names in the catalogue.
func (c *Catalogue) Names() []string {
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render implements application.NotificationRenderer.
func (c *Catalogue) Render(name string, data application.NotificationData) (application.RenderedNotification, error) {
	tmpl, ok := c.templates[name]
	if !ok {
		return application.RenderedNotification{}, fmt.Errorf("unknown notification template %q", name)
	}

	out := application.RenderedNotification{Type: tmpl.notifType}
	var err error
	if out.Title, err = execText(tmpl.title, data); err != nil {
		return application.RenderedNotification{}, err
	}
	if out.Message, err = execText(tmpl.message, data); err != nil {
		return application.RenderedNotification{}, err
	}
	if out.Subject, err = execText(tmpl.subject, data); err != nil {
		return application.RenderedNotification{}, err
	}
	if out.Text, err = execText(tmpl.text, data); err != nil {
		return application.RenderedNotification{}, err
	}
	if tmpl.html != nil {
		var b strings.Builder
		if err := tmpl.html.Execute(&b, data); err != nil {
			return application.RenderedNotification{}, fmt.Errorf("render %s: %w", tmpl.html.Name(), err)
		}
		out.HTML = b.String()
	}
	return out, nil
}

func compile(name string, entry templateEntry) (compiledTemplate, error) {
	notifType := notificationDomain.NotificationType(entry.Type)
	if !notifType.IsValid() {
		return compiledTemplate{}, fmt.Errorf("template %s: invalid notification type %q", name, entry.Type)
	}
	if entry.Title == "" || entry.Message == "" || entry.Subject == "" || entry.Text == "" {
		return compiledTemplate{}, fmt.Errorf("template %s: title, message, subject and text are required", name)
	}

	out := compiledTemplate{notifType: notifType}
	parts := []struct {
		field string
		src   string
		dst   **texttemplate.Template
	}{
		{"title", entry.Title, &out.title},
		{"message", entry.Message, &out.message},
		{"subject", entry.Subject, &out.subject},
		{"text", entry.Text, &out.text},
	}
	for _, p := range parts {
		t, err := texttemplate.New(name + "." + p.field).Option("missingkey=error").Parse(p.src)
		if err != nil {
			return compiledTemplate{}, fmt.Errorf("template %s.%s: %w", name, p.field, err)
		}
		*p.dst = t
	}
	if entry.HTML != "" {
		t, err := htmltemplate.New(name + ".html").Option("missingkey=error").Parse(entry.HTML)
		if err != nil {
			return compiledTemplate{}, fmt.Errorf("template %s.html: %w", name, err)
		}
		out.html = t
	}
	return out, nil
}

func execText(t *texttemplate.Template, data application.NotificationData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(b.String()), nil
}
