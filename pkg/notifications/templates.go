package notifications

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/valyala/fasttemplate"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

//go:embed templates.yaml
var builtinTemplatesYAML []byte

type templateText struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

type builtinTemplates struct {
	Generic templateText                        `yaml:"generic"`
	Events  map[string]map[Channel]templateText `yaml:"events"`
}

func parseBuiltinTemplates(data []byte) (builtinTemplates, error) {
	var b builtinTemplates
	if err := yaml.Unmarshal(data, &b); err != nil {
		return builtinTemplates{}, fmt.Errorf("failed to parse built-in templates: %w", err)
	}
	for code, channels := range b.Events {
		for ch := range channels {
			if !ch.Valid() {
				return builtinTemplates{}, fmt.Errorf("built-in template %s: %w: %q", code, ErrUnknownChannel, ch)
			}
		}
	}
	return b, nil
}

func (b builtinTemplates) lookup(code string, ch Channel) templateText {
	if text, ok := b.Events[code][ch]; ok {
		return text
	}
	return b.Generic
}

// Templates resolves the template for an (event type, channel) pair,
// synthesizing and persisting a built-in one when none is stored.
type Templates struct {
	storage  TemplateStorage
	builtins builtinTemplates
	logger   *slog.Logger
}

// TemplatesOption configures Templates.
type TemplatesOption func(*Templates)

// WithTemplatesLogger sets the logger. Defaults to slog.Default().
func WithTemplatesLogger(l *slog.Logger) TemplatesOption {
	return func(t *Templates) {
		t.logger = l
	}
}

// NewTemplates creates the template registry and parses the embedded
// built-in templates.
func NewTemplates(storage TemplateStorage, opts ...TemplatesOption) (*Templates, error) {
	builtins, err := parseBuiltinTemplates(builtinTemplatesYAML)
	if err != nil {
		return nil, err
	}
	t := &Templates{
		storage:  storage,
		builtins: builtins,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Resolve returns the active stored template for the pair. When none is
// stored, the built-in one is persisted and returned, so later lookups are a
// plain read. An inactive stored template yields the built-in one without
// touching storage.
func (t *Templates) Resolve(ctx context.Context, et EventType, ch Channel) (Template, error) {
	if !ch.Valid() {
		return Template{}, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
	}

	stored, err := t.storage.GetTemplate(ctx, et.ID, ch)
	switch {
	case err == nil && stored.Active:
		return stored, nil
	case err == nil:
		return t.Fallback(et, ch), nil
	case !errors.Is(err, ErrTemplateNotFound):
		return Template{}, fmt.Errorf("failed to get template: %w", err)
	}

	tpl, created, err := t.storage.GetOrCreateTemplate(ctx, t.Fallback(et, ch))
	if err != nil {
		return Template{}, fmt.Errorf("failed to create template: %w", err)
	}
	if created {
		t.logger.LogAttrs(ctx, slog.LevelInfo, "default template created",
			logger.EventType(et.Code),
			logger.Channel(ch.String()),
		)
	}
	return tpl, nil
}

// Fallback returns the built-in template for the pair without persisting it.
func (t *Templates) Fallback(et EventType, ch Channel) Template {
	text := t.builtins.lookup(et.Code, ch)
	return Template{
		EventTypeID:   et.ID,
		Channel:       ch,
		TitleTemplate: text.Title,
		BodyTemplate:  text.Body,
		Active:        true,
	}
}

// SeedDefaults stores the built-in per-channel templates for the given event
// types that have an entry in the built-in table. Existing templates are
// kept. It returns the number created.
func (t *Templates) SeedDefaults(ctx context.Context, eventTypes ...EventType) (int, error) {
	created := 0
	for _, et := range eventTypes {
		if _, ok := t.builtins.Events[et.Code]; !ok {
			continue
		}
		for _, ch := range Channels {
			_, ok, err := t.storage.GetOrCreateTemplate(ctx, t.Fallback(et, ch))
			if err != nil {
				return created, fmt.Errorf("failed to seed template %s/%s: %w", et.Code, ch, err)
			}
			if ok {
				created++
			}
		}
	}
	return created, nil
}

// Upsert stores tpl, replacing the pair's current template.
func (t *Templates) Upsert(ctx context.Context, tpl Template) (Template, error) {
	if !tpl.Channel.Valid() {
		return Template{}, fmt.Errorf("%w: %q", ErrUnknownChannel, tpl.Channel)
	}
	if tpl.EventTypeID == "" {
		return Template{}, ErrInvalidEventType
	}
	stored, err := t.storage.UpsertTemplate(ctx, tpl)
	if err != nil {
		return Template{}, fmt.Errorf("failed to upsert template: %w", err)
	}
	return stored, nil
}

// Render substitutes {key} placeholders in both templates. Keys missing from
// data are left in place as {key}.
func Render(tpl Template, data map[string]any) (title, body string) {
	return RenderText(tpl.TitleTemplate, data), RenderText(tpl.BodyTemplate, data)
}

// RenderText substitutes {key} placeholders in text. It never fails: text that
// cannot be parsed as a template is returned unchanged, and a non-empty text
// never renders to blank.
func RenderText(text string, data map[string]any) string {
	if !strings.Contains(text, "{") {
		return text
	}
	out, err := fasttemplate.ExecuteFuncStringWithErr(text, "{", "}", func(w io.Writer, tag string) (int, error) {
		v, ok := data[strings.TrimSpace(tag)]
		if !ok {
			return io.WriteString(w, "{"+tag+"}")
		}
		return io.WriteString(w, formatValue(v))
	})
	if err != nil || strings.TrimSpace(out) == "" {
		return text
	}
	return out
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
