// Package template provides locale-aware prompt template resolution.
package template

import (
	"errors"
	"fmt"
	"strings"
	texttemplate "text/template"
)

// ErrTemplateNotFound is returned when a group/key pair is unknown in both the
// requested language and the default language.
var ErrTemplateNotFound = errors.New("template not found")

// DefaultLanguage is the fallback locale for missing translations.
const DefaultLanguage = "en"

// Resolver resolves named templates with substitution variables into text.
type Resolver struct {
	language  string
	templates map[string]map[string]*texttemplate.Template // language -> "group/key"
}

// NewResolver creates a Resolver for the given language with the built-in
// template groups loaded. Unknown languages fall back to the default language
// at resolve time.
func NewResolver(language string) (*Resolver, error) {
	if language == "" {
		language = DefaultLanguage
	}

	r := &Resolver{
		language:  language,
		templates: make(map[string]map[string]*texttemplate.Template),
	}

	for lang, groups := range builtinTemplates {
		for group, keys := range groups {
			for key, text := range keys {
				if err := r.register(lang, group, key, text); err != nil {
					return nil, err
				}
			}
		}
	}

	return r, nil
}

// Language returns the resolver's configured language.
func (r *Resolver) Language() string {
	return r.language
}

// Register adds or overrides a template for the given language.
func (r *Resolver) Register(language, group, key, text string) error {
	if language == "" {
		language = DefaultLanguage
	}
	return r.register(language, group, key, text)
}

func (r *Resolver) register(language, group, key, text string) error {
	tmpl, err := texttemplate.New(group + "/" + key).Option("missingkey=error").Parse(text)
	if err != nil {
		return fmt.Errorf("parse template %s/%s (%s): %w", group, key, language, err)
	}

	if r.templates[language] == nil {
		r.templates[language] = make(map[string]*texttemplate.Template)
	}
	r.templates[language][group+"/"+key] = tmpl

	return nil
}

// Resolve renders the template identified by group and key with the given
// variables. The configured language is tried first, then the default
// language.
func (r *Resolver) Resolve(group, key string, vars map[string]any) (string, error) {
	tmpl := r.lookup(r.language, group, key)
	if tmpl == nil {
		tmpl = r.lookup(DefaultLanguage, group, key)
	}
	if tmpl == nil {
		return "", fmt.Errorf("%w: %s/%s", ErrTemplateNotFound, group, key)
	}

	if vars == nil {
		vars = map[string]any{}
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, vars); err != nil {
		return "", fmt.Errorf("render template %s/%s: %w", group, key, err)
	}

	return sb.String(), nil
}

func (r *Resolver) lookup(language, group, key string) *texttemplate.Template {
	keys, ok := r.templates[language]
	if !ok {
		return nil
	}
	return keys[group+"/"+key]
}
