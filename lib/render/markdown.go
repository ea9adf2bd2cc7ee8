// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"bytes"
	"context"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// Markdown option names.
const (
	MarkdownGFM         = "gfm"
	MarkdownUnsafe      = "unsafe"
	MarkdownHardWraps   = "hard-wraps"
	MarkdownXHTML       = "xhtml"
	MarkdownTypographer = "typographer"
	MarkdownHighlight   = "highlight"
	MarkdownLineNumbers = "line-numbers"
)

var markdownOptionNames = map[string]bool{
	MarkdownGFM:         true,
	MarkdownUnsafe:      true,
	MarkdownHardWraps:   true,
	MarkdownXHTML:       true,
	MarkdownTypographer: true,
	MarkdownHighlight:   true,
	MarkdownLineNumbers: true,
}

// Markdown renders CommonMark to HTML.
//
// A goldmark instance is configured once per distinct option set and
// reused: goldmark's Markdown is safe to share, since Convert creates
// per-call parser state. The server passes the same options to every
// call, so in practice one instance is ever built.
type Markdown struct {
	mu        sync.Mutex
	instances map[string]goldmark.Markdown
}

// NewMarkdown returns a Markdown renderer.
func NewMarkdown() *Markdown {
	return &Markdown{instances: make(map[string]goldmark.Markdown)}
}

// Render converts document to HTML.
func (m *Markdown) Render(ctx context.Context, document string, options Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	instance, err := m.instance(options)
	if err != nil {
		return "", err
	}
	var output bytes.Buffer
	if err := instance.Convert([]byte(document), &output); err != nil {
		return "", Failf("markdown conversion failed: %v", err)
	}
	return output.String(), nil
}

// Check validates options by building the goldmark instance for them.
func (m *Markdown) Check(_ context.Context, options Options) error {
	_, err := m.instance(options)
	return err
}

func (m *Markdown) instance(options Options) (goldmark.Markdown, error) {
	key := options.Key()

	m.mu.Lock()
	defer m.mu.Unlock()
	if instance, ok := m.instances[key]; ok {
		return instance, nil
	}
	instance, err := buildMarkdown(options)
	if err != nil {
		return nil, err
	}
	m.instances[key] = instance
	return instance, nil
}

func buildMarkdown(options Options) (goldmark.Markdown, error) {
	for _, name := range options.Names() {
		if !markdownOptionNames[name] {
			return nil, Failf("unknown markdown option %q", name)
		}
	}

	gfm, err := options.Bool(MarkdownGFM, true)
	if err != nil {
		return nil, &Failure{Message: err.Error()}
	}
	typographer, err := options.Bool(MarkdownTypographer, false)
	if err != nil {
		return nil, &Failure{Message: err.Error()}
	}
	var extensions []goldmark.Extender
	if gfm {
		extensions = append(extensions, extension.GFM)
	}
	if typographer {
		extensions = append(extensions, extension.Typographer)
	}

	var rendererOptions []renderer.Option
	for _, flag := range []struct {
		name   string
		option renderer.Option
	}{
		{MarkdownUnsafe, html.WithUnsafe()},
		{MarkdownHardWraps, html.WithHardWraps()},
		{MarkdownXHTML, html.WithXHTML()},
	} {
		enabled, err := options.Bool(flag.name, false)
		if err != nil {
			return nil, &Failure{Message: err.Error()}
		}
		if enabled {
			rendererOptions = append(rendererOptions, flag.option)
		}
	}

	if styleName := options.String(MarkdownHighlight, ""); styleName != "" {
		lineNumbers, err := options.Bool(MarkdownLineNumbers, false)
		if err != nil {
			return nil, &Failure{Message: err.Error()}
		}
		highlighter, err := newCodeHighlighter(styleName, lineNumbers)
		if err != nil {
			return nil, err
		}
		// goldmark's default HTML renderer registers at priority
		// 1000; lower values win.
		rendererOptions = append(rendererOptions,
			renderer.WithNodeRenderers(util.Prioritized(highlighter, 200)))
	}

	return goldmark.New(
		goldmark.WithExtensions(extensions...),
		goldmark.WithRendererOptions(rendererOptions...),
	), nil
}
