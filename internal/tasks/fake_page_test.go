package tasks_test

import (
	"context"
	"fmt"
	"sync"

	"social-autopilot/internal/browser"
)

// fakePage records every interaction as a short string.
type fakePage struct {
	mu       sync.Mutex
	actions  []string
	elements map[string][]browser.Element
	has      map[string]bool
	fail     map[string]error
}

func newFakePage() *fakePage {
	return &fakePage{
		elements: map[string][]browser.Element{},
		has:      map[string]bool{},
		fail:     map[string]error{},
	}
}

func (p *fakePage) record(action string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, action)
	return p.fail[action]
}

func (p *fakePage) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	return p.record("navigate " + url)
}

func (p *fakePage) URL(context.Context) (string, error) {
	return "", nil
}

func (p *fakePage) Elements(_ context.Context, selector string) ([]browser.Element, error) {
	return p.elements[selector], nil
}

func (p *fakePage) Has(_ context.Context, selector string) (bool, error) {
	return p.has[selector], nil
}

func (p *fakePage) Click(_ context.Context, selector string) error {
	return p.record("click " + selector)
}

func (p *fakePage) Fill(_ context.Context, selector, text string) error {
	return p.record(fmt.Sprintf("fill %s=%s", selector, text))
}

func (p *fakePage) SetFiles(_ context.Context, selector string, paths ...string) error {
	return p.record(fmt.Sprintf("files %s=%v", selector, paths))
}

func (p *fakePage) Scroll(context.Context, float64) error {
	return nil
}

func (p *fakePage) MoveMouse(context.Context) error {
	return nil
}

type fakeElement struct {
	page    *fakePage
	name    string
	texts   map[string]string
	has     map[string]bool
	textErr error
}

func (e *fakeElement) Text(_ context.Context, selector string) (string, error) {
	if e.textErr != nil {
		return "", e.textErr
	}
	t, ok := e.texts[selector]
	if !ok {
		return "", browser.ErrNotFound
	}
	return t, nil
}

func (e *fakeElement) Has(_ context.Context, selector string) (bool, error) {
	if selector == "" {
		return true, nil
	}
	return e.has[selector], nil
}

func (e *fakeElement) Click(_ context.Context, selector string) error {
	return e.page.record(fmt.Sprintf("click %s %s", e.name, selector))
}
