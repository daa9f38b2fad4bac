package browser

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const elementTimeout = 15 * time.Second

type rodPage struct {
	page       *rod.Page
	navTimeout time.Duration
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx).Timeout(p.navTimeout)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *rodPage) Elements(ctx context.Context, selector string) ([]Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (p *rodPage) Has(ctx context.Context, selector string) (bool, error) {
	has, _, err := p.page.Context(ctx).Has(selector)
	return has, err
}

func (p *rodPage) element(ctx context.Context, selector string) (*rod.Element, error) {
	el, err := p.page.Context(ctx).Timeout(elementTimeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return el.CancelTimeout(), nil
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) Fill(ctx context.Context, selector, text string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	el = el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(text)
}

func (p *rodPage) SetFiles(ctx context.Context, selector string, paths ...string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Context(ctx).SetFiles(paths)
}

func (p *rodPage) Scroll(ctx context.Context, dy float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Mouse.Scroll(0, dy, 5)
}

func (p *rodPage) MoveMouse(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := proto.Point{
		X: float64(rand.Intn(viewportWidth)),
		Y: float64(rand.Intn(viewportHeight)),
	}
	return p.page.Mouse.MoveLinear(to, 10)
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) child(ctx context.Context, selector string) (*rod.Element, error) {
	if selector == "" {
		return e.el.Context(ctx), nil
	}
	has, child, err := e.el.Context(ctx).Has(selector)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return child, nil
}

func (e *rodElement) Text(ctx context.Context, selector string) (string, error) {
	el, err := e.child(ctx, selector)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (e *rodElement) Has(ctx context.Context, selector string) (bool, error) {
	if selector == "" {
		return true, nil
	}
	has, _, err := e.el.Context(ctx).Has(selector)
	return has, err
}

func (e *rodElement) Click(ctx context.Context, selector string) error {
	el, err := e.child(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}
