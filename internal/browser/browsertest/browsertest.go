// Package browsertest provides scriptable in-memory browsers for tests.
package browsertest

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"wind-speed-service/internal/browser"
)

// Page is a fake browser.Page. Every Func field is optional; a nil func
// succeeds. Content falls back to HTML when ContentFunc is nil.
type Page struct {
	HTML string

	GotoFunc         func(url string) error
	ClickFunc        func(selector string) error
	ClickTextFunc    func(text string) error
	FillFunc         func(selector, value string) error
	CheckFunc        func(selector string) error
	SelectOptionFunc func(selector, label string) error
	WaitVisibleFunc  func(selector string) error
	PressFunc        func(key string) error
	TypeFunc         func(text string) error
	EvaluateFunc     func(script string, arg any) (any, error)
	WaitForTextFunc  func(text string) error
	ContentFunc      func() (string, error)
	ScreenshotFunc   func() ([]byte, error)

	mu    sync.Mutex
	calls []string
}

func (p *Page) record(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

// Calls returns every recorded call in order, e.g. "goto https://x" or
// "press Enter".
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Called reports whether any recorded call starts with prefix.
func (p *Page) Called(prefix string) bool {
	for _, c := range p.Calls() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func (p *Page) Goto(url string, _ time.Duration) error {
	p.record("goto %s", url)
	if p.GotoFunc != nil {
		return p.GotoFunc(url)
	}
	return nil
}

func (p *Page) Click(selector string, _ time.Duration) error {
	p.record("click %s", selector)
	if p.ClickFunc != nil {
		return p.ClickFunc(selector)
	}
	return nil
}

func (p *Page) ClickText(text string, _ time.Duration) error {
	p.record("clicktext %s", text)
	if p.ClickTextFunc != nil {
		return p.ClickTextFunc(text)
	}
	return nil
}

func (p *Page) Fill(selector, value string, _ time.Duration) error {
	p.record("fill %s=%s", selector, value)
	if p.FillFunc != nil {
		return p.FillFunc(selector, value)
	}
	return nil
}

func (p *Page) Check(selector string, _ time.Duration) error {
	p.record("check %s", selector)
	if p.CheckFunc != nil {
		return p.CheckFunc(selector)
	}
	return nil
}

func (p *Page) SelectOption(selector, label string, _ time.Duration) error {
	p.record("select %s=%s", selector, label)
	if p.SelectOptionFunc != nil {
		return p.SelectOptionFunc(selector, label)
	}
	return nil
}

func (p *Page) WaitVisible(selector string, _ time.Duration) error {
	p.record("waitvisible %s", selector)
	if p.WaitVisibleFunc != nil {
		return p.WaitVisibleFunc(selector)
	}
	return nil
}

func (p *Page) Press(key string) error {
	p.record("press %s", key)
	if p.PressFunc != nil {
		return p.PressFunc(key)
	}
	return nil
}

func (p *Page) Type(text string) error {
	p.record("type %s", text)
	if p.TypeFunc != nil {
		return p.TypeFunc(text)
	}
	return nil
}

func (p *Page) Evaluate(script string, arg any) (any, error) {
	p.record("evaluate")
	if p.EvaluateFunc != nil {
		return p.EvaluateFunc(script, arg)
	}
	return nil, nil
}

func (p *Page) WaitForText(text string, _ time.Duration) error {
	p.record("waitfortext %s", text)
	if p.WaitForTextFunc != nil {
		return p.WaitForTextFunc(text)
	}
	return nil
}

func (p *Page) Wait(d time.Duration) {
	p.record("wait %s", d)
}

func (p *Page) Content() (string, error) {
	p.record("content")
	if p.ContentFunc != nil {
		return p.ContentFunc()
	}
	return p.HTML, nil
}

func (p *Page) Screenshot() ([]byte, error) {
	p.record("screenshot")
	if p.ScreenshotFunc != nil {
		return p.ScreenshotFunc()
	}
	return []byte("png"), nil
}

// Launcher is a fake browser.Launcher that counts launches and closes.
type Launcher struct {
	// NewPage supplies the page for each launch; nil yields an empty Page.
	NewPage func() *Page
	// Err, when set, makes every Launch fail.
	Err error

	launches atomic.Int32
	closes   atomic.Int32
}

// Launch returns a new fake session.
func (l *Launcher) Launch() (browser.Session, error) {
	l.launches.Add(1)
	if l.Err != nil {
		return nil, l.Err
	}
	page := &Page{}
	if l.NewPage != nil {
		page = l.NewPage()
	}
	return &Session{launcher: l, page: page}, nil
}

// Launches is the number of Launch calls so far.
func (l *Launcher) Launches() int { return int(l.launches.Load()) }

// Closes is the number of session Close calls so far.
func (l *Launcher) Closes() int { return int(l.closes.Load()) }

// Session is a fake browser.Session.
type Session struct {
	launcher *Launcher
	page     *Page
}

func (s *Session) Page() browser.Page { return s.page }

func (s *Session) Close() error {
	s.launcher.closes.Add(1)
	return nil
}
