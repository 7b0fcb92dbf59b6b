// Package browser wraps the headless browser used by the lookup pipeline.
// The pipeline only sees the Launcher, Session and Page interfaces, so it
// can be exercised against browsertest fakes.
package browser

import "time"

// Launcher starts isolated browser sessions. Every call to Launch yields a
// fresh browser process that nothing else shares.
type Launcher interface {
	Launch() (Session, error)
}

// Session is one running browser with a single page. Close releases the
// browser process and must be called exactly once.
type Session interface {
	Page() Page
	Close() error
}

// Page is the subset of page automation the pipeline relies on. Timeouts
// are per call; a zero timeout means the driver default.
type Page interface {
	Goto(url string, timeout time.Duration) error
	Click(selector string, timeout time.Duration) error
	ClickText(text string, timeout time.Duration) error
	Fill(selector, value string, timeout time.Duration) error
	Check(selector string, timeout time.Duration) error
	SelectOption(selector, label string, timeout time.Duration) error
	WaitVisible(selector string, timeout time.Duration) error
	Press(key string) error
	Type(text string) error
	Evaluate(script string, arg any) (any, error)
	WaitForText(text string, timeout time.Duration) error
	Wait(d time.Duration)
	Content() (string, error)
	Screenshot() ([]byte, error)
}
