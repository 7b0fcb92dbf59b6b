package scraper

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"wind-speed-service/config"
	"wind-speed-service/internal/browser"
	"wind-speed-service/internal/model"
	"wind-speed-service/internal/observability"
	"wind-speed-service/internal/parse"
)

var (
	// ErrInputNotFound means no address field could be filled, not even by
	// writing to the DOM directly.
	ErrInputNotFound = errors.New("could not find address input field")
	// ErrResultNotFound means the result marker never appeared on the page,
	// or appeared without any text fragment to read.
	ErrResultNotFound = errors.New("wind speed result not found")
)

type markerError struct {
	marker string
	cause  error
}

func (e *markerError) Error() string {
	return fmt.Sprintf("wind speed marker %q not found: %v", e.marker, e.cause)
}

func (e *markerError) Is(target error) bool { return target == ErrResultNotFound }

func (e *markerError) Unwrap() error { return e.cause }

// Service runs wind-speed lookups against the hazard tool, one fresh browser
// per lookup.
type Service struct {
	cfg      config.ScraperConfig
	launcher browser.Launcher
	metrics  *observability.Metrics
	clock    clockwork.Clock
}

// NewService creates a lookup service.
func NewService(cfg config.ScraperConfig, launcher browser.Launcher, metrics *observability.Metrics) *Service {
	return &Service{
		cfg:      cfg,
		launcher: launcher,
		metrics:  metrics,
		clock:    clockwork.NewRealClock(),
	}
}

// lookup carries the state of a single run through the steps.
type lookup struct {
	address string
	page    browser.Page
	raw     string
	value   int
	shots   []model.Screenshot
}

// step is one phase of the lookup. A failed optional step is logged and
// skipped; a failed required step ends the lookup.
type step struct {
	name     string
	optional bool
	run      func(l *lookup) error
}

func (s *Service) steps() []step {
	return []step{
		{name: "navigate", run: s.navigate},
		{name: "dismiss-popups", optional: true, run: s.dismissPopups},
		{name: "fill-address", run: s.fillAddress},
		{name: "select-suggestion", optional: true, run: s.selectSuggestion},
		{name: "risk-category", optional: true, run: s.selectRiskCategory},
		{name: "load-type", optional: true, run: s.selectLoadType},
		{name: "view-results", optional: true, run: s.viewResults},
		{name: "extract", run: s.extract},
		{name: "parse", run: s.parse},
	}
}

// Lookup drives the hazard tool for address and returns the outcome. It
// never returns an error; failures are reported in the result.
func (s *Service) Lookup(ctx context.Context, address string) (res model.Result) {
	start := s.clock.Now()
	defer func() {
		outcome := "failure"
		if res.Success {
			outcome = "success"
		}
		s.metrics.Lookups.WithLabelValues(outcome).Inc()
		s.metrics.LookupDuration.Observe(s.clock.Since(start).Seconds())
	}()

	log.Printf("Looking up wind speed for %q", address)
	l := &lookup{address: address}

	// Steps recover their own panics so the page can still be captured.
	// This catches the rest: launch, result shaping and capture itself.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered panic outside lookup steps for %q: %v", address, r)
			res = model.Failed(address, fmt.Errorf("unexpected error: %v", r), s.now(), l.shots)
		}
	}()

	session, err := s.launcher.Launch()
	if err != nil {
		s.metrics.StepFailures.WithLabelValues("launch", "true").Inc()
		return s.fail(l, fmt.Errorf("failed to launch browser: %w", err))
	}
	s.metrics.ActiveSessions.Inc()
	defer s.release(session)

	l.page = session.Page()
	if err := s.run(ctx, l); err != nil {
		return s.fail(l, err)
	}

	log.Printf("Wind speed for %q: %d (%q)", address, l.value, l.raw)
	return model.Succeeded(address, l.raw, l.value, s.now(), l.shots)
}

// run executes the steps in order. A panic in any step is turned into an
// error so the caller can still capture diagnostics before teardown.
func (s *Service) run(ctx context.Context, l *lookup) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered panic during lookup for %q: %v", l.address, r)
			err = fmt.Errorf("unexpected error: %v", r)
		}
	}()

	steps := s.steps()
	for i, st := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("lookup cancelled before %s: %w", st.name, err)
		}
		log.Printf("[%d/%d] %s", i+1, len(steps), st.name)

		if err := st.run(l); err != nil {
			s.metrics.StepFailures.WithLabelValues(st.name, strconv.FormatBool(!st.optional)).Inc()
			if st.optional {
				log.Printf("      %s skipped: %v", st.name, err)
				continue
			}
			return err
		}
	}
	return nil
}

func (s *Service) release(session browser.Session) {
	if err := session.Close(); err != nil {
		log.Printf("Warning: failed to close browser session: %v", err)
	}
	s.metrics.ActiveSessions.Dec()
}

func (s *Service) fail(l *lookup, err error) model.Result {
	log.Printf("Lookup for %q failed: %v", l.address, err)
	if l.page != nil {
		s.capture(l, "error")
	}
	return model.Failed(l.address, err, s.now(), l.shots)
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// capture appends a screenshot to the lookup. Failures are logged and the
// screenshot is dropped.
func (s *Service) capture(l *lookup, name string) {
	png, err := l.page.Screenshot()
	if err != nil {
		log.Printf("Warning: screenshot %q failed: %v", name, err)
		return
	}
	l.shots = append(l.shots, model.Screenshot{
		Name: name,
		Data: base64.StdEncoding.EncodeToString(png),
	})
}

func (s *Service) debugCapture(l *lookup, name string) {
	if s.cfg.DebugScreenshots {
		s.capture(l, name)
	}
}

func (s *Service) navigate(l *lookup) error {
	if err := l.page.Goto(s.cfg.TargetURL, s.cfg.NavigationTimeout); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	s.debugCapture(l, "after-navigate")
	return nil
}

func (s *Service) dismissPopups(l *lookup) error {
	chain := Chain[int]{
		{Name: "button-text", Try: func(p browser.Page) (int, error) {
			return evalCount(p, clickButtonsByTextScript, s.cfg.PopupButtonTexts)
		}},
		{Name: "escape", Try: func(p browser.Page) (int, error) {
			return 1, p.Press("Escape")
		}},
		{Name: "selectors", Try: func(p browser.Page) (int, error) {
			return evalCount(p, clickAllScript, s.cfg.PopupSelectors)
		}},
	}
	applied := chain.Each(l.page)
	log.Printf("      popup strategies applied: %v", applied)
	return nil
}

// selectorProbeTimeout bounds each address selector once some input from
// the list is known to be visible.
const selectorProbeTimeout = 500 * time.Millisecond

func (s *Service) fillAddress(l *lookup) error {
	// One strategy per selector, tried in list order, so a generic fallback
	// never wins over a more specific selector earlier in the list.
	byPriority := make(Chain[string], 0, len(s.cfg.AddressSelectors))
	for _, sel := range s.cfg.AddressSelectors {
		byPriority = append(byPriority, Strategy[string]{Name: sel, Try: func(p browser.Page) (string, error) {
			return sel, p.Fill(sel, l.address, selectorProbeTimeout)
		}})
	}

	anyInput := strings.Join(s.cfg.AddressSelectors, ", ")
	chain := Chain[bool]{
		{Name: "visible-input", Try: func(p browser.Page) (bool, error) {
			if err := p.WaitVisible(anyInput, s.cfg.InputTimeout); err != nil {
				return false, err
			}
			sel, _, err := byPriority.First(p)
			if err != nil {
				return false, err
			}
			log.Printf("      address input matched %s", sel)
			return false, nil
		}},
		{Name: "forced-dom", Try: func(p browser.Page) (bool, error) {
			return evalTrue(p, forceFillScript, map[string]any{
				"selectors": s.cfg.AddressSelectors,
				"value":     l.address,
			})
		}},
	}

	forced, via, err := chain.First(l.page)
	if err != nil {
		log.Printf("      address input not found: %v", err)
		return ErrInputNotFound
	}
	log.Printf("      address entered via %s", via)

	if forced {
		// Nudge listener-based autocomplete that ignores synthetic events.
		if err := l.page.Type(" "); err != nil {
			log.Printf("      autocomplete nudge failed: %v", err)
		} else if err := l.page.Press("Backspace"); err != nil {
			log.Printf("      autocomplete nudge failed: %v", err)
		}
	}
	s.debugCapture(l, "after-address")
	return nil
}

func (s *Service) selectSuggestion(l *lookup) error {
	selectors := strings.Join(s.cfg.SuggestionSelectors, ", ")
	chain := Chain[struct{}]{
		{Name: "first-suggestion", Try: func(p browser.Page) (struct{}, error) {
			if err := p.WaitVisible(selectors, s.cfg.SuggestionTimeout); err != nil {
				return struct{}{}, err
			}
			return struct{}{}, p.Click(selectors, s.cfg.SuggestionTimeout)
		}},
		{Name: "enter", Try: func(p browser.Page) (struct{}, error) {
			return struct{}{}, p.Press("Enter")
		}},
	}
	_, via, err := chain.First(l.page)
	if err != nil {
		return err
	}
	log.Printf("      address submitted via %s", via)
	return nil
}

func (s *Service) selectRiskCategory(l *lookup) error {
	label := s.cfg.RiskCategory
	chain := Chain[struct{}]{
		{Name: "select-label", Try: func(p browser.Page) (struct{}, error) {
			sel := fmt.Sprintf(`select:has(option:has-text(%q))`, label)
			return struct{}{}, p.SelectOption(sel, label, s.cfg.OptionTimeout)
		}},
		{Name: "text", Try: func(p browser.Page) (struct{}, error) {
			return struct{}{}, p.ClickText(label, s.cfg.OptionTimeout)
		}},
	}
	_, _, err := chain.First(l.page)
	return err
}

func (s *Service) selectLoadType(l *lookup) error {
	label := s.cfg.LoadType
	chain := Chain[struct{}]{
		{Name: "labelled-checkbox", Try: func(p browser.Page) (struct{}, error) {
			sel := fmt.Sprintf(`label:has-text(%q) input[type="checkbox"]`, label)
			return struct{}{}, p.Check(sel, s.cfg.OptionTimeout)
		}},
		{Name: "checkbox-value", Try: func(p browser.Page) (struct{}, error) {
			sel := fmt.Sprintf(`input[type="checkbox"][value*=%q i]`, strings.ToLower(label))
			return struct{}{}, p.Check(sel, s.cfg.OptionTimeout)
		}},
		{Name: "label-text", Try: func(p browser.Page) (struct{}, error) {
			return struct{}{}, p.ClickText(label, s.cfg.OptionTimeout)
		}},
	}
	_, _, err := chain.First(l.page)
	return err
}

func (s *Service) viewResults(l *lookup) error {
	if err := l.page.ClickText(s.cfg.ResultsButton, s.cfg.InputTimeout); err != nil {
		return err
	}
	l.page.Wait(s.cfg.SettleDelay)
	return nil
}

func (s *Service) extract(l *lookup) error {
	marker := s.cfg.ResultMarker
	if err := l.page.WaitForText(marker, s.cfg.ResultsTimeout); err != nil {
		return &markerError{marker: marker, cause: err}
	}
	s.debugCapture(l, "results")

	chain := Chain[string]{
		{Name: "leaf-elements", Try: func(p browser.Page) (string, error) {
			return evalString(p, leafTextScript, marker)
		}},
		{Name: "text-nodes", Try: func(p browser.Page) (string, error) {
			return evalString(p, textNodeScript, marker)
		}},
		{Name: "document-html", Try: func(p browser.Page) (string, error) {
			doc, err := p.Content()
			if err != nil {
				return "", err
			}
			text, err := parse.MarkerText(doc, marker)
			if err != nil {
				return "", err
			}
			if text == "" {
				return "", errNothingFound
			}
			return text, nil
		}},
	}

	raw, via, err := chain.First(l.page)
	if err != nil {
		return &markerError{marker: marker, cause: err}
	}
	log.Printf("      result text %q found via %s", raw, via)
	l.raw = raw
	return nil
}

func (s *Service) parse(l *lookup) error {
	n, err := parse.FirstInt(l.raw)
	if err != nil {
		return fmt.Errorf("%w: %q", err, l.raw)
	}
	l.value = n
	return nil
}
