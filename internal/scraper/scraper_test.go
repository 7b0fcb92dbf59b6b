package scraper

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wind-speed-service/config"
	"wind-speed-service/internal/browser"
	"wind-speed-service/internal/browser/browsertest"
	"wind-speed-service/internal/model"
	"wind-speed-service/internal/observability"
)

var fixedTime = time.Date(2024, 3, 14, 15, 9, 26, 0, time.FixedZone("EST", -5*60*60))

var addressInputs = strings.Join(config.Default().Scraper.AddressSelectors, ", ")

const resultsHTML = `<html><body><div class="results"><span>Vmph = 115</span></div></body></html>`

func newTestService(launcher *browsertest.Launcher) (*Service, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	svc := NewService(config.Default().Scraper, launcher, m)
	svc.clock = clockwork.NewFakeClockAt(fixedTime)
	return svc, m
}

func launcherFor(page *browsertest.Page) *browsertest.Launcher {
	return &browsertest.Launcher{NewPage: func() *browsertest.Page { return page }}
}

func TestLookup_Success(t *testing.T) {
	page := &browsertest.Page{HTML: resultsHTML}
	launcher := launcherFor(page)
	svc, m := newTestService(launcher)

	res := svc.Lookup(context.Background(), "411 Crusaders Dr, Sanford, NC")

	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.WindSpeed)
	require.NotNil(t, res.Vmph)
	assert.Equal(t, 115, *res.WindSpeed)
	assert.Equal(t, 115, *res.Vmph)
	assert.Equal(t, "Vmph = 115", res.RawValue)
	assert.Equal(t, "ASCE Hazard Tool", res.Source)
	assert.Equal(t, "411 Crusaders Dr, Sanford, NC", res.Address)
	assert.Equal(t, fixedTime.UTC(), res.RetrievedAt)
	assert.Empty(t, res.Error)
	assert.Empty(t, res.Screenshots)

	assert.Equal(t, 1, launcher.Launches())
	assert.Equal(t, 1, launcher.Closes())
	assert.True(t, page.Called("goto https://ascehazardtool.org/"))
	assert.True(t, page.Called("fill "))
	assert.True(t, page.Called("waitfortext Vmph"))
	assert.True(t, page.Called("clicktext View Results"))
	assert.True(t, page.Called("wait 3s"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lookups.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
}

func TestLookup_PrefersInPageLeafScan(t *testing.T) {
	page := &browsertest.Page{
		EvaluateFunc: func(script string, arg any) (any, error) {
			if script == leafTextScript {
				assert.Equal(t, "Vmph", arg)
				return "Vmph: 130", nil
			}
			return nil, nil
		},
	}
	svc, _ := newTestService(launcherFor(page))

	res := svc.Lookup(context.Background(), "1 Ocean Dr")

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 130, *res.Vmph)
	assert.Equal(t, "Vmph: 130", res.RawValue)
	assert.False(t, page.Called("content"))
}

func TestLookup_NavigationFailure(t *testing.T) {
	page := &browsertest.Page{
		GotoFunc: func(string) error { return errors.New("net::ERR_NAME_NOT_RESOLVED") },
	}
	launcher := launcherFor(page)
	svc, m := newTestService(launcher)

	res := svc.Lookup(context.Background(), "123 Main St")

	assert.False(t, res.Success)
	assert.Equal(t, "navigation failed: net::ERR_NAME_NOT_RESOLVED", res.Error)
	assert.Nil(t, res.WindSpeed)
	assert.Nil(t, res.Vmph)
	require.Len(t, res.Screenshots, 1)
	assert.Equal(t, "error", res.Screenshots[0].Name)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("png")), res.Screenshots[0].Data)
	assert.False(t, page.Called("fill "))
	assert.Equal(t, 1, launcher.Closes())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepFailures.WithLabelValues("navigate", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lookups.WithLabelValues("failure")))
}

func TestLookup_MarkerNeverAppears(t *testing.T) {
	page := &browsertest.Page{
		WaitForTextFunc: func(string) error { return errors.New("Timeout 60000ms exceeded") },
	}
	launcher := launcherFor(page)
	svc, _ := newTestService(launcher)

	res := svc.Lookup(context.Background(), "123 Main St")

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, `wind speed marker "Vmph" not found`)
	assert.Contains(t, res.Error, "Timeout 60000ms exceeded")
	require.Len(t, res.Screenshots, 1)
	assert.Equal(t, "error", res.Screenshots[0].Name)
	assert.Equal(t, 1, launcher.Closes())
}

func TestExtract_NoFragmentIsResultNotFound(t *testing.T) {
	page := &browsertest.Page{HTML: `<html><body><script>var Vmph = 1;</script></body></html>`}
	svc, _ := newTestService(launcherFor(page))

	err := svc.extract(&lookup{page: page})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResultNotFound)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestLookup_InputNotFound(t *testing.T) {
	page := &browsertest.Page{
		FillFunc: func(string, string) error { return errors.New("timeout waiting for selector") },
		EvaluateFunc: func(script string, _ any) (any, error) {
			if script == forceFillScript {
				return false, nil
			}
			return nil, nil
		},
	}
	launcher := launcherFor(page)
	svc, _ := newTestService(launcher)

	res := svc.Lookup(context.Background(), "123 Main St")

	assert.False(t, res.Success)
	assert.Equal(t, "could not find address input field", res.Error)
	assert.False(t, page.Called("waitfortext"))
	assert.Equal(t, 1, launcher.Closes())
}

func TestLookup_ForcedFillNudgesAutocomplete(t *testing.T) {
	page := &browsertest.Page{
		HTML:     resultsHTML,
		FillFunc: func(string, string) error { return errors.New("element is not visible") },
		EvaluateFunc: func(script string, arg any) (any, error) {
			if script == forceFillScript {
				args := arg.(map[string]any)
				assert.Equal(t, "9 Elm St", args["value"])
				return true, nil
			}
			return nil, nil
		},
	}
	svc, _ := newTestService(launcherFor(page))

	res := svc.Lookup(context.Background(), "9 Elm St")

	require.True(t, res.Success, res.Error)
	assert.True(t, page.Called("type  "))
	assert.True(t, page.Called("press Backspace"))
}

func TestLookup_AddressSelectorsTriedInListOrder(t *testing.T) {
	selectors := config.Default().Scraper.AddressSelectors
	var filled []string
	page := &browsertest.Page{
		HTML: resultsHTML,
		FillFunc: func(sel, _ string) error {
			filled = append(filled, sel)
			if sel == selectors[1] {
				return nil
			}
			return errors.New("not visible")
		},
	}
	svc, _ := newTestService(launcherFor(page))

	res := svc.Lookup(context.Background(), "123 Main St")

	require.True(t, res.Success, res.Error)
	assert.Equal(t, selectors[:2], filled)
	assert.True(t, page.Called("waitvisible "+addressInputs))
	assert.False(t, page.Called("type "), "no forced-fill nudge when a visible input was filled")
}

func TestLookup_OptionalFailuresIgnored(t *testing.T) {
	fail := errors.New("not here")
	page := &browsertest.Page{
		HTML:             resultsHTML,
		ClickFunc:        func(string) error { return fail },
		ClickTextFunc:    func(string) error { return fail },
		CheckFunc:        func(string) error { return fail },
		SelectOptionFunc: func(string, string) error { return fail },
		WaitVisibleFunc: func(sel string) error {
			if sel == addressInputs {
				return nil
			}
			return fail
		},
		PressFunc:        func(string) error { return fail },
	}
	launcher := launcherFor(page)
	svc, m := newTestService(launcher)

	res := svc.Lookup(context.Background(), "123 Main St")

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 115, *res.WindSpeed)
	assert.False(t, page.Called("wait "), "no settle delay when the results control is missing")
	for _, step := range []string{"select-suggestion", "risk-category", "load-type", "view-results"} {
		assert.Equal(t, 1.0, testutil.ToFloat64(m.StepFailures.WithLabelValues(step, "false")), step)
	}
	assert.Equal(t, 1, launcher.Closes())
}

func TestLookup_RiskCategoryFallsBackToText(t *testing.T) {
	page := &browsertest.Page{
		HTML:             resultsHTML,
		SelectOptionFunc: func(string, string) error { return errors.New("no select") },
	}
	svc, _ := newTestService(launcherFor(page))

	res := svc.Lookup(context.Background(), "123 Main St")

	require.True(t, res.Success, res.Error)
	assert.True(t, page.Called("clicktext Risk Category II"))
}

func TestLookup_NonNumericFragment(t *testing.T) {
	page := &browsertest.Page{HTML: `<html><body><p>Vmph pending</p></body></html>`}
	svc, _ := newTestService(launcherFor(page))

	res := svc.Lookup(context.Background(), "123 Main St")

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no numeric value")
	assert.Contains(t, res.Error, "Vmph pending")
}

func TestLookup_PanicRecovered(t *testing.T) {
	page := &browsertest.Page{
		GotoFunc: func(string) error { panic("boom") },
	}
	launcher := launcherFor(page)
	svc, m := newTestService(launcher)

	res := svc.Lookup(context.Background(), "123 Main St")

	assert.False(t, res.Success)
	assert.Equal(t, "unexpected error: boom", res.Error)
	require.Len(t, res.Screenshots, 1)
	assert.Equal(t, 1, launcher.Closes())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
}

func TestLookup_LaunchFailure(t *testing.T) {
	launcher := &browsertest.Launcher{Err: errors.New("chromium not installed")}
	svc, m := newTestService(launcher)

	res := svc.Lookup(context.Background(), "123 Main St")

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "chromium not installed")
	assert.Empty(t, res.Screenshots)
	assert.Equal(t, 0, launcher.Closes())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepFailures.WithLabelValues("launch", "true")))
}

func TestLookup_CancelledContext(t *testing.T) {
	page := &browsertest.Page{HTML: resultsHTML}
	launcher := launcherFor(page)
	svc, _ := newTestService(launcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := svc.Lookup(ctx, "123 Main St")

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "context canceled")
	assert.False(t, page.Called("goto"))
	assert.Equal(t, 1, launcher.Closes())
}

func TestLookup_ScreenshotFailureIsDropped(t *testing.T) {
	page := &browsertest.Page{
		GotoFunc:       func(string) error { return errors.New("offline") },
		ScreenshotFunc: func() ([]byte, error) { return nil, errors.New("page crashed") },
	}
	svc, _ := newTestService(launcherFor(page))

	res := svc.Lookup(context.Background(), "123 Main St")

	assert.False(t, res.Success)
	assert.Equal(t, "navigation failed: offline", res.Error)
	assert.Empty(t, res.Screenshots)
}

func TestLookup_DebugScreenshots(t *testing.T) {
	page := &browsertest.Page{HTML: resultsHTML}
	svc, _ := newTestService(launcherFor(page))
	svc.cfg.DebugScreenshots = true

	res := svc.Lookup(context.Background(), "123 Main St")

	require.True(t, res.Success, res.Error)
	var names []string
	for _, s := range res.Screenshots {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"after-navigate", "after-address", "results"}, names)
}

func TestLookup_ClosesExactlyOncePerLookup(t *testing.T) {
	pages := []*browsertest.Page{
		{HTML: resultsHTML},
		{GotoFunc: func(string) error { return errors.New("offline") }},
		{GotoFunc: func(string) error { panic("boom") }},
		{WaitForTextFunc: func(string) error { return errors.New("timeout") }},
		{HTML: resultsHTML},
	}
	i := 0
	launcher := &browsertest.Launcher{NewPage: func() *browsertest.Page {
		p := pages[i]
		i++
		return p
	}}
	svc, m := newTestService(launcher)

	for range pages {
		svc.Lookup(context.Background(), "123 Main St")
	}

	assert.Equal(t, len(pages), launcher.Launches())
	assert.Equal(t, len(pages), launcher.Closes())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Lookups.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Lookups.WithLabelValues("failure")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
}

// panickingLauncher is a browser.Launcher whose Launch panics.
type panickingLauncher struct{}

func (panickingLauncher) Launch() (browser.Session, error) {
	panic("driver connection lost")
}

func TestLookup_LaunchPanicRecovered(t *testing.T) {
	m := observability.NewMetricsForTesting()
	svc := NewService(config.Default().Scraper, panickingLauncher{}, m)
	svc.clock = clockwork.NewFakeClockAt(fixedTime)

	var res model.Result
	require.NotPanics(t, func() {
		res = svc.Lookup(context.Background(), "123 Main St")
	})

	assert.False(t, res.Success)
	assert.Equal(t, "unexpected error: driver connection lost", res.Error)
	assert.Equal(t, "123 Main St", res.Address)
	assert.Equal(t, model.Source, res.Source)
	assert.Equal(t, fixedTime.UTC(), res.RetrievedAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lookups.WithLabelValues("failure")))
}

func TestLookup_CapturePanicRecovered(t *testing.T) {
	page := &browsertest.Page{
		GotoFunc:       func(string) error { return errors.New("offline") },
		ScreenshotFunc: func() ([]byte, error) { panic("target closed") },
	}
	launcher := launcherFor(page)
	svc, m := newTestService(launcher)

	var res model.Result
	require.NotPanics(t, func() {
		res = svc.Lookup(context.Background(), "123 Main St")
	})

	assert.False(t, res.Success)
	assert.Equal(t, "unexpected error: target closed", res.Error)
	assert.Empty(t, res.Screenshots)
	assert.Equal(t, 1, launcher.Closes())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
}
