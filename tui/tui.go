// Package tui implements a live terminal dashboard over a running
// Dispatcher's cache/region statistics: a tview.Application with
// bordered TextView panes laid out in a Flex, refreshed on a timer
// since the runtime has no single-step execution model to hook into.
package tui

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lookbusy1344/arm64jit/dispatch"
)

// StatsSource is anything that can report the current runtime
// snapshot; dispatch.Dispatcher satisfies it.
type StatsSource interface {
	Stats() dispatch.Stats
}

// TUI is the live dashboard application.
type TUI struct {
	source StatsSource

	App        *tview.Application
	MainLayout *tview.Flex

	CacheView  *tview.TextView
	RegionView *tview.TextView
	RunView    *tview.TextView

	refresh time.Duration
	stop    chan struct{}
}

// New builds a TUI polling source every refresh interval (zero selects
// a 500ms default).
func New(source StatsSource, refresh time.Duration) *TUI {
	if refresh <= 0 {
		refresh = 500 * time.Millisecond
	}
	t := &TUI{
		source:  source,
		App:     tview.NewApplication(),
		refresh: refresh,
		stop:    make(chan struct{}),
	}
	t.initializeViews()
	t.buildLayout()
	t.setupKeyBindings()
	return t
}

func (t *TUI) initializeViews() {
	t.CacheView = tview.NewTextView().SetDynamicColors(true)
	t.CacheView.SetBorder(true).SetTitle(" Translation Cache ")

	t.RegionView = tview.NewTextView().SetDynamicColors(true)
	t.RegionView.SetBorder(true).SetTitle(" Code Region ")

	t.RunView = tview.NewTextView().SetDynamicColors(true)
	t.RunView.SetBorder(true).SetTitle(" Dispatcher ")
}

func (t *TUI) buildLayout() {
	t.MainLayout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(t.CacheView, 0, 1, false).
		AddItem(t.RegionView, 0, 1, false).
		AddItem(t.RunView, 0, 1, false)
}

func (t *TUI) setupKeyBindings() {
	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
			t.App.Stop()
			return nil
		}
		return event
	})
}

// Run starts the refresh loop and the tview event loop; it blocks
// until the user quits or Stop is called.
func (t *TUI) Run() error {
	go t.refreshLoop()
	return t.App.SetRoot(t.MainLayout, true).Run()
}

// Stop ends the refresh loop and the application.
func (t *TUI) Stop() {
	close(t.stop)
	t.App.Stop()
}

func (t *TUI) refreshLoop() {
	ticker := time.NewTicker(t.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.render()
		}
	}
}

func (t *TUI) render() {
	st := t.source.Stats()
	t.App.QueueUpdateDraw(func() {
		t.CacheView.SetText(fmt.Sprintf(
			"hits: %d\nmisses: %d\nvalid entries: %d / %d",
			st.Cache.Hits, st.Cache.Misses, st.Cache.ValidEntries, st.Cache.Capacity))

		t.RegionView.SetText(fmt.Sprintf(
			"base: %#x\nused: %d / %d\nblocks: %d\nresets: %d",
			st.Region.Base, st.Region.Used, st.Region.Capacity, st.Region.BlockCount, st.Region.Resets))

		t.RunView.SetText(fmt.Sprintf(
			"blocks translated: %d\ndispatcher exits: %d",
			st.Blocks, st.Exits))
	})
}
