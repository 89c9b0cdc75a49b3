// Package guiapp implements a minimal fyne windowed viewer over a
// running Dispatcher's statistics: a fyne.App/fyne.Window plus a
// handful of widget.TextGrid panels refreshed from a polling loop,
// reporting the JIT runtime's cache/region counters.
package guiapp

import (
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/lookbusy1344/arm64jit/dispatch"
)

// StatsSource is anything that can report the current runtime
// snapshot; dispatch.Dispatcher satisfies it.
type StatsSource interface {
	Stats() dispatch.Stats
}

// GUI is the windowed stats viewer.
type GUI struct {
	source StatsSource

	App    fyne.App
	Window fyne.Window

	CacheView  *widget.TextGrid
	RegionView *widget.TextGrid
	RunView    *widget.TextGrid

	refresh time.Duration
	stop    chan struct{}
}

// New builds a GUI polling source every refresh interval (zero selects
// a 500ms default).
func New(source StatsSource, refresh time.Duration) *GUI {
	if refresh <= 0 {
		refresh = 500 * time.Millisecond
	}
	g := &GUI{
		source:  source,
		App:     app.New(),
		refresh: refresh,
		stop:    make(chan struct{}),
	}
	g.Window = g.App.NewWindow("arm64jit stats")
	g.initializeViews()
	g.buildLayout()
	return g
}

func (g *GUI) initializeViews() {
	g.CacheView = widget.NewTextGrid()
	g.RegionView = widget.NewTextGrid()
	g.RunView = widget.NewTextGrid()
}

func (g *GUI) buildLayout() {
	content := container.NewVBox(
		widget.NewLabelWithStyle("Translation Cache", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		g.CacheView,
		widget.NewLabelWithStyle("Code Region", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		g.RegionView,
		widget.NewLabelWithStyle("Dispatcher", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		g.RunView,
	)
	g.Window.SetContent(content)
	g.Window.Resize(fyne.NewSize(360, 320))
}

// Run starts the refresh loop and shows the window; it blocks until
// the window is closed.
func (g *GUI) Run() {
	go g.refreshLoop()
	g.Window.ShowAndRun()
}

// Stop ends the refresh loop.
func (g *GUI) Stop() {
	close(g.stop)
}

func (g *GUI) refreshLoop() {
	ticker := time.NewTicker(g.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.render()
		}
	}
}

func (g *GUI) render() {
	st := g.source.Stats()
	g.CacheView.SetText(fmt.Sprintf(
		"hits: %d\nmisses: %d\nvalid entries: %d / %d",
		st.Cache.Hits, st.Cache.Misses, st.Cache.ValidEntries, st.Cache.Capacity))
	g.RegionView.SetText(fmt.Sprintf(
		"base: %#x\nused: %d / %d\nblocks: %d\nresets: %d",
		st.Region.Base, st.Region.Used, st.Region.Capacity, st.Region.BlockCount, st.Region.Resets))
	g.RunView.SetText(fmt.Sprintf(
		"blocks translated: %d\ndispatcher exits: %d",
		st.Blocks, st.Exits))
}
