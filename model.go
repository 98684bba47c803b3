package main

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/philtim/mechclock/clock"
	"github.com/philtim/mechclock/config"
	"github.com/philtim/mechclock/dial"
	"github.com/philtim/mechclock/geonames"
	"github.com/philtim/mechclock/tzcatalog"
)

// readingMsg carries a sampler reading for one card. gen identifies the
// subscription it came from.
type readingMsg struct {
	card    int
	gen     int
	reading clock.Reading
}

// catalogMsg is sent once the timezone catalog is built
type catalogMsg struct{ catalog *tzcatalog.Catalog }

// geonamesMsg is sent when the GeoNames database finished loading
type geonamesMsg struct {
	synonyms map[string][]string
	err      error
}

type keyMap struct {
	Left   key.Binding
	Right  key.Binding
	Select key.Binding
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Close  key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Left:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "previous clock")),
		Right:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next clock")),
		Select: key.NewBinding(key.WithKeys("t", "/"), key.WithHelp("t", "timezone")),
		Up:     key.NewBinding(key.WithKeys("up", "ctrl+p"), key.WithHelp("↑", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "ctrl+n"), key.WithHelp("↓", "down")),
		Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Close:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right},
		{k.Select, k.Up, k.Down, k.Enter, k.Close},
		{k.Help, k.Quit},
	}
}

func (k keyMap) selectorHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Close}
}

// card is one clock face and the sampler that drives it.
type card struct {
	clock    *clock.Clock
	sampler  *clock.Sampler
	readings <-chan clock.Reading
	gen      int
}

// subscribe (re)starts the card's sampler on its current zone.
func (c *card) subscribe(ctx context.Context, logger *zap.Logger, idx int) tea.Cmd {
	c.gen++
	logger.Debug("subscribing",
		zap.String("sampler", c.sampler.ID()),
		zap.String("zone", c.clock.Zone),
		zap.Int("gen", c.gen))
	c.readings = c.sampler.Subscribe(ctx, c.clock.Zone)
	return waitForReading(idx, c.gen, c.readings)
}

func waitForReading(idx, gen int, ch <-chan clock.Reading) tea.Cmd {
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return nil
		}
		return readingMsg{card: idx, gen: gen, reading: r}
	}
}

func buildCatalogCmd(b *tzcatalog.Builder) tea.Cmd {
	return func() tea.Msg {
		return catalogMsg{catalog: b.Build()}
	}
}

func loadGeoNamesCmd(ctx context.Context, db *geonames.Database) tea.Cmd {
	return func() tea.Msg {
		db.LoadAsync(ctx)
		select {
		case <-db.Done():
		case <-ctx.Done():
			return geonamesMsg{err: ctx.Err()}
		}
		if err := db.Err(); err != nil {
			return geonamesMsg{err: err}
		}
		syn, err := db.Synonyms()
		return geonamesMsg{synonyms: syn, err: err}
	}
}

// model represents the application state
type model struct {
	ctx    context.Context
	logger *zap.Logger
	now    func() time.Time

	// Clocks
	cards []*card
	focus int
	face  dial.Options

	// Catalog
	builder  *tzcatalog.Builder
	catalog  *tzcatalog.Catalog
	geo      *geonames.Database
	geoErr   error
	synonyms map[string][]string

	// Selector state
	selecting bool
	input     textinput.Model
	results   []tzcatalog.Group
	cursor    int

	// View state
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	viewport viewport.Model
	ready    bool
	width    int
	height   int
	quitting bool
}

func newModel(ctx context.Context, cfg *config.Config, logger *zap.Logger, builder *tzcatalog.Builder, geo *geonames.Database) model {
	var clocks []*clock.Clock
	for _, c := range cfg.Clocks {
		clocks = append(clocks, clock.New(c.Name, c.Timezone))
	}
	// Sort clocks by UTC offset (west to east)
	clock.SortByOffset(clocks)

	var cards []*card
	for _, c := range clocks {
		cards = append(cards, &card{
			clock:   c,
			sampler: clock.NewSampler(clock.WithLogger(logger.Named("sampler"))),
		})
	}

	ti := textinput.New()
	ti.Placeholder = "Search timezone..."
	ti.CharLimit = 50
	ti.Width = 50

	face := dial.DefaultOptions()
	face.Radius = cfg.Face.Radius
	face.Seconds = cfg.Face.Seconds

	return model{
		ctx:     ctx,
		logger:  logger,
		now:     clock.SystemTime.Now,
		cards:   cards,
		face:    face,
		builder: builder,
		geo:     geo,
		input:   ti,
		keys:    newKeyMap(),
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

// Init subscribes every card and starts the catalog build
func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, buildCatalogCmd(m.builder)}
	for i, c := range m.cards {
		cmds = append(cmds, c.subscribe(m.ctx, m.logger, i))
	}
	if m.geo != nil {
		cmds = append(cmds, loadGeoNamesCmd(m.ctx, m.geo))
	}
	return tea.Batch(cmds...)
}

// stop ends every card's subscription.
func (m model) stop() {
	for _, c := range m.cards {
		c.sampler.Stop()
	}
}

func (m model) loading() bool {
	return m.catalog == nil || m.geoLoading()
}

// geoLoading reports whether GeoNames is enabled and still loading.
func (m model) geoLoading() bool {
	return m.geo != nil && m.geoErr == nil && !m.geo.IsReady()
}

// Update handles messages and updates the model
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd = m.handleKeyPress(msg)
		if m.quitting {
			return m, cmd
		}
		if cmd != nil {
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.viewportHeight())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = m.viewportHeight()
		}

	case readingMsg:
		if msg.card < 0 || msg.card >= len(m.cards) {
			break
		}
		c := m.cards[msg.card]
		if msg.gen != c.gen {
			// from a subscription that has since been replaced
			break
		}
		c.clock.Update(msg.reading)
		cmds = append(cmds, waitForReading(msg.card, c.gen, c.readings))

	case catalogMsg:
		m.catalog = msg.catalog
		if m.synonyms != nil {
			m.catalog = m.catalog.WithSynonyms(m.synonyms)
		}
		if m.catalog.Degraded() {
			m.logger.Warn("timezone catalog degraded",
				zap.Bool("fallback", m.catalog.Fallback),
				zap.Int("skipped", len(m.catalog.Skipped)))
		}
		m.refreshResults()

	case geonamesMsg:
		if msg.err != nil {
			m.geoErr = msg.err
			break
		}
		m.synonyms = msg.synonyms
		if m.catalog != nil {
			m.catalog = m.catalog.WithSynonyms(m.synonyms)
			m.refreshResults()
		}

	case spinner.TickMsg:
		// Continue spinner animation only while something is loading
		if m.loading() {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if m.ready && !m.selecting {
		m.viewport.SetContent(m.renderCards())
		m.viewport, cmd = m.viewport.Update(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m model) viewportHeight() int {
	// Reserve space for the command bar, and the full help when shown
	reserved := 2
	if m.help.ShowAll {
		reserved += lipgloss.Height(m.help.FullHelpView(m.keys.FullHelp()))
	}
	h := m.height - reserved
	if h < 1 {
		h = 1
	}
	return h
}

// handleKeyPress handles keyboard input based on current view state
func (m *model) handleKeyPress(msg tea.KeyMsg) tea.Cmd {
	if m.selecting {
		return m.handleSelectorKeys(msg)
	}
	return m.handleMainKeys(msg)
}

// handleMainKeys handles keys in main view
func (m *model) handleMainKeys(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Left):
		if m.focus > 0 {
			m.focus--
		}

	case key.Matches(msg, m.keys.Right):
		if m.focus < len(m.cards)-1 {
			m.focus++
		}

	case key.Matches(msg, m.keys.Select):
		if len(m.cards) == 0 {
			return nil
		}
		m.openSelector()
		return textinput.Blink

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		if m.ready {
			m.viewport.Height = m.viewportHeight()
		}
	}

	return nil
}

// handleSelectorKeys handles keys while the timezone selector is open.
// Anything that is not a navigation key goes to the search box.
func (m *model) handleSelectorKeys(msg tea.KeyMsg) tea.Cmd {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m.quit()

	case key.Matches(msg, m.keys.Close):
		m.closeSelector()

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.results)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Enter):
		return m.selectCurrent()

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		m.refreshResults()
		return cmd
	}

	return nil
}

func (m *model) quit() tea.Cmd {
	m.quitting = true
	m.stop()
	return tea.Quit
}

func (m *model) openSelector() {
	m.selecting = true
	m.input.Reset()
	m.input.Focus()
	m.cursor = 0
	m.refreshResults()

	zone := m.cards[m.focus].clock.Zone
	for i, g := range m.results {
		if g.HasMember(zone) {
			m.cursor = i
			break
		}
	}
}

func (m *model) closeSelector() {
	m.selecting = false
	m.input.Blur()
}

// refreshResults filters the catalog by the search box
func (m *model) refreshResults() {
	if m.catalog == nil {
		m.results = nil
		m.cursor = 0
		return
	}
	m.results = m.catalog.Filter(m.input.Value())
	if m.cursor >= len(m.results) {
		m.cursor = 0
	}
}

// selectCurrent moves the focused card to the highlighted group's
// representative zone and resubscribes its sampler.
func (m *model) selectCurrent() tea.Cmd {
	if len(m.results) == 0 {
		return nil
	}
	zone := m.results[m.cursor].RepresentativeIANAName
	c := m.cards[m.focus]

	m.logger.Info("timezone selected",
		zap.String("clock", c.clock.Name),
		zap.String("from", c.clock.Zone),
		zap.String("to", zone))

	c.clock.SetZone(zone, m.now())
	m.closeSelector()
	return c.subscribe(m.ctx, m.logger, m.focus)
}
