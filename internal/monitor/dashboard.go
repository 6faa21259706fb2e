package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/WarPigBRZ/BelugaDB/internal/model"
	"github.com/WarPigBRZ/BelugaDB/internal/runner"
)

type dashboardMode int

const (
	modeTargets dashboardMode = iota
	modeResults
	modeFilter
	modeLeave
)

const (
	maxCellWidth      = 24
	fallbackHeight    = 24
	tableChromeLines  = 10
	resultChromeLines = 8
)

// Options configures the run dashboard.
type Options struct {
	// Connection is the connection name shown in the header.
	Connection string
	// Script is previewed (first line) in the header.
	Script string
	// PromptOnLeave asks, after a complete run, which targets to carry back
	// to the database picker.
	PromptOnLeave bool
}

// Dashboard is the bubbletea model observing one dispatched run.
type Dashboard struct {
	handle *runner.Handle
	opts   Options

	rows  []model.TargetState // dispatch order
	index map[string]int      // target name -> rows position

	cursor int
	offset int
	width  int
	height int

	mode    dashboardMode
	message string

	filter textinput.Model
	query  string

	resultsTarget string
	resultsOffset int

	complete bool
	detached bool
	choice   model.ReturnChoice

	keymap KeyMap
	styles Styles
}

type updateMsg struct {
	update runner.Update
}

type doneMsg struct{}

// NewDashboard creates a dashboard model for a dispatched run.
func NewDashboard(h *runner.Handle, opts Options) *Dashboard {
	names := h.Targets()
	rows := make([]model.TargetState, len(names))
	index := make(map[string]int, len(names))
	for i, name := range names {
		rows[i] = model.NewTargetState(name)
		index[name] = i
	}

	filter := textinput.New()
	filter.Prompt = "/"
	filter.Placeholder = "target name"

	return &Dashboard{
		handle: h,
		opts:   opts,
		rows:   rows,
		index:  index,
		filter: filter,
		choice: model.PreviousSelection,
		keymap: DefaultKeyMap(),
		styles: DefaultStyles(),
	}
}

// Run starts the bubbletea program and blocks until the user leaves.
func (d *Dashboard) Run() error {
	program := tea.NewProgram(d, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

// ReturnChoice reports how the user chose to carry the selection back.
// Meaningful once Run has returned; defaults to the previous selection.
func (d *Dashboard) ReturnChoice() model.ReturnChoice {
	return d.choice
}

// Detached reports whether the user left while targets were still running.
func (d *Dashboard) Detached() bool {
	return d.detached
}

// Init implements tea.Model.
func (d *Dashboard) Init() tea.Cmd {
	return waitForUpdate(d.handle.Updates())
}

// waitForUpdate blocks on the run's update stream and converts it to a
// message. Re-issued after every delivery; the closed channel marks the end.
func waitForUpdate(updates <-chan runner.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg{update: u}
	}
}

// Update implements tea.Model.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		return d, nil
	case updateMsg:
		d.applyUpdate(msg.update)
		return d, waitForUpdate(d.handle.Updates())
	case doneMsg:
		d.complete = true
		return d, nil
	case tea.KeyMsg:
		return d.handleKey(msg)
	default:
		return d, nil
	}
}

func (d *Dashboard) applyUpdate(u runner.Update) {
	if i, ok := d.index[u.Target]; ok {
		d.rows[i] = u.State
	}
	if u.Complete {
		d.complete = true
	}
}

// View implements tea.Model.
func (d *Dashboard) View() string {
	switch d.mode {
	case modeResults:
		return d.styles.Box.Render(d.viewResults())
	case modeLeave:
		return d.styles.Box.Render(d.viewLeave())
	default:
		return d.styles.Box.Render(d.viewTargets())
	}
}

func (d *Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return d.leave()
	}

	switch d.mode {
	case modeTargets:
		return d.handleTargetsKey(msg)
	case modeResults:
		return d.handleResultsKey(msg)
	case modeFilter:
		return d.handleFilterKey(msg)
	case modeLeave:
		return d.handleLeaveKey(msg)
	default:
		return d, nil
	}
}

func (d *Dashboard) handleTargetsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case d.keymap.Quit:
		return d.leave()
	case "up", "k":
		if d.cursor > 0 {
			d.cursor--
			d.ensureCursorVisible()
		}
		return d, nil
	case "down", "j":
		if d.cursor < len(d.visibleRows())-1 {
			d.cursor++
			d.ensureCursorVisible()
		}
		return d, nil
	case d.keymap.Results:
		row, ok := d.selectedRow()
		if !ok {
			return d, nil
		}
		if !row.HasResults() {
			d.message = fmt.Sprintf("no results yet for %q", row.Name)
			return d, nil
		}
		d.resultsTarget = row.Name
		d.resultsOffset = 0
		d.mode = modeResults
		return d, nil
	case d.keymap.Filter:
		d.mode = modeFilter
		d.filter.SetValue(d.query)
		d.filter.CursorEnd()
		return d, d.filter.Focus()
	}
	return d, nil
}

func (d *Dashboard) handleResultsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case d.keymap.Back:
		d.mode = modeTargets
		return d, nil
	case d.keymap.Quit:
		return d.leave()
	case "up", "k":
		if d.resultsOffset > 0 {
			d.resultsOffset--
		}
		return d, nil
	case "down", "j":
		if d.resultsOffset < d.maxResultsOffset() {
			d.resultsOffset++
		}
		return d, nil
	}
	return d, nil
}

func (d *Dashboard) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case d.keymap.Back:
		d.filter.Blur()
		d.mode = modeTargets
		return d, nil
	case "enter":
		d.query = strings.TrimSpace(d.filter.Value())
		d.filter.Blur()
		d.mode = modeTargets
		d.clampCursor()
		return d, nil
	}
	var cmd tea.Cmd
	d.filter, cmd = d.filter.Update(msg)
	return d, cmd
}

func (d *Dashboard) handleLeaveKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "p":
		d.choice = model.PreviousSelection
		return d, tea.Quit
	case "e":
		d.choice = model.ErrorsOnly
		return d, tea.Quit
	case d.keymap.Back:
		d.mode = modeTargets
		return d, nil
	}
	return d, nil
}

// leave quits the dashboard. A run still in flight is detached and keeps
// running server-side; a complete run may first ask how to carry the
// selection back.
func (d *Dashboard) leave() (tea.Model, tea.Cmd) {
	if !d.complete {
		d.handle.Detach()
		d.detached = true
		return d, tea.Quit
	}
	if d.opts.PromptOnLeave && d.mode != modeLeave {
		d.mode = modeLeave
		return d, nil
	}
	return d, tea.Quit
}

func (d *Dashboard) visibleRows() []model.TargetState {
	if d.query == "" {
		return d.rows
	}
	q := strings.ToLower(d.query)
	var out []model.TargetState
	for _, row := range d.rows {
		if strings.Contains(strings.ToLower(row.Name), q) {
			out = append(out, row)
		}
	}
	return out
}

func (d *Dashboard) selectedRow() (model.TargetState, bool) {
	visible := d.visibleRows()
	if d.cursor < 0 || d.cursor >= len(visible) {
		return model.TargetState{}, false
	}
	return visible[d.cursor], true
}

func (d *Dashboard) clampCursor() {
	if n := len(d.visibleRows()); d.cursor >= n {
		d.cursor = n - 1
	}
	if d.cursor < 0 {
		d.cursor = 0
	}
	d.ensureCursorVisible()
}

func (d *Dashboard) tableMaxRows() int {
	height := d.height
	if height <= 0 {
		height = fallbackHeight
	}
	rows := height - tableChromeLines
	if rows < 5 {
		rows = 5
	}
	return rows
}

func (d *Dashboard) ensureCursorVisible() {
	maxRows := d.tableMaxRows()
	if d.cursor < d.offset {
		d.offset = d.cursor
	}
	if d.cursor >= d.offset+maxRows {
		d.offset = d.cursor - maxRows + 1
	}
	if d.offset < 0 {
		d.offset = 0
	}
}

func (d *Dashboard) safeWidth() int {
	if d.width <= 4 {
		return 76
	}
	return d.width - 4
}

func (d *Dashboard) viewTargets() string {
	lines := []string{
		d.header(),
		"",
		d.renderTable(),
		"",
		d.phaseSummary(),
	}
	if d.message != "" {
		lines = append(lines, "", d.styles.Muted.Render(d.message))
	}
	footer := d.keymap.HelpLine()
	if d.mode == modeFilter {
		lines = append(lines, "", d.filter.View())
		footer = d.keymap.FilterHelpLine()
	} else if d.query != "" {
		lines = append(lines, "", d.styles.Muted.Render(fmt.Sprintf("filter: %s (%d/%d shown)", d.query, len(d.visibleRows()), len(d.rows))))
	}
	lines = append(lines, "", d.styles.Muted.Render(footer))
	return strings.Join(lines, "\n")
}

func (d *Dashboard) header() string {
	title := d.styles.Title.Render("BELUGA RUN")
	conn := ""
	if d.opts.Connection != "" {
		conn = "  " + d.styles.Muted.Render(d.opts.Connection)
	}
	state := d.styles.PhaseWaiting.Render("running")
	if d.complete {
		state = d.styles.PhaseSuccess.Render("complete")
		if d.errorCount() > 0 {
			state = d.styles.PhaseError.Render("complete with errors")
		}
	}
	lines := []string{title + conn + "  " + state}
	if preview := scriptPreview(d.opts.Script); preview != "" {
		lines = append(lines, d.styles.Muted.Render(truncate(preview, d.safeWidth())))
	}
	return strings.Join(lines, "\n")
}

func (d *Dashboard) renderTable() string {
	visible := d.visibleRows()
	if len(visible) == 0 {
		if d.query != "" {
			return d.styles.Muted.Render("no targets match the filter")
		}
		return d.styles.Muted.Render("no targets")
	}

	nameW, phaseW, stmtW := d.tableWidths(visible)
	lastW := d.safeWidth() - nameW - phaseW - stmtW - 8
	if lastW < 10 {
		lastW = 10
	}

	header := fmt.Sprintf("  %s  %s  %s  %s",
		pad("TARGET", nameW),
		pad("PHASE", phaseW),
		pad("STMTS", stmtW),
		pad("LAST", lastW),
	)
	rows := []string{d.styles.Header.Render(header)}

	maxRows := d.tableMaxRows()
	end := d.offset + maxRows
	if end > len(visible) {
		end = len(visible)
	}
	for i := d.offset; i < end; i++ {
		row := visible[i]
		line := fmt.Sprintf("%s %s  %s  %s  %s",
			d.styles.Indicator(row.Phase),
			pad(truncate(row.Name, nameW), nameW),
			pad(string(row.Phase), phaseW),
			pad(stmtCount(row), stmtW),
			pad(truncate(lastOutcome(row), lastW), lastW),
		)
		if i == d.cursor {
			line = d.styles.Selected.Render(line)
		} else {
			line = d.stylePhaseLine(row.Phase, line)
		}
		rows = append(rows, line)
	}
	if end < len(visible) {
		rows = append(rows, d.styles.Muted.Render(fmt.Sprintf("  ... %d more", len(visible)-end)))
	}
	return strings.Join(rows, "\n")
}

func (d *Dashboard) stylePhaseLine(phase model.Phase, line string) string {
	if phase == model.PhaseError {
		return d.styles.PhaseError.Render(line)
	}
	return d.styles.Normal.Render(line)
}

func (d *Dashboard) tableWidths(rows []model.TargetState) (nameW, phaseW, stmtW int) {
	nameW = runewidth.StringWidth("TARGET")
	for _, row := range rows {
		if w := runewidth.StringWidth(row.Name); w > nameW {
			nameW = w
		}
	}
	if nameW > maxCellWidth {
		nameW = maxCellWidth
	}
	phaseW = len("waiting")
	stmtW = len("STMTS")
	return nameW, phaseW, stmtW
}

func (d *Dashboard) phaseSummary() string {
	waiting, success, errors := 0, 0, 0
	for _, row := range d.rows {
		switch row.Phase {
		case model.PhaseSuccess:
			success++
		case model.PhaseError:
			errors++
		default:
			waiting++
		}
	}
	return d.styles.PhaseSummary(waiting, success, errors)
}

func (d *Dashboard) errorCount() int {
	n := 0
	for _, row := range d.rows {
		if row.Phase == model.PhaseError {
			n++
		}
	}
	return n
}

func (d *Dashboard) viewResults() string {
	row, ok := d.targetRow(d.resultsTarget)
	if !ok {
		return d.styles.Muted.Render("target not found")
	}

	title := fmt.Sprintf("%s %s  %s", d.styles.Indicator(row.Phase), d.styles.Title.Render(row.Name), d.styles.StylePhase(row.Phase))
	lines := []string{title}
	if row.Diagnostic != "" {
		lines = append(lines, d.styles.PhaseError.Render(truncate(row.Diagnostic, d.safeWidth())))
	}
	lines = append(lines, "")

	body := d.resultLines(row)
	maxLines := d.resultsMaxLines()
	end := d.resultsOffset + maxLines
	if end > len(body) {
		end = len(body)
	}
	start := d.resultsOffset
	if start > end {
		start = end
	}
	lines = append(lines, body[start:end]...)
	if end < len(body) {
		lines = append(lines, d.styles.Muted.Render(fmt.Sprintf("... %d more line(s)", len(body)-end)))
	}

	lines = append(lines, "", d.styles.Muted.Render(d.keymap.ResultsHelpLine()))
	return strings.Join(lines, "\n")
}

func (d *Dashboard) targetRow(name string) (model.TargetState, bool) {
	i, ok := d.index[name]
	if !ok {
		return model.TargetState{}, false
	}
	return d.rows[i], true
}

// resultLines renders every statement outcome of one target as display lines.
func (d *Dashboard) resultLines(row model.TargetState) []string {
	if len(row.Statements) == 0 {
		return []string{d.styles.Muted.Render("no statement results")}
	}
	width := d.safeWidth()
	var lines []string
	for i, res := range row.Statements {
		label := fmt.Sprintf("%d. %s", i+1, res.Summary())
		switch res.Kind {
		case model.StatementFailure:
			lines = append(lines, d.styles.PhaseError.Render(truncate(label, width)))
		case model.StatementTabular:
			lines = append(lines, d.styles.Header.Render(truncate(label, width)))
			lines = append(lines, renderResultTable(res, width)...)
		default:
			lines = append(lines, d.styles.Normal.Render(truncate(label, width)))
		}
		if i < len(row.Statements)-1 {
			lines = append(lines, "")
		}
	}
	return lines
}

func (d *Dashboard) resultsMaxLines() int {
	height := d.height
	if height <= 0 {
		height = fallbackHeight
	}
	max := height - resultChromeLines
	if max < 5 {
		max = 5
	}
	return max
}

func (d *Dashboard) maxResultsOffset() int {
	row, ok := d.targetRow(d.resultsTarget)
	if !ok {
		return 0
	}
	max := len(d.resultLines(row)) - d.resultsMaxLines()
	if max < 0 {
		max = 0
	}
	return max
}

func (d *Dashboard) viewLeave() string {
	errors := d.errorCount()
	lines := []string{
		d.styles.Title.Render("RUN COMPLETE"),
		"",
		fmt.Sprintf("%d of %d target(s) failed.", errors, len(d.rows)),
		"",
		"Carry which targets back to the database picker?",
		"",
		"  [p] previous selection, unchanged",
		fmt.Sprintf("  [e] error targets only (%d)", errors),
		"",
		d.styles.Muted.Render("[esc] stay on the dashboard"),
	}
	return strings.Join(lines, "\n")
}

// renderResultTable renders a tabular result as padded text columns.
func renderResultTable(res model.StatementResult, maxWidth int) []string {
	widths := columnWidths(res.Columns, res.Rows)
	lines := []string{truncate(renderCells(res.Columns, widths), maxWidth)}
	for _, row := range res.Rows {
		lines = append(lines, truncate(renderCells(row, widths), maxWidth))
	}
	return lines
}

func renderCells(cells []string, widths []int) string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		w := maxCellWidth
		if i < len(widths) {
			w = widths[i]
		}
		parts[i] = pad(truncate(cell, w), w)
	}
	return strings.Join(parts, "  ")
}

func columnWidths(columns []string, rows [][]string) []int {
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = runewidth.StringWidth(col)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		if widths[i] > maxCellWidth {
			widths[i] = maxCellWidth
		}
	}
	return widths
}

func stmtCount(row model.TargetState) string {
	if len(row.Statements) == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", len(row.Statements))
}

// lastOutcome is the rightmost table column: the most recent statement
// summary, or the diagnostic once the target errored.
func lastOutcome(row model.TargetState) string {
	if row.Phase == model.PhaseError && row.Diagnostic != "" {
		return row.Diagnostic
	}
	if n := len(row.Statements); n > 0 {
		return row.Statements[n-1].Summary()
	}
	return "-"
}

func scriptPreview(script string) string {
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

func pad(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	if width <= 3 {
		return truncateToWidth(s, width)
	}
	return truncateToWidth(s, width-3) + "..."
}

func truncateToWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	var b strings.Builder
	current := 0
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if current+rw > width {
			break
		}
		b.WriteRune(r)
		current += rw
	}
	return b.String()
}
