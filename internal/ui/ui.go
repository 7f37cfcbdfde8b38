package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/postsiva/internal/formatter"
	"github.com/desertthunder/postsiva/internal/media"
	"github.com/desertthunder/postsiva/internal/schedule"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	MediaView ViewState = iota
	ConfirmView
	ScheduleView
)

// MediaLibrary is the part of [media.Library] the browser drives.
type MediaLibrary interface {
	State() media.State
	Load(ctx context.Context, reset bool) error
	LoadMore(ctx context.Context) (bool, error)
	SetFilter(ctx context.Context, f media.Filter) error
	Delete(ctx context.Context, id string) error
}

// ScheduleBoard is the part of [schedule.Board] the browser drives.
type ScheduleBoard interface {
	State() schedule.State
	Load(ctx context.Context, q schedule.Query) error
	Cancel(ctx context.Context, id string) error
}

// confirmation is a pending destructive action awaiting y/n.
type confirmation struct {
	prompt string
	back   ViewState
	run    tea.Cmd
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	library      MediaLibrary
	board        ScheduleBoard
	width        int
	height       int
	mediaList    list.Model
	scheduleList list.Model
	media        media.State
	scheduled    schedule.State
	confirm      *confirmation
	status       string
	flash        bool
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model. board may be nil, which hides the scheduled view.
func NewModel(ctx context.Context, library MediaLibrary, board ScheduleBoard) *Model {
	m := &Model{
		ctx:          ctx,
		view:         MediaView,
		library:      library,
		board:        board,
		mediaList:    list.New(nil, list.NewDefaultDelegate(), 0, 0),
		scheduleList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:         help.New(),
		keys:         newKeyMap(),
	}
	m.mediaList.Title = "Media library"
	m.scheduleList.Title = "Scheduled posts"
	m.mediaList.SetShowHelp(false)
	m.scheduleList.SetShowHelp(false)
	return m
}

// Init loads the first page of media.
func (m *Model) Init() tea.Cmd {
	return m.loadMedia(true)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.mediaList.SetSize(msg.Width-4, msg.Height-8)
		m.scheduleList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case MediaView:
			return m.handleMediaKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ScheduleView:
			return m.handleScheduleKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgMediaLoaded, MsgMediaDeleted:
		res := msg.data.(mediaResult)
		m.err = res.err
		m.media = res.state
		cmd := m.mediaList.SetItems(mediaItems(res.state.Items))
		m.status = m.mediaSummary()
		m.flash = msg.kind == MsgMediaDeleted && res.err == nil
		if m.flash {
			m.status = "Deleted. " + m.status
		}
		return m, cmd

	case MsgScheduleLoaded, MsgScheduleCancelled:
		res := msg.data.(scheduleResult)
		m.err = res.err
		m.scheduled = res.state
		cmd := m.scheduleList.SetItems(scheduledItems(res.state.Posts))
		m.status = fmt.Sprintf("%d %s post(s)", res.state.Total, res.state.Query.Status)
		m.flash = msg.kind == MsgScheduleCancelled && res.err == nil
		if m.flash {
			m.status = "Cancelled. " + m.status
		}
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case MediaView:
		return m.renderMedia()
	case ConfirmView:
		return m.renderConfirm()
	case ScheduleView:
		return m.renderSchedule()
	default:
		return ""
	}
}

func (m *Model) handleMediaKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mediaList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.more):
		if m.media.Cursor.HasMore && !m.media.IsLoading {
			return m, m.loadMore()
		}
		return m, nil
	case key.Matches(msg, m.keys.filter):
		return m, m.cycleFilter()
	case key.Matches(msg, m.keys.reload):
		return m, m.loadMedia(true)
	case key.Matches(msg, m.keys.remove):
		if sel, ok := m.mediaList.SelectedItem().(mediaItem); ok {
			id := sel.item.ID
			m.confirm = &confirmation{
				prompt: fmt.Sprintf("Delete %s?", sel.Title()),
				back:   MediaView,
				run:    m.deleteMedia(id),
			}
			m.view = ConfirmView
		}
		return m, nil
	case key.Matches(msg, m.keys.schedule):
		if m.board == nil {
			return m, nil
		}
		m.view = ScheduleView
		return m, m.loadSchedule()
	}

	return m.updateLists(msg)
}

func (m *Model) handleScheduleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.scheduleList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = MediaView
		m.status = m.mediaSummary()
		return m, nil
	case key.Matches(msg, m.keys.reload):
		return m, m.loadSchedule()
	case key.Matches(msg, m.keys.remove):
		if sel, ok := m.scheduleList.SelectedItem().(scheduledItem); ok {
			id := sel.post.ID
			m.confirm = &confirmation{
				prompt: fmt.Sprintf("Cancel scheduled post %q?", sel.Title()),
				back:   ScheduleView,
				run:    m.cancelScheduled(id),
			}
			m.view = ConfirmView
		}
		return m, nil
	}

	return m.updateLists(msg)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm == nil {
		m.view = MediaView
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.yes):
		c := m.confirm
		m.confirm = nil
		m.view = c.back
		return m, c.run
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.view = m.confirm.back
		m.confirm = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case MediaView:
		m.mediaList, cmd = m.mediaList.Update(msg)
	case ScheduleView:
		m.scheduleList, cmd = m.scheduleList.Update(msg)
	}
	return m, cmd
}

func (m *Model) loadMedia(reset bool) tea.Cmd {
	m.status = "Loading..."
	return func() tea.Msg {
		err := m.library.Load(m.ctx, reset)
		return mediaLoadedMsg(m.library.State(), err)
	}
}

func (m *Model) loadMore() tea.Cmd {
	m.status = "Loading more..."
	return func() tea.Msg {
		_, err := m.library.LoadMore(m.ctx)
		return mediaLoadedMsg(m.library.State(), err)
	}
}

func (m *Model) cycleFilter() tea.Cmd {
	next := media.All
	switch m.media.Filter {
	case media.All, "":
		next = media.Images
	case media.Images:
		next = media.Videos
	}
	m.status = fmt.Sprintf("Filter: %s", next)
	return func() tea.Msg {
		err := m.library.SetFilter(m.ctx, next)
		return mediaLoadedMsg(m.library.State(), err)
	}
}

func (m *Model) deleteMedia(id string) tea.Cmd {
	return func() tea.Msg {
		err := m.library.Delete(m.ctx, id)
		return mediaDeletedMsg(m.library.State(), err)
	}
}

func (m *Model) loadSchedule() tea.Cmd {
	m.status = "Loading..."
	return func() tea.Msg {
		err := m.board.Load(m.ctx, schedule.Query{})
		return scheduleLoadedMsg(m.board.State(), err)
	}
}

func (m *Model) cancelScheduled(id string) tea.Cmd {
	return func() tea.Msg {
		err := m.board.Cancel(m.ctx, id)
		return scheduleCancelledMsg(m.board.State(), err)
	}
}

func (m *Model) mediaSummary() string {
	var size int64
	for _, it := range m.media.Items {
		size += it.Size
	}
	s := fmt.Sprintf("%d of %d item(s) • %s • filter: %s", len(m.media.Items), m.media.Cursor.Total, formatter.FormatSize(size), m.media.Filter)
	if m.media.Cursor.HasMore {
		s += " • more available"
	}
	return s
}

func (m *Model) footer(keys ...key.Binding) string {
	out := styles.help.Render(m.status)
	switch {
	case m.err != nil:
		out = styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	case m.flash:
		out = styles.ok.Render(m.status)
	}
	return fmt.Sprintf("%s\n%s", out, m.help.ShortHelpView(keys))
}

func (m *Model) renderMedia() string {
	keys := []key.Binding{m.keys.more, m.keys.filter, m.keys.reload, m.keys.remove}
	if m.board != nil {
		keys = append(keys, m.keys.schedule)
	}
	keys = append(keys, m.keys.quit)
	return fmt.Sprintf("%s\n\n%s", m.mediaList.View(), m.footer(keys...))
}

func (m *Model) renderSchedule() string {
	cancelKey := key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "cancel post"))
	return fmt.Sprintf("%s\n\n%s", m.scheduleList.View(), m.footer(cancelKey, m.keys.reload, m.keys.back, m.keys.quit))
}

func (m *Model) renderConfirm() string {
	if m.confirm == nil {
		return ""
	}
	title := styles.title.Render("Confirm")
	warn := styles.warn.Render(m.confirm.prompt)
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s\n\n%s", title, warn, helpView)
}
