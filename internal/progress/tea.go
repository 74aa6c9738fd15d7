package progress

import (
	"context"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type tickMsg struct{}
type stopMsg struct{}

type boardModel struct {
	board     *Board
	snap      Snapshot
	interrupt func()
}

func (m boardModel) Init() tea.Cmd {
	return nil
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC && m.interrupt != nil {
			m.interrupt()
		}
	case tickMsg:
		m.snap = m.board.Snapshot()
	case stopMsg:
		m.snap = m.board.Snapshot()
		return m, tea.Quit
	}
	return m, nil
}

func (m boardModel) View() string {
	return renderBoard(m.snap, true) + "\n"
}

// RenderTea draws the board on a terminal with bubbletea, refreshing every
// 250ms. Ctrl+C calls interrupt instead of killing the process so running
// jobs can stop at a chunk boundary. The returned func draws the final
// frame and waits for the program to exit.
func RenderTea(ctx context.Context, w io.Writer, board *Board, interrupt func()) func() {
	model := boardModel{board: board, snap: board.Snapshot(), interrupt: interrupt}
	program := tea.NewProgram(model, tea.WithOutput(w), tea.WithoutSignalHandler())
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		_, _ = program.Run()
	}()

	ticker := time.NewTicker(250 * time.Millisecond)
	stop := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				program.Send(tickMsg{})
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			program.Send(stopMsg{})
			<-exited
		})
	}
}
