package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// FileOutput tracks the live progress display state for one file's
// download: which bundle is currently in flight, how many bytes of it
// have arrived, and the terminal status once every bundle for the
// file has resolved.
type FileOutput struct {
	ID          int
	Path        string
	Status      string
	Message     string
	StreamLines []string
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
	Index       int
}

// ErrorReport is one file-level failure surfaced in the end-of-run
// summary.
type ErrorReport struct {
	Path  string
	Error error
	Time  time.Time
}

// Manager renders a live, line-redrawing progress display for an
// in-progress download: one line per file (grouped active/pending/
// completed), each optionally carrying a handful of indented stream
// lines showing the bundle currently being fetched.
type Manager struct {
	outputs       map[string]*FileOutput
	mutex         sync.RWMutex
	numLines      int
	maxStreams    int // Max stream lines shown per file
	errors        []ErrorReport
	doneCh        chan struct{}
	pauseCh       chan bool
	isPaused      bool
	displayTick   time.Duration
	fileCount     int
	displayWg     sync.WaitGroup
	enableLogging bool
}

// NewManager builds an idle Manager; call StartDisplay to begin
// redrawing.
func NewManager() *Manager {
	return &Manager{
		outputs:     make(map[string]*FileOutput),
		errors:      []ErrorReport{},
		maxStreams:  10,
		doneCh:      make(chan struct{}),
		pauseCh:     make(chan bool),
		displayTick: 300 * time.Millisecond,
	}
}

func (m *Manager) EnableLogging() {
	m.enableLogging = true
}

func (m *Manager) Pause() {
	if !m.isPaused {
		m.pauseCh <- true
		m.isPaused = true
	}
}

func (m *Manager) Resume() {
	if m.isPaused {
		m.pauseCh <- false
		m.isPaused = false
	}
}

// RegisterFile adds path to the display and returns its handle for
// the rest of this manager's calls.
func (m *Manager) RegisterFile(path string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.fileCount++
	m.outputs[fmt.Sprint(m.fileCount)] = &FileOutput{
		ID:          m.fileCount,
		Path:        path,
		Status:      "pending",
		StreamLines: []string{},
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
		Index:       m.fileCount,
	}
	return m.fileCount
}

func (m *Manager) SetMessage(id int, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[fmt.Sprint(id)]; exists {
		info.Message = message
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) SetStatus(id int, status string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[fmt.Sprint(id)]; exists {
		info.Status = status
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) GetStatus(id int) string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if info, exists := m.outputs[fmt.Sprint(id)]; exists {
		return info.Status
	}
	return "unknown"
}

func (m *Manager) Complete(id int, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[fmt.Sprint(id)]; exists {
		info.StreamLines = []string{}
		if message == "" {
			info.Message = fmt.Sprintf("Completed %s", info.Path)
		} else {
			info.Message = message
		}
		info.Complete = true
		info.Status = "success"
		info.LastUpdated = time.Now()
	}
}

// ReportError marks the file failed, recording err in the end-of-run
// error summary.
func (m *Manager) ReportError(id int, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[fmt.Sprint(id)]; exists {
		info.Complete = true
		info.Status = "error"
		info.Error = err
		info.LastUpdated = time.Now()
		m.errors = append(m.errors, ErrorReport{
			Path:  info.Path,
			Error: err,
			Time:  time.Now(),
		})
	}
}

func (m *Manager) UpdateStreamOutput(id int, output []string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[fmt.Sprint(id)]; exists {
		info.StreamLines = append(info.StreamLines, output...)
		if len(info.StreamLines) > m.maxStreams {
			info.StreamLines = info.StreamLines[len(info.StreamLines)-m.maxStreams:]
		}
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) AddStreamLine(id int, line string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[fmt.Sprint(id)]; exists {
		wrappedLines := wrapText(line, 2+4)
		info.StreamLines = append(info.StreamLines, wrappedLines...)
		if len(info.StreamLines) > m.maxStreams {
			info.StreamLines = info.StreamLines[len(info.StreamLines)-m.maxStreams:]
		}
		info.LastUpdated = time.Now()
	}
}

// AddBundleProgress replaces a file's stream with a single progress
// bar over the bundle currently in flight: outof/final are the
// compressed bytes received so far against the bundle's total, and
// label names the bundle (its hex ID).
func (m *Manager) AddBundleProgress(id int, outof, final int64, label string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[fmt.Sprint(id)]; exists {
		progressBar := PrintProgressBar(max(0, outof), final, 30)
		elapsed := time.Since(info.StartTime).Round(time.Second).Seconds()
		display := fmt.Sprintf("%s%s %s %s", progressBar, debugStyle.Render(label), StyleSymbols["bullet"], debugStyle.Render(FormatSpeed(outof, elapsed)))
		info.StreamLines = []string{display}
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) ClearLines(n int) {
	if n <= 0 {
		return
	}
	fmt.Printf("\033[%dA\033[J", min(m.numLines, n))
	m.numLines = max(m.numLines-n, 0)
}

func (m *Manager) ClearFile(id int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[fmt.Sprint(id)]; exists {
		info.StreamLines = []string{}
		info.Message = ""
	}
}

func (m *Manager) ClearAll() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for id := range m.outputs {
		m.outputs[id].StreamLines = []string{}
	}
}

func (m *Manager) GetStatusIndicator(status string) string {
	switch status {
	case "success", "pass":
		return successStyle.Render(StyleSymbols["pass"])
	case "error", "fail":
		return errorStyle.Render(StyleSymbols["fail"])
	case "warning":
		return warningStyle.Render(StyleSymbols["warning"])
	case "pending":
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func (m *Manager) sortFiles() (active, pending, completed []*FileOutput) {
	var all []*FileOutput
	for _, info := range m.outputs {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Index < all[j].Index
	})
	for _, f := range all {
		if f.Complete {
			completed = append(completed, f)
		} else if f.Status == "pending" && f.Message == "" {
			pending = append(pending, f)
		} else {
			active = append(active, f)
		}
	}
	return active, pending, completed
}

func (m *Manager) updateDisplay() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	_, termHeight, _ := term.GetSize(int(os.Stdout.Fd()))
	if termHeight <= 0 {
		termHeight = 24
	}
	availableLines := termHeight - 3

	if m.numLines > 0 {
		fmt.Printf("\033[%dA\033[J", m.numLines)
	}

	lineCount := 0
	activeFiles, pendingFiles, completedFiles := m.sortFiles()

	totalNeeded := 0
	for _, f := range activeFiles {
		totalNeeded += 1 + len(f.StreamLines)
	}
	for _, f := range pendingFiles {
		totalNeeded += 1 + len(f.StreamLines)
	}
	totalNeeded += len(completedFiles)

	if totalNeeded > availableLines {
		maxCompleted := availableLines - (totalNeeded - len(completedFiles))
		if maxCompleted < 0 {
			maxCompleted = 0
		}
		if len(completedFiles) > maxCompleted {
			completedFiles = completedFiles[len(completedFiles)-maxCompleted:]
		}
	}

	for _, f := range activeFiles {
		if lineCount >= availableLines {
			break
		}
		info := f
		statusDisplay := m.GetStatusIndicator(info.Status)
		elapsed := time.Since(info.StartTime).Round(time.Second)
		if info.Complete {
			elapsed = info.LastUpdated.Sub(info.StartTime).Round(time.Second)
		}
		elapsedStr := elapsed.String()

		var styledMessage string
		switch info.Status {
		case "success":
			styledMessage = successStyle.Render(info.Message)
		case "error":
			styledMessage = errorStyle.Render(info.Message)
		case "warning":
			styledMessage = warningStyle.Render(info.Message)
		default:
			styledMessage = pendingStyle.Render(info.Message)
		}
		fmt.Printf("%s%s %s %s\n", strings.Repeat(" ", 2), statusDisplay, debugStyle.Render(elapsedStr), styledMessage)
		lineCount++

		if len(info.StreamLines) > 0 && lineCount < availableLines {
			indent := strings.Repeat(" ", 2+4)
			for _, line := range info.StreamLines {
				if lineCount >= availableLines {
					break
				}
				fmt.Printf("%s%s\n", indent, streamStyle.Render(line))
				lineCount++
			}
		}
	}

	for _, f := range pendingFiles {
		if lineCount >= availableLines {
			break
		}
		info := f
		statusDisplay := m.GetStatusIndicator(info.Status)
		fmt.Printf("%s%s %s\n", strings.Repeat(" ", 2), statusDisplay, pendingStyle.Render("Waiting..."))
		lineCount++
		if len(info.StreamLines) > 0 && lineCount < availableLines {
			indent := strings.Repeat(" ", 2+4)
			for _, line := range info.StreamLines {
				if lineCount >= availableLines {
					break
				}
				fmt.Printf("%s%s\n", indent, streamStyle.Render(line))
				lineCount++
			}
		}
	}

	if len(completedFiles) > 10 && lineCount < availableLines {
		PrintInfo(fmt.Sprintf("%s%d files completed with varying hidden status ...", strings.Repeat(" ", 2), len(completedFiles)-8))
		completedFiles = completedFiles[len(completedFiles)-8:]
		lineCount++
	}

	for _, f := range completedFiles {
		if lineCount >= availableLines {
			break
		}
		info := f
		statusDisplay := m.GetStatusIndicator(info.Status)
		totalTime := info.LastUpdated.Sub(info.StartTime).Round(time.Second)
		timeStr := totalTime.String()

		var styledMessage string
		if info.Status == "success" {
			styledMessage = successStyle.Render(info.Message)
		} else if info.Status == "error" {
			styledMessage = errorStyle.Render(info.Message)
		} else if info.Status == "warning" {
			styledMessage = warningStyle.Render(info.Message)
		} else {
			styledMessage = pendingStyle.Render(info.Message)
		}
		fmt.Printf("%s%s %s %s\n", strings.Repeat(" ", 2), statusDisplay, debugStyle.Render(timeStr), styledMessage)
		lineCount++

		if len(info.StreamLines) > 0 && lineCount < availableLines {
			indent := strings.Repeat(" ", 2+4)
			for _, line := range info.StreamLines {
				if lineCount >= availableLines {
					break
				}
				fmt.Printf("%s%s\n", indent, streamStyle.Render(line))
				lineCount++
			}
		}
	}
	m.numLines = lineCount
}

func (m *Manager) StartDisplay() {
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !m.isPaused {
					m.updateDisplay()
				}
			case pauseState := <-m.pauseCh:
				m.isPaused = pauseState
			case <-m.doneCh:
				m.ClearAll()
				m.updateDisplay()
				m.ShowSummary()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
}

func (m *Manager) displayErrors() {
	if len(m.errors) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(strings.Repeat(" ", 2) + errorStyle.Bold(true).Render("Errors:"))
	for i, err := range m.errors {
		fmt.Printf("%s%s %s %s\n",
			strings.Repeat(" ", 2+2),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", err.Time.Format("15:04:05"))),
			errorStyle.Render(fmt.Sprintf("File: %s", err.Path)))
		fmt.Printf("%s%s\n", strings.Repeat(" ", 2+4), errorStyle.Render(fmt.Sprintf("Error: %v", err.Error)))
	}
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	fmt.Println()
	var success, failures int
	for _, info := range m.outputs {
		if info.Status == "success" {
			success++
		} else if info.Status == "error" {
			failures++
		}
	}
	succeeded := fmt.Sprintf("Completed %d of %d", success, len(m.outputs))
	failed := fmt.Sprintf("Failed %d of %d", failures, len(m.outputs))
	fmt.Println(strings.Repeat(" ", 2) + success2Style.Render(succeeded))
	if failures > 0 {
		fmt.Println(strings.Repeat(" ", 2) + errorStyle.Render(failed))
	}
	m.displayErrors()
	fmt.Println()
}

// Snapshot returns a stable, registration-ID-ordered summary of every registered
// file's terminal state, for callers (the download CLI actions) that
// want a structured result after StopDisplay rather than parsing the
// rendered lines.
func (m *Manager) Snapshot() []FileLogger {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	out := make([]FileLogger, 0, len(m.outputs))
	for _, info := range m.outputs {
		out = append(out, FileLogger{
			ID:     info.ID,
			Path:   info.Path,
			Status: info.Status,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
