package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/A-Elshahawy/enterprise-rag/internal/domain"
	"github.com/A-Elshahawy/enterprise-rag/internal/retriever"
	"github.com/A-Elshahawy/enterprise-rag/internal/service"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Search(query string, opts retriever.Options) ([]domain.SearchResult, error)
	Ask(question string, opts retriever.Options) (*domain.GeneratedAnswer, error)
	ListDocuments(maxScan int) ([]domain.DocumentInfo, error)
	GetPageText(documentID string, pageNumber int) (*service.PageText, error)
}

// Model is the Bubble Tea model for the query console.
type Model struct {
	service   RAGPort
	input     textinput.Model
	viewport  viewport.Model
	results   []domain.SearchResult
	answer    *domain.GeneratedAnswer
	page      *service.PageText
	pageSpan  [2]int
	header    string
	status    string
	cursor    int
	ready     bool
	lastQuery string
}

// New creates a new TUI model instance.
func New(service RAGPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type query and press Enter (Ctrl+A ask, Ctrl+P page view)"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	m := Model{service: service, input: ti, viewport: vp, status: "Ready. Type to search."}
	m.header = m.documentsLine()
	return m
}

func (m Model) documentsLine() string {
	docs, err := m.service.ListDocuments(10000)
	if err != nil || len(docs) == 0 {
		return "No documents indexed."
	}
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		name := d.Filename
		if name == "" {
			name = d.DocumentID
		}
		names = append(names, fmt.Sprintf("%s (%d pages, %d chunks)", name, d.Pages, d.Chunks))
	}
	return "Documents: " + strings.Join(names, ", ")
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + documents
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderContent())
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				res, err := m.service.Search(q, retriever.Options{TopK: 10})
				if err != nil {
					m.status = "Error: " + err.Error()
					m.results = nil
				} else {
					m.status = fmt.Sprintf("Results for %q", q)
					m.results = res
					m.answer = nil
					m.page = nil
					m.cursor = 0
					m.lastQuery = q
				}
				m.viewport.SetContent(m.renderContent())
				return m, nil
			}
		case "ctrl+a":
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				ans, err := m.service.Ask(q, retriever.Options{TopK: 5})
				if err != nil {
					m.status = "Error: " + err.Error()
				} else {
					m.status = fmt.Sprintf("Answer for %q (model %s)", q, ans.Model)
					m.answer = ans
					m.results = nil
					m.page = nil
					m.lastQuery = q
				}
				m.viewport.SetContent(m.renderContent())
				return m, nil
			}
		case "ctrl+p":
			if m.page != nil {
				m.page = nil
				m.status = "Back to results."
				m.viewport.SetContent(m.renderContent())
				return m, nil
			}
			if len(m.results) > 0 {
				r := m.results[m.cursor]
				page, err := m.service.GetPageText(r.DocumentID, r.PageNumber)
				if err != nil {
					m.status = "Error: " + err.Error()
				} else {
					m.page = page
					m.pageSpan = [2]int{r.CharStart, r.CharEnd}
					m.status = fmt.Sprintf("Page %d of %s (Ctrl+P to go back)", page.PageNumber, r.DocumentID)
				}
				m.viewport.SetContent(m.renderContent())
				return m, nil
			}
		case "down":
			if len(m.results) > 0 {
				m.page = nil
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderContent())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.page = nil
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderContent())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Enterprise RAG")
	docs := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.header)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + docs + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderContent() string {
	if m.answer != nil {
		return m.renderAnswer()
	}
	if m.page != nil {
		return m.renderPage()
	}
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	title := fmt.Sprintf("Result %d/%d  page=%d  score=%.3f  doc=%s",
		m.cursor+1, len(m.results), r.PageNumber, r.Score, r.DocumentID)
	body := highlightBestSentence(r.Text, m.lastQuery)
	return title + "\n\n" + body
}

// renderPage shows the reconstructed page with the selected chunk's span
// highlighted. The span indexes the reconstructed text directly because
// reconstruction recovers the normalized page text the offsets were recorded
// against.
func (m Model) renderPage() string {
	title := fmt.Sprintf("Page %d of %s  (%d chunks)",
		m.page.PageNumber, m.page.DocumentID, m.page.ChunkCount)
	text := m.page.Text
	start, end := m.pageSpan[0], m.pageSpan[1]
	if start >= 0 && start < end && end <= len(text) {
		text = text[:start] + highlightStyle.Render(text[start:end]) + text[end:]
	}
	return title + "\n\n" + text
}

func (m Model) renderAnswer() string {
	var b strings.Builder
	b.WriteString(m.answer.Answer)
	if len(m.answer.Sources) > 0 {
		b.WriteString("\n\nSources:\n")
		for _, src := range m.answer.Sources {
			fmt.Fprintf(&b, "  [%d] doc=%s page=%d score=%.3f\n",
				src.SourceID, src.DocumentID, src.PageNumber, src.Score)
		}
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
