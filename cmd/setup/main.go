// setup is a guided first-run wizard for the bot. It creates the local data
// directory, collects environment variables into .env, and seeds sample
// catalog fixtures so the bot can answer song queries before its first
// taiko.wiki sync. Run via `go run ./cmd/setup`.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type step int

const (
	stepDataDir step = iota
	stepEnv
	stepFixtures
	stepComplete
)

var stepNames = []string{
	"Data Directory",
	"Environment (.env)",
	"Catalog Fixtures",
	"Complete",
}

type envField int

const (
	fieldLLMProvider envField = iota
	fieldLLMKey
	fieldLangBotURL
	fieldLangBotKey
	fieldAdminKey
	fieldDone
)

var envFieldNames = []string{
	"LLM Provider",
	"LLM API Key",
	"LangBot API URL (optional)",
	"LangBot API Key (optional)",
	"Admin API Key (optional)",
}

func optionalField(f envField) bool {
	switch f {
	case fieldLangBotURL, fieldLangBotKey, fieldAdminKey:
		return true
	}
	return false
}

type model struct {
	step         step
	envField     envField
	textInput    textinput.Model
	envValues    map[envField]string
	err          error
	width        int
	height       int
	skippedSteps map[step]bool
}

type stepDoneMsg struct {
	skipped bool
}
type stepErrorMsg struct{ err error }

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	activeStepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Underline(true)

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)
)

func initialModel() model {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 60

	return model{
		step:         stepDataDir,
		envField:     fieldLLMProvider,
		textInput:    ti,
		envValues:    make(map[envField]string),
		skippedSteps: make(map[step]bool),
	}
}

func (m model) Init() tea.Cmd {
	return m.runCurrentStep()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "enter":
			if m.step == stepEnv && m.envField < fieldDone {
				return m.handleEnvInput()
			}
			if m.step == stepComplete {
				return m, tea.Quit
			}
		case "tab":
			if m.step == stepEnv && m.envField < fieldDone {
				return m.skipEnvField()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case stepDoneMsg:
		m.skippedSteps[m.step] = msg.skipped
		m.step++
		if m.step == stepEnv && envFileExists() {
			m.skippedSteps[stepEnv] = true
			m.step++
		}
		if m.step <= stepComplete {
			return m, m.runCurrentStep()
		}

	case stepErrorMsg:
		m.err = msg.err
		return m, nil
	}

	if m.step == stepEnv && m.envField < fieldDone {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Mika - Project Setup"))
	s.WriteString("\n\n")

	s.WriteString(m.renderProgress())
	s.WriteString("\n\n")

	s.WriteString(m.renderStepContent())
	s.WriteString("\n\n")

	s.WriteString(subtleStyle.Render("enter=continue • esc/ctrl+c=quit"))
	if m.step == stepEnv && optionalField(m.envField) {
		s.WriteString(subtleStyle.Render(" • tab=skip"))
	}

	return boxStyle.Render(s.String())
}

func (m model) renderProgress() string {
	var dots []string
	for i := 0; i <= int(stepComplete); i++ {
		if i < int(m.step) {
			dots = append(dots, completedStyle.Render("●"))
		} else if i == int(m.step) {
			dots = append(dots, activeStepStyle.Render("●"))
		} else {
			dots = append(dots, stepStyle.Render("○"))
		}
	}
	progress := strings.Join(dots, " ")

	stepLabel := ""
	if m.step <= stepComplete {
		stepLabel = fmt.Sprintf("Step %d of %d: %s", m.step+1, len(stepNames), stepNames[m.step])
	}

	return fmt.Sprintf("[%s]  %s", progress, activeStepStyle.Render(stepLabel))
}

func (m model) renderStepContent() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	switch m.step {
	case stepDataDir:
		return "Creating data directory..."
	case stepEnv:
		return m.renderEnvStep()
	case stepFixtures:
		return "Seeding sample catalog fixtures..."
	case stepComplete:
		return m.renderComplete()
	}
	return ""
}

func (m model) renderEnvStep() string {
	if m.envField >= fieldDone {
		return completedStyle.Render("Environment configured!")
	}

	var s strings.Builder
	s.WriteString("Configure your environment:\n\n")

	fieldName := envFieldNames[m.envField]
	s.WriteString(fmt.Sprintf("%s:\n", activeStepStyle.Render(fieldName)))

	switch m.envField {
	case fieldLLMProvider:
		s.WriteString("  Choose the provider Mika replies with:\n")
		s.WriteString("  • openrouter - OpenAI and other models through one gateway\n")
		s.WriteString("  • anthropic - Claude\n")
		s.WriteString("  • google - Gemini\n")
		s.WriteString("\n")
		s.WriteString(subtleStyle.Render("  Enter 'openrouter', 'anthropic', or 'google':\n"))
	case fieldLLMKey:
		switch m.envValues[fieldLLMProvider] {
		case "anthropic":
			s.WriteString(fmt.Sprintf("  1. Go to %s\n", linkStyle.Render("https://console.anthropic.com/")))
			s.WriteString("  2. Sign up/in → Go to API Keys → Create Key\n")
		case "google":
			s.WriteString(fmt.Sprintf("  1. Go to %s\n", linkStyle.Render("https://aistudio.google.com/apikey")))
			s.WriteString("  2. Click \"Create API Key\"\n")
		default:
			s.WriteString(fmt.Sprintf("  1. Go to %s\n", linkStyle.Render("https://openrouter.ai/keys")))
			s.WriteString("  2. Sign up/in → Create Key\n")
		}
		s.WriteString("\n")
		s.WriteString(subtleStyle.Render("  Paste your API key:\n"))
	case fieldLangBotURL:
		s.WriteString("  The LangBot gateway that forwards QQ messages to this bot.\n")
		s.WriteString("  Used for proactive messages back to chats.\n")
		s.WriteString("\n")
		s.WriteString(subtleStyle.Render("  Enter the URL (or tab to use http://localhost:5300):\n"))
	case fieldLangBotKey:
		s.WriteString("  Only needed when the gateway requires authentication.\n")
		s.WriteString("\n")
		s.WriteString(subtleStyle.Render("  Paste the key (or tab to skip):\n"))
	case fieldAdminKey:
		s.WriteString("  Protects the admin endpoints (rate limit resets) via the\n")
		s.WriteString("  X-API-Key header. Leaving it unset disables them.\n")
		s.WriteString("\n")
		s.WriteString(subtleStyle.Render("  Enter a key (or tab to skip):\n"))
	}

	s.WriteString("\n")
	s.WriteString(m.textInput.View())

	return s.String()
}

func (m model) renderComplete() string {
	var s strings.Builder
	s.WriteString(completedStyle.Render("✓ Setup complete!"))
	s.WriteString("\n\n")

	skipped := 0
	for _, v := range m.skippedSteps {
		if v {
			skipped++
		}
	}

	if skipped > 0 {
		s.WriteString(subtleStyle.Render(fmt.Sprintf("(%d steps were already configured)\n\n", skipped)))
	}

	s.WriteString("Next steps:\n")
	s.WriteString("  1. Run " + activeStepStyle.Render("go run ./cmd/bot") + " to start the webhook server\n")
	s.WriteString("  2. Point the LangBot webhook at http://localhost:8000/webhook/langbot\n")
	s.WriteString("  3. Mention Mika in a group chat to say hi\n")

	return s.String()
}

func (m model) handleEnvInput() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.textInput.Value())

	if optionalField(m.envField) {
		m.envValues[m.envField] = value
	} else if value == "" {
		return m, nil
	} else {
		if m.envField == fieldLLMProvider && value != "openrouter" && value != "anthropic" && value != "google" {
			return m, nil
		}
		m.envValues[m.envField] = value
	}

	m.textInput.SetValue("")
	m.envField++

	if m.envField == fieldDone {
		return m, m.writeEnvFile()
	}

	return m, nil
}

func (m model) skipEnvField() (tea.Model, tea.Cmd) {
	if optionalField(m.envField) {
		m.envValues[m.envField] = ""
		m.textInput.SetValue("")
		m.envField++

		if m.envField == fieldDone {
			return m, m.writeEnvFile()
		}
	}
	return m, nil
}

func (m model) writeEnvFile() tea.Cmd {
	return func() tea.Msg {
		provider := m.envValues[fieldLLMProvider]
		model := "openai/gpt-4o"
		switch provider {
		case "anthropic":
			model = "claude-sonnet-4-5-20250929"
		case "google":
			model = "gemini-2.0-flash"
		}

		var openrouterKey, anthropicKey, googleKey string
		switch provider {
		case "anthropic":
			anthropicKey = m.envValues[fieldLLMKey]
		case "google":
			googleKey = m.envValues[fieldLLMKey]
		default:
			openrouterKey = m.envValues[fieldLLMKey]
		}

		langbotURL := m.envValues[fieldLangBotURL]
		if langbotURL == "" {
			langbotURL = "http://localhost:5300"
		}

		content := fmt.Sprintf(`# Generated by setup tool

# Database Configuration
DATABASE_URL=sqlite://data/mika.db

# LLM API Configuration
LLM_PROVIDER=%s
LLM_MODEL=%s
OPENROUTER_API_KEY=%s
ANTHROPIC_API_KEY=%s
GOOGLE_API_KEY=%s

# LangBot Gateway
LANGBOT_API_URL=%s
LANGBOT_API_KEY=%s

# Admin API
ADMIN_API_KEY=%s
`,
			provider,
			model,
			openrouterKey,
			anthropicKey,
			googleKey,
			langbotURL,
			m.envValues[fieldLangBotKey],
			m.envValues[fieldAdminKey],
		)

		if err := os.WriteFile(".env", []byte(content), 0600); err != nil {
			return stepErrorMsg{err}
		}
		return stepDoneMsg{skipped: false}
	}
}

func (m model) runCurrentStep() tea.Cmd {
	switch m.step {
	case stepDataDir:
		return createDataDir()
	case stepEnv:
		return nil
	case stepFixtures:
		return seedFixtures()
	case stepComplete:
		return nil
	}
	return nil
}

func envFileExists() bool {
	_, err := os.Stat(".env")
	return err == nil
}

func fixturesExist() bool {
	_, dbErr := os.Stat(filepath.Join("data", "database.json"))
	_, ovErr := os.Stat(filepath.Join("data", "song_difficulty_database.json"))
	return dbErr == nil && ovErr == nil
}

func createDataDir() tea.Cmd {
	return func() tea.Msg {
		if _, err := os.Stat("data"); err == nil {
			return stepDoneMsg{skipped: true}
		}
		if err := os.MkdirAll("data", 0o755); err != nil {
			return stepErrorMsg{fmt.Errorf("failed to create data directory: %w", err)}
		}
		return stepDoneMsg{skipped: false}
	}
}

func seedFixtures() tea.Cmd {
	return func() tea.Msg {
		if fixturesExist() {
			return stepDoneMsg{skipped: true}
		}

		cmd := exec.Command("go", "run", "scripts/seed.go")
		if err := cmd.Run(); err != nil {
			return stepErrorMsg{fmt.Errorf("failed to seed catalog fixtures: %w", err)}
		}
		return stepDoneMsg{skipped: false}
	}
}

func main() {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
