// envsetup provides a lightweight .env configuration wizard.
// It runs automatically on first bot startup when no .env file exists,
// collecting LLM and LangBot credentials.
package envsetup

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type step int

const (
	stepWelcome step = iota
	stepLLMProvider
	stepLLMKey
	stepLangBotKey
	stepAdminKey
	stepConfirm
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Underline(true)

	inputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

type model struct {
	step          step
	llmProvider   string
	llmAPIKey     string
	langbotAPIKey string
	adminAPIKey   string
	input         string
	err           error
	width         int
	height        int
}

func New() model {
	return model{
		step: stepWelcome,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit

		case tea.KeyEnter:
			return m.handleEnter()

		case tea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
			return m, nil

		case tea.KeyRunes:
			m.input += string(msg.Runes)
			return m, nil

		case tea.KeySpace:
			m.input += " "
			return m, nil
		}
	}

	return m, nil
}

func (m model) handleEnter() (tea.Model, tea.Cmd) {
	m.err = nil

	switch m.step {
	case stepWelcome:
		m.step = stepLLMProvider
		m.input = ""

	case stepLLMProvider:
		choice := strings.TrimSpace(strings.ToLower(m.input))
		switch choice {
		case "1", "openrouter":
			m.llmProvider = "openrouter"
		case "2", "anthropic":
			m.llmProvider = "anthropic"
		case "3", "google":
			m.llmProvider = "google"
		default:
			m.err = fmt.Errorf("Please enter 1 for OpenRouter, 2 for Anthropic, or 3 for Google")
			return m, nil
		}
		m.step = stepLLMKey
		m.input = ""

	case stepLLMKey:
		key := strings.TrimSpace(m.input)
		if key == "" {
			m.err = fmt.Errorf("API key is required")
			return m, nil
		}
		m.llmAPIKey = key
		m.step = stepLangBotKey
		m.input = ""

	case stepLangBotKey:
		m.langbotAPIKey = strings.TrimSpace(m.input)
		m.step = stepAdminKey
		m.input = ""

	case stepAdminKey:
		m.adminAPIKey = strings.TrimSpace(m.input)
		m.step = stepConfirm
		m.input = ""

	case stepConfirm:
		choice := strings.TrimSpace(strings.ToLower(m.input))
		if choice == "y" || choice == "yes" || choice == "" {
			if err := m.writeEnvFile(); err != nil {
				m.err = err
				return m, nil
			}
			return m, tea.Quit
		} else if choice == "n" || choice == "no" {
			m.step = stepWelcome
			m.input = ""
			m.llmProvider = ""
			m.llmAPIKey = ""
			m.langbotAPIKey = ""
			m.adminAPIKey = ""
		}
	}

	return m, nil
}

func (m model) writeEnvFile() error {
	var llmModel string
	var llmKeyName string
	switch m.llmProvider {
	case "openrouter":
		llmModel = "openai/gpt-4o"
		llmKeyName = "OPENROUTER_API_KEY"
	case "anthropic":
		llmModel = "claude-sonnet-4-5-20250929"
		llmKeyName = "ANTHROPIC_API_KEY"
	default:
		llmModel = "gemini-2.0-flash"
		llmKeyName = "GOOGLE_API_KEY"
	}

	var content strings.Builder
	fmt.Fprintf(&content, `DATABASE_URL=sqlite://data/mika.db
LLM_PROVIDER=%s
LLM_MODEL=%s
%s=%s
LANGBOT_API_URL=http://localhost:5300
`, m.llmProvider, llmModel, llmKeyName, m.llmAPIKey)
	if m.langbotAPIKey != "" {
		fmt.Fprintf(&content, "LANGBOT_API_KEY=%s\n", m.langbotAPIKey)
	}
	if m.adminAPIKey != "" {
		fmt.Fprintf(&content, "ADMIN_API_KEY=%s\n", m.adminAPIKey)
	}

	return os.WriteFile(".env", []byte(content.String()), 0600)
}

func (m model) View() string {
	var s strings.Builder

	switch m.step {
	case stepWelcome:
		s.WriteString(titleStyle.Render("Mika - Env Setup"))
		s.WriteString("\n\n")
		s.WriteString("This wizard will help you configure the bot.\n")
		s.WriteString("You'll need:\n\n")
		s.WriteString("  - An LLM API key (OpenRouter, Anthropic, or Google)\n")
		s.WriteString("  - Optionally, a LangBot gateway API key\n")
		s.WriteString("  - Optionally, an admin API key for management endpoints\n")
		s.WriteString("\n")
		s.WriteString(dimStyle.Render("Press Enter to continue, Ctrl+C to exit"))

	case stepLLMProvider:
		s.WriteString(titleStyle.Render("Step 1: Choose LLM Provider"))
		s.WriteString("\n\n")
		s.WriteString("Which LLM provider would you like to use?\n\n")
		s.WriteString("  1. OpenRouter (OpenAI and others)\n")
		s.WriteString("  2. Anthropic (Claude)\n")
		s.WriteString("  3. Google (Gemini)\n")
		s.WriteString("\n")
		s.WriteString(labelStyle.Render("Enter 1, 2, or 3:"))
		s.WriteString("\n")
		s.WriteString("> " + inputStyle.Render(m.input))
		if m.err != nil {
			s.WriteString("\n" + errorStyle.Render(m.err.Error()))
		}

	case stepLLMKey:
		s.WriteString(titleStyle.Render("Step 2: LLM API Key"))
		s.WriteString("\n\n")
		switch m.llmProvider {
		case "openrouter":
			s.WriteString("To get your OpenRouter API key:\n\n")
			s.WriteString("  1. Go to " + linkStyle.Render("https://openrouter.ai/keys") + "\n")
			s.WriteString("  2. Sign up or log in\n")
			s.WriteString("  3. Create a new API key\n")
		case "anthropic":
			s.WriteString("To get your Anthropic API key:\n\n")
			s.WriteString("  1. Go to " + linkStyle.Render("https://console.anthropic.com") + "\n")
			s.WriteString("  2. Sign up or log in\n")
			s.WriteString("  3. Go to API Keys and create a new key\n")
		default:
			s.WriteString("To get your Google AI API key:\n\n")
			s.WriteString("  1. Go to " + linkStyle.Render("https://aistudio.google.com/apikey") + "\n")
			s.WriteString("  2. Sign in with your Google account\n")
			s.WriteString("  3. Create an API key\n")
		}
		s.WriteString("\n")
		s.WriteString(labelStyle.Render("Paste your API key here:"))
		s.WriteString("\n")
		s.WriteString("> " + inputStyle.Render(maskToken(m.input)))
		if m.err != nil {
			s.WriteString("\n" + errorStyle.Render(m.err.Error()))
		}

	case stepLangBotKey:
		s.WriteString(titleStyle.Render("Step 3: LangBot API Key (optional)"))
		s.WriteString("\n\n")
		s.WriteString("If your LangBot gateway requires authentication for\n")
		s.WriteString("proactive messages, paste its API key here.\n")
		s.WriteString("\n")
		s.WriteString(labelStyle.Render("Paste the key, or press Enter to skip:"))
		s.WriteString("\n")
		s.WriteString("> " + inputStyle.Render(maskToken(m.input)))
		if m.err != nil {
			s.WriteString("\n" + errorStyle.Render(m.err.Error()))
		}

	case stepAdminKey:
		s.WriteString(titleStyle.Render("Step 4: Admin API Key (optional)"))
		s.WriteString("\n\n")
		s.WriteString("The admin endpoints (rate limit resets) require this key\n")
		s.WriteString("in the X-API-Key header. Leaving it unset disables them.\n")
		s.WriteString("\n")
		s.WriteString(labelStyle.Render("Enter a key, or press Enter to skip:"))
		s.WriteString("\n")
		s.WriteString("> " + inputStyle.Render(maskToken(m.input)))
		if m.err != nil {
			s.WriteString("\n" + errorStyle.Render(m.err.Error()))
		}

	case stepConfirm:
		langbotKey := "(not set)"
		if m.langbotAPIKey != "" {
			langbotKey = maskToken(m.langbotAPIKey)
		}
		adminKey := "(not set)"
		if m.adminAPIKey != "" {
			adminKey = maskToken(m.adminAPIKey)
		}
		s.WriteString(titleStyle.Render("Configuration Complete"))
		s.WriteString("\n\n")
		s.WriteString("Your configuration:\n\n")
		s.WriteString("  Database:     " + successStyle.Render("sqlite://data/mika.db") + "\n")
		s.WriteString("  LLM Provider: " + successStyle.Render(m.llmProvider) + "\n")
		s.WriteString("  LLM API Key:  " + successStyle.Render(maskToken(m.llmAPIKey)) + "\n")
		s.WriteString("  LangBot URL:  " + successStyle.Render("http://localhost:5300") + "\n")
		s.WriteString("  LangBot Key:  " + successStyle.Render(langbotKey) + "\n")
		s.WriteString("  Admin Key:    " + successStyle.Render(adminKey) + "\n")
		s.WriteString("\n")
		s.WriteString(labelStyle.Render("Save this configuration? [Y/n]:"))
		s.WriteString("\n")
		s.WriteString("> " + inputStyle.Render(m.input))
		if m.err != nil {
			s.WriteString("\n" + errorStyle.Render(m.err.Error()))
		}
	}

	s.WriteString("\n")
	return s.String()
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

// Run starts the setup wizard and returns true if setup was completed successfully
func Run() (bool, error) {
	p := tea.NewProgram(New())
	finalModel, err := p.Run()
	if err != nil {
		return false, err
	}

	m := finalModel.(model)
	return m.step == stepConfirm && m.err == nil, nil
}

// NeedsSetup checks if .env file exists
func NeedsSetup() bool {
	_, err := os.Stat(".env")
	return os.IsNotExist(err)
}

// Interactive reports whether stdin is attached to a terminal.
func Interactive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
