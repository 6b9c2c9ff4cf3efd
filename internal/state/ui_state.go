package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/braindrive/docchat/internal/logger"
)

const fileName = "ui-state.json"

// UIState holds preferences that carry across chat sessions. Scroll and
// streaming state are never persisted.
type UIState struct {
	LastModel   string          `json:"last_model,omitempty"`
	LastPersona string          `json:"last_persona,omitempty"`
	Transcript  TranscriptState `json:"transcript"`
	Recent      []RecentThread  `json:"recent,omitempty"`
}

// TranscriptState holds transcript display preferences.
type TranscriptState struct {
	// RenderMarkdown renders AI replies as markdown instead of plain text.
	RenderMarkdown bool `json:"render_markdown"`
}

// RecentThread remembers a conversation id so it can be resumed.
type RecentThread struct {
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// maxRecent caps the number of remembered conversations.
const maxRecent = 10

// DefaultUIState returns the default UI state.
func DefaultUIState() *UIState {
	return &UIState{
		Transcript: TranscriptState{RenderMarkdown: true},
	}
}

// LastConversation returns the most recently used conversation id, or "".
func (s *UIState) LastConversation() string {
	if len(s.Recent) == 0 {
		return ""
	}
	return s.Recent[0].ConversationID
}

// Remember moves a conversation to the front of the recent list.
func (s *UIState) Remember(conversationID, title string, at time.Time) {
	if conversationID == "" {
		return
	}
	kept := s.Recent[:0]
	for _, r := range s.Recent {
		if r.ConversationID == conversationID {
			if title == "" {
				title = r.Title
			}
			continue
		}
		kept = append(kept, r)
	}
	s.Recent = append([]RecentThread{{ConversationID: conversationID, Title: title, UpdatedAt: at}}, kept...)
	if len(s.Recent) > maxRecent {
		s.Recent = s.Recent[:maxRecent]
	}
}

// Load reads the UI state from <dataDir>/ui-state.json.
// Returns default state if the file doesn't exist or on error.
func Load(dataDir string) *UIState {
	path := filepath.Join(dataDir, fileName)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultUIState()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Failed to read UI state file: %v", err)
		return DefaultUIState()
	}

	state := DefaultUIState()
	if err := json.Unmarshal(data, state); err != nil {
		logger.Warn("Failed to parse UI state JSON: %v", err)
		return DefaultUIState()
	}

	return state
}

// Save writes the UI state to <dataDir>/ui-state.json.
// Creates the data directory if it doesn't exist.
func Save(dataDir string, state *UIState) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dataDir, fileName)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling UI state: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing UI state file: %w", err)
	}

	logger.Debug("UI state saved to %s", path)
	return nil
}
