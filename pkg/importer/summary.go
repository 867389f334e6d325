package importer

import "sync"

// MaxErrorMessages bounds Summary.ErrorMessages
const MaxErrorMessages = 10

// Summary reports the outcome of a stage or copy run
type Summary struct {
	Copied        int      `json:"copied"`
	Skipped       int      `json:"skipped"`
	Errors        int      `json:"errors"`
	ErrorMessages []string `json:"errorMessages"`

	mu sync.Mutex
}

func newSummary() *Summary {
	return &Summary{ErrorMessages: []string{}}
}

func (s *Summary) addCopied() {
	s.mu.Lock()
	s.Copied++
	s.mu.Unlock()
}

func (s *Summary) addSkipped() {
	s.mu.Lock()
	s.Skipped++
	s.mu.Unlock()
}

// addError counts a failed row and keeps its message while fewer than
// MaxErrorMessages are kept
func (s *Summary) addError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors++
	if len(s.ErrorMessages) < MaxErrorMessages {
		s.ErrorMessages = append(s.ErrorMessages, msg)
	}
}

// RunResult is the outcome of staging then copying one sheet type
type RunResult struct {
	SheetType string   `json:"sheetType"`
	Stage     *Summary `json:"stage"`
	Copy      *Summary `json:"copy"`
}
