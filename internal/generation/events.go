package generation

// Event is one of Loading, Progress, Complete, Aborted or Errored.
type Event interface {
	runID() string
}

// Loading reports setup progress before the first token.
type Loading struct {
	RunID   string
	Message string
}

// Progress is emitted once per generated token.
type Progress struct {
	RunID string
	Token string
	// Output is the generated text so far, without the prompt.
	Output string
	Prompt string
	// Index counts tokens emitted so far, this one included.
	Index        int
	ElapsedMs    float64
	TokensPerSec float64
}

// Complete ends a run that produced every requested token.
type Complete struct {
	RunID  string
	Output string // prompt + generated text
	Tokens int
}

// Aborted ends a cancelled run.
type Aborted struct {
	RunID  string
	Output string // prompt + text generated before cancellation
	Tokens int
}

// Errored ends a failed run.
type Errored struct {
	RunID string
	Err   error
}

func (e Loading) runID() string  { return e.RunID }
func (e Progress) runID() string { return e.RunID }
func (e Complete) runID() string { return e.RunID }
func (e Aborted) runID() string  { return e.RunID }
func (e Errored) runID() string  { return e.RunID }

// RunIDOf returns the run identifier carried by ev.
func RunIDOf(ev Event) string { return ev.runID() }

// Terminal reports whether ev ends its run.
func Terminal(ev Event) bool {
	switch ev.(type) {
	case Complete, Aborted, Errored:
		return true
	}
	return false
}
