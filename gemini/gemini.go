// Package gemini implements [trickle.Provider] for the Google Gemini API
// using the google.golang.org/genai SDK. Text parts become text deltas and
// thought parts become thinking deltas.
package gemini

const (
	defaultModel     = "gemini-2.5-flash"
	defaultMaxTokens = 65536
)
