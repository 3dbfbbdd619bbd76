package main

import (
	"strings"

	"minichat/internal/protocol"
)

// stream turns raw server output into display lines.
//
// The server writes prompts without a trailing newline, so the unterminated
// tail is kept pending: it is either a prompt waiting for input or the first
// part of a line that has not fully arrived yet.
type stream struct {
	pending string
}

// feed appends chunk and returns every line it completed, prompt markers
// stripped.
func (s *stream) feed(chunk string) []string {
	s.pending += chunk
	var lines []string
	for {
		i := strings.IndexByte(s.pending, '\n')
		if i < 0 {
			return lines
		}
		lines = append(lines, stripPrompt(strings.TrimSuffix(s.pending[:i], "\r")))
		s.pending = s.pending[i+1:]
	}
}

// prompt is the text the server is currently waiting on.
func (s *stream) prompt() string {
	return stripPrompt(s.pending)
}

// answered drops a pending prompt once the user has replied to it.
func (s *stream) answered() {
	if rest := stripPrompt(s.pending); rest == "" || rest == protocol.NamePrompt {
		s.pending = ""
	}
}

func stripPrompt(s string) string {
	for strings.HasPrefix(s, protocol.PromptMarker) {
		s = s[len(protocol.PromptMarker):]
	}
	return s
}
