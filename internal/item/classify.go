package item

import (
	"regexp"
	"strings"
)

// commandVerbs are first words that mark a line as a shell command.
var commandVerbs = map[string]bool{
	"git": true, "npm": true, "npx": true, "yarn": true, "pnpm": true,
	"docker": true, "kubectl": true, "helm": true, "terraform": true,
	"cd": true, "ls": true, "sudo": true, "python": true, "python3": true,
	"pip": true, "pip3": true, "go": true, "cargo": true, "make": true,
	"curl": true, "wget": true, "ssh": true, "scp": true, "brew": true,
	"apt": true, "apt-get": true, "cat": true, "grep": true, "find": true,
	"rm": true, "mv": true, "cp": true, "mkdir": true, "chmod": true,
	"chown": true, "echo": true, "export": true, "node": true, "tar": true,
	"systemctl": true, "journalctl": true,
}

var (
	promptRegex = regexp.MustCompile(`^(\$ |> |PS> |PS [A-Za-z]:\\[^>]*> |[\w.-]+@[\w.-]+:[^$#\s]*[$#] )`)
	urlRegex    = regexp.MustCompile(`^(?i)(https?://|ftp://|file://|ssh://|www\.)\S+$`)
	pathRegex   = regexp.MustCompile(`^(~/|\./|\.\./|/|[A-Za-z]:\\)\S*$`)
)

const (
	codeScanLines  = 10
	codeMinPunct   = 3
	codeMinDensity = 0.08
)

// Classify returns the first matching type: command, url, code, then text.
func Classify(text string) Type {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return TypeText
	}
	switch {
	case isCommand(trimmed):
		return TypeCommand
	case isURL(trimmed):
		return TypeURL
	case isCode(text):
		return TypeCode
	}
	return TypeText
}

func isCommand(trimmed string) bool {
	firstLine, _, _ := strings.Cut(trimmed, "\n")
	if promptRegex.MatchString(firstLine) {
		return true
	}
	word, _, _ := strings.Cut(firstLine, " ")
	return commandVerbs[strings.TrimRight(word, "\t\r")]
}

func isURL(trimmed string) bool {
	if strings.ContainsAny(trimmed, " \t\n") {
		return false
	}
	return urlRegex.MatchString(trimmed) || pathRegex.MatchString(trimmed)
}

func isCode(text string) bool {
	lines := strings.Split(text, "\n")
	if len(lines) > codeScanLines {
		lines = lines[:codeScanLines]
	}

	punct, strong, nonSpace := 0, 0, 0
	for _, line := range lines {
		for _, r := range line {
			switch r {
			case ' ', '\t', '\r':
				continue
			case '{', '}', ';':
				strong++
				punct++
			case '[', ']', '(', ')', '=', '<', '>':
				punct++
			}
			nonSpace++
		}
	}
	if nonSpace == 0 {
		return false
	}
	if strong > 0 && punct >= codeMinPunct && float64(punct)/float64(nonSpace) >= codeMinDensity {
		return true
	}

	nonEmpty := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			nonEmpty = append(nonEmpty, line)
		}
	}
	if len(nonEmpty) < 2 || punct == 0 {
		return false
	}
	indented := 0
	for _, line := range nonEmpty[1:] {
		if strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "    ") {
			indented++
		}
	}
	return indented*2 >= len(nonEmpty)-1
}
