package main

import (
	"strings"

	"github.com/sloplabs/slopos/internal/userlib"
)

// completionResult is what a completion request hands back to the line
// editor: either a single unambiguous insertion, or (when more than one
// candidate matches) a list of matches to display with no insertion.
type completionResult struct {
	insertion   string
	showMatches bool
	matches     []string
}

// builtinNames mirrors completion.rs's BUILTINS table: every first-word
// command the prompt understands, whether it's dispatched through the cobra
// tree in builtins.go (see cobraBuiltins) or intercepted directly in main.go
// (cd, exit).
var builtinNames = []string{"ls", "cat", "ps", "kill", "cd", "exit"}

// tryComplete mirrors completion.rs's try_complete: it finds the word under
// the cursor, then completes it either against builtinNames (first token of
// the line) or against a directory listing (every other token).
func tryComplete(input string, cursorPos int, cwd string) completionResult {
	effectivePos := cursorPos
	if effectivePos > len(input) {
		effectivePos = len(input)
	}

	wordStart := effectivePos
	for wordStart > 0 && !isSpace(input[wordStart-1]) {
		wordStart--
	}
	prefix := input[wordStart:effectivePos]
	if prefix == "" {
		return completionResult{}
	}

	isFirstToken := strings.TrimFunc(input[:wordStart], func(r rune) bool { return isSpace(byte(r)) }) == ""
	if isFirstToken {
		return completeCommand(prefix)
	}

	dirsOnly := commandWantsDirsOnly(input[:wordStart])
	return completePath(prefix, cwd, dirsOnly)
}

func commandWantsDirsOnly(beforeWord string) bool {
	cmd := strings.TrimLeft(beforeWord, " \t\n\r")
	if i := strings.IndexFunc(cmd, func(r rune) bool { return isSpace(byte(r)) }); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd == "cd" || cmd == "mkdir"
}

func completeCommand(prefix string) completionResult {
	var matches []string
	for _, name := range builtinNames {
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}
	return matchesToResult(matches, prefix, "")
}

// completePath lists cwd (or the directory named in prefix, if prefix
// contains a slash) via userlib.FsList and prefix-matches the final path
// component, mirroring complete_path's last_slash/file_prefix split.
func completePath(prefix, cwd string, dirsOnly bool) completionResult {
	dir := cwd
	filePrefix := prefix
	if slash := strings.LastIndexByte(prefix, '/'); slash >= 0 {
		dirPart := prefix[:slash+1]
		if strings.HasPrefix(dirPart, "/") {
			dir = dirPart
		} else {
			dir = joinPath(cwd, dirPart)
		}
		filePrefix = prefix[slash+1:]
	}

	buf := make([]byte, 4096)
	n, errno := userlib.FsList(dir, buf)
	if errno != 0 {
		return completionResult{}
	}

	var matches []string
	for _, name := range strings.Split(string(buf[:n]), "\x00") {
		if name == "" || name == "." || name == ".." {
			continue
		}
		if !strings.HasPrefix(name, filePrefix) {
			continue
		}
		if dirsOnly {
			st, errno := userlib.FsStat(joinPath(dir, name))
			if errno != 0 || st.IsDir == 0 {
				continue
			}
		}
		matches = append(matches, name)
	}

	suffix := " "
	if dirsOnly {
		suffix = "/"
	}
	return matchesToResult(matches, filePrefix, suffix)
}

// matchesToResult implements the shared "one match inserts the remainder, N
// matches insert their common prefix and list themselves" behavior both
// complete_command and complete_path follow.
func matchesToResult(matches []string, prefix, oneMatchSuffix string) completionResult {
	if len(matches) == 0 {
		return completionResult{}
	}
	if len(matches) == 1 {
		suffix := oneMatchSuffix
		if suffix == "" {
			suffix = " "
		}
		return completionResult{insertion: matches[0][len(prefix):] + suffix}
	}

	common := matches[0]
	for _, m := range matches[1:] {
		common = commonPrefix(common, m)
	}
	var insertion string
	if len(common) > len(prefix) {
		insertion = common[len(prefix):]
	}
	return completionResult{insertion: insertion, showMatches: true, matches: matches}
}

func commonPrefix(a, b string) string {
	i := 0
	for i < len(a) && i < len(b) && a[i] == b[i] {
		i++
	}
	return a[:i]
}

func joinPath(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}
