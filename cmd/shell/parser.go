// Command shell is SlopOS's userland line shell: a REPL over
// internal/userlib's syscall client, with quoting/pipe/redirection parsing
// and prefix completion translated from the teacher spec's Rust original
// (userland/src/apps/shell/{parser,completion}.rs) into the idiom the rest
// of this repository already uses — plain Go structs and slices instead of
// the original's fixed-capacity buffers, since this side of the syscall
// boundary has a normal Go heap.
package main

import "strings"

// tokenKind distinguishes an ordinary word from the shell operators the
// tokenizer recognizes.
type tokenKind int

const (
	tokWord tokenKind = iota
	tokPipe
	tokRedirIn
	tokRedirOut
	tokRedirAppend
)

type token struct {
	kind tokenKind
	text string
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

// tokenize splits line into words and operators, honoring single/double
// quoting and backslash escapes the same way parser.rs's shell_parse_line
// does: quotes suppress operator/space recognition, backslash escapes the
// next byte unconditionally outside single quotes.
func tokenize(line string) []token {
	var toks []token
	i, n := 0, len(line)
	for i < n {
		for i < n && isSpace(line[i]) {
			i++
		}
		if i >= n {
			break
		}
		switch line[i] {
		case '|':
			toks = append(toks, token{tokPipe, "|"})
			i++
			continue
		case '<':
			toks = append(toks, token{tokRedirIn, "<"})
			i++
			continue
		case '>':
			i++
			if i < n && line[i] == '>' {
				toks = append(toks, token{tokRedirAppend, ">>"})
				i++
			} else {
				toks = append(toks, token{tokRedirOut, ">"})
			}
			continue
		}

		var b strings.Builder
		inSingle, inDouble := false, false
		for i < n {
			c := line[i]
			if c == '\'' && !inDouble {
				inSingle = !inSingle
				i++
				continue
			}
			if c == '"' && !inSingle {
				inDouble = !inDouble
				i++
				continue
			}
			if inSingle || inDouble {
				b.WriteByte(c)
				i++
				continue
			}
			if isSpace(c) || c == '|' || c == '<' || c == '>' {
				break
			}
			if c == '\\' && i+1 < n {
				i++
				b.WriteByte(line[i])
				i++
				continue
			}
			b.WriteByte(c)
			i++
		}
		toks = append(toks, token{tokWord, b.String()})
	}
	return toks
}

// redirect describes one `<`/`>`/`>>` clause attached to a pipeline stage.
type redirect struct {
	kind tokenKind // tokRedirIn, tokRedirOut, or tokRedirAppend
	path string
}

// stage is one command in a pipeline: argv plus any redirections that
// apply to it.
type stage struct {
	argv      []string
	redirects []redirect
}

// pipeline is the full parse of one input line: one or more stages joined
// by `|`.
type pipeline struct {
	stages []stage
}

// parseLine tokenizes and groups line into a pipeline. A malformed
// redirection (operator with no following word) drops the trailing
// operator rather than erroring, matching the original's permissive
// tokenizer (it never rejects a line, only drops what it can't place).
func parseLine(line string) pipeline {
	toks := tokenize(line)
	var p pipeline
	cur := stage{}
	i := 0
	for i < len(toks) {
		switch toks[i].kind {
		case tokWord:
			cur.argv = append(cur.argv, toks[i].text)
			i++
		case tokPipe:
			p.stages = append(p.stages, cur)
			cur = stage{}
			i++
		case tokRedirIn, tokRedirOut, tokRedirAppend:
			if i+1 < len(toks) && toks[i+1].kind == tokWord {
				cur.redirects = append(cur.redirects, redirect{toks[i].kind, toks[i+1].text})
				i += 2
			} else {
				i++
			}
		}
	}
	if len(cur.argv) > 0 || len(cur.redirects) > 0 {
		p.stages = append(p.stages, cur)
	}
	return p
}
