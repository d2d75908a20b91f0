package rendering

import (
	"errors"
	"io/fs"
	"os"
	"text/template"
	"text/template/parse"
)

// Placeholder delimiters. LaTeX is full of braces, so the preamble uses << >>
// instead of the text/template default.
const (
	LeftDelim  = "<<"
	RightDelim = ">>"
)

// BodyKey is the placeholder that receives the assembled sections
const BodyKey = "content"

// DefaultTemplate is the moderncv preamble used when no template file is available
const DefaultTemplate = `\documentclass[11pt,a4paper,sans]{moderncv}
\moderncvstyle{classic}
\moderncvcolor{blue}
\usepackage[scale=0.75]{geometry}
\usepackage[english]{babel}
\usepackage{fontspec}
\setmainfont{Arial}

% ======================
% GENERAL INFORMATION
% ======================

\name{<<.name_first>>}{<<.name_last>>}
\title{<<.title>>}
\address{<<.address>>}
\phone{<<.phone>>}
\email{<<.email>>}
\homepage{<<.homepage>>}
\social[linkedin]{<<.linkedin>>}
\social[github]{<<.github>>}

\begin{document}
\makecvtitle
<<.content>>
\end{document}
`

// loadTemplate reads the preamble at path. A missing file (or empty path)
// falls back to DefaultTemplate; any other read failure is an error.
func loadTemplate(path string) (string, bool, error) {
	if path == "" {
		return DefaultTemplate, true, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultTemplate, true, nil
		}
		return "", false, &TemplateError{Source: path, Stage: "read", Cause: err}
	}
	return string(content), false, nil
}

// parseTemplate parses preamble text with the placeholder delimiters.
// source only labels errors.
func parseTemplate(source, text string) (*template.Template, error) {
	tmpl, err := template.New("preamble").
		Delims(LeftDelim, RightDelim).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, &TemplateError{Source: source, Stage: "parse", Cause: err}
	}
	return tmpl, nil
}

// placeholders returns the top-level keys referenced by the template, in order of first use
func placeholders(tmpl *template.Template) []string {
	if tmpl.Tree == nil || tmpl.Tree.Root == nil {
		return nil
	}
	seen := make(map[string]bool)
	var keys []string
	var walk func(parse.Node)
	walk = func(n parse.Node) {
		switch n := n.(type) {
		case *parse.ListNode:
			if n == nil {
				return
			}
			for _, c := range n.Nodes {
				walk(c)
			}
		case *parse.ActionNode:
			walk(n.Pipe)
		case *parse.PipeNode:
			if n == nil {
				return
			}
			for _, c := range n.Cmds {
				walk(c)
			}
		case *parse.CommandNode:
			for _, a := range n.Args {
				walk(a)
			}
		case *parse.FieldNode:
			if len(n.Ident) > 0 && !seen[n.Ident[0]] {
				seen[n.Ident[0]] = true
				keys = append(keys, n.Ident[0])
			}
		case *parse.IfNode:
			walk(n.Pipe)
			walk(n.List)
			walk(n.ElseList)
		case *parse.WithNode:
			// dot is rebound inside the body
			walk(n.Pipe)
			walk(n.ElseList)
		case *parse.RangeNode:
			walk(n.Pipe)
			walk(n.ElseList)
		case *parse.TemplateNode:
			walk(n.Pipe)
		}
	}
	walk(tmpl.Tree.Root)
	return keys
}
