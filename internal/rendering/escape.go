package rendering

import "strings"

// latexEscaper covers the LaTeX special characters: \ { } $ & % # ^ _ ~
var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`{`, `\{`,
	`}`, `\}`,
	`$`, `\$`,
	`&`, `\&`,
	`%`, `\%`,
	`#`, `\#`,
	`^`, `\textasciicircum{}`,
	`_`, `\_`,
	`~`, `\textasciitilde{}`,
)

// EscapeLaTeX escapes special LaTeX characters so text renders literally
func EscapeLaTeX(text string) string {
	return latexEscaper.Replace(text)
}
