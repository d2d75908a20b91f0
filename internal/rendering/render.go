package rendering

import (
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/cv-editor/internal/types"
)

const banner = "% ======================"

// Renderer turns a record snapshot into a complete LaTeX document.
//
// User text is inserted verbatim unless EscapeText is set: people paste raw
// LaTeX commands into their sections on purpose, and escaping would break
// that. The flip side is that an unbalanced brace in any field produces a
// document the compiler rejects.
type Renderer struct {
	// TemplatePath points at the preamble. Empty or missing uses DefaultTemplate.
	TemplatePath string
	// EscapeText escapes personal values and structured entry fields.
	// Freeform section text is always inserted as written.
	EscapeText bool
	Logger     *zap.Logger
}

// Render renders rec with the built-in preamble and no escaping
func Render(rec types.Record) (string, error) {
	return (&Renderer{}).Render(rec)
}

// Render assembles the document. It is a pure function of rec and the template file.
func (r *Renderer) Render(rec types.Record) (string, error) {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}

	text, fallback, err := loadTemplate(r.TemplatePath)
	if err != nil {
		return "", err
	}
	source := r.TemplatePath
	if fallback {
		if source != "" {
			log.Debug("preamble template not found, using built-in default", zap.String("path", source))
		}
		source = builtinSource
	}

	tmpl, err := parseTemplate(source, text)
	if err != nil {
		return "", err
	}

	data := make(map[string]string, len(rec.Personal)+1)
	for _, key := range placeholders(tmpl) {
		if key == BodyKey {
			continue
		}
		value, ok := rec.Personal[key]
		if !ok {
			return "", &MissingFieldError{Key: key}
		}
		if r.EscapeText {
			value = EscapeLaTeX(value)
		}
		data[key] = value
	}
	data[BodyKey] = r.body(rec)

	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", &TemplateError{Source: source, Stage: "execute", Cause: err}
	}

	log.Debug("rendered document",
		zap.Int("sections", len(rec.VisibleSections())),
		zap.Int("bytes", out.Len()))
	return out.String(), nil
}

// body concatenates every visible section in canonical order
func (r *Renderer) body(rec types.Record) string {
	var b strings.Builder
	for _, spec := range Sections() {
		sec, ok := rec.Sections[spec.Key]
		if !ok || !sec.Visible {
			continue
		}
		b.WriteString("\n" + banner + "\n% " + strings.ToUpper(spec.Title) + "\n" + banner + "\n")
		b.WriteString(`\section{` + spec.Title + "}\n")
		b.WriteString(r.sectionBody(spec, sec.Content))
		b.WriteString("\n")
	}
	return b.String()
}

func (r *Renderer) sectionBody(spec SectionSpec, c types.Content) string {
	if c.Kind == types.ContentText || spec.Format == nil {
		return c.Text
	}
	lines := make([]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		if r.EscapeText {
			escaped := make(types.Entry, len(e))
			for k, v := range e {
				escaped[k] = EscapeLaTeX(v)
			}
			e = escaped
		}
		lines = append(lines, spec.Format(e))
	}
	return strings.Join(lines, "\n")
}
