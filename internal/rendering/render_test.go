package rendering

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonathan/cv-editor/internal/record"
	"github.com/jonathan/cv-editor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adaRecord() types.Record {
	rec := record.Empty()
	rec.Personal = types.PersonalInfo{
		types.FieldNameFirst: "Ada",
		types.FieldNameLast:  "Lovelace",
		types.FieldTitle:     "Analyst",
		types.FieldAddress:   "London, UK",
		types.FieldPhone:     "+44 20 0000 0000",
		types.FieldEmail:     "ada@example.com",
		types.FieldHomepage:  "ada.example.com",
		types.FieldLinkedIn:  "ada-lovelace",
		types.FieldGitHub:    "ada",
	}
	for key, sec := range rec.Sections {
		sec.Visible = false
		rec.Sections[key] = sec
	}
	rec.Sections[types.SectionSummary] = types.Section{
		Key:     types.SectionSummary,
		Visible: true,
		Content: types.TextContent("Pioneer."),
	}
	return rec
}

func TestRender_EndToEndExample(t *testing.T) {
	out, err := Render(adaRecord())
	require.NoError(t, err)

	assert.Contains(t, out, "\\section{Summary}\nPioneer.\n")
	assert.Contains(t, out, `\name{Ada}{Lovelace}`)
	for _, spec := range Sections() {
		if spec.Key == types.SectionSummary {
			continue
		}
		assert.NotContains(t, out, `\section{`+spec.Title+`}`)
	}
	assert.True(t, strings.HasPrefix(out, `\documentclass`))
	assert.True(t, strings.HasSuffix(out, "\\end{document}\n"))
}

func TestRender_SectionLayout(t *testing.T) {
	out, err := Render(adaRecord())
	require.NoError(t, err)

	want := "\\makecvtitle\n" +
		"\n% ======================\n% SUMMARY\n% ======================\n" +
		"\\section{Summary}\n" +
		"Pioneer.\n" +
		"\n\\end{document}\n"
	assert.Contains(t, out, want)
}

func TestRender_PersonalValuesAtPlaceholders(t *testing.T) {
	rec := adaRecord()
	out, err := Render(rec)
	require.NoError(t, err)

	expected := []string{
		`\name{Ada}{Lovelace}`,
		`\title{Analyst}`,
		`\address{London, UK}`,
		`\phone{+44 20 0000 0000}`,
		`\email{ada@example.com}`,
		`\homepage{ada.example.com}`,
		`\social[linkedin]{ada-lovelace}`,
		`\social[github]{ada}`,
	}
	for _, e := range expected {
		assert.Contains(t, out, e)
	}
}

func TestRender_EmptyValuesAreAllowed(t *testing.T) {
	rec := adaRecord()
	rec.Personal[types.FieldGitHub] = ""

	out, err := Render(rec)
	require.NoError(t, err)
	assert.Contains(t, out, `\social[github]{}`)
}

func TestRender_MissingField(t *testing.T) {
	for _, key := range types.PersonalKeys {
		t.Run(key, func(t *testing.T) {
			rec := adaRecord()
			delete(rec.Personal, key)

			out, err := Render(rec)
			assert.Empty(t, out)
			require.ErrorIs(t, err, ErrMissingField)

			var missing *MissingFieldError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, key, missing.Key)
		})
	}
}

func TestRender_HiddenSectionsOmitted(t *testing.T) {
	store := record.NewStoreFrom(adaRecord())
	require.NoError(t, store.SetVisible(types.SectionSkills, true))
	require.NoError(t, store.SetSectionEntries(types.SectionSkills, []types.Entry{
		{"category": "Languages", "items": "Go, Rust"},
	}))

	shown, err := Render(store.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, shown, `\section{Technical Skills}`)
	assert.Contains(t, shown, `\cvitem{Languages}{Go, Rust}`)

	require.NoError(t, store.SetVisible(types.SectionSkills, false))
	hidden, err := Render(store.Snapshot())
	require.NoError(t, err)
	assert.NotContains(t, hidden, `\section{Technical Skills}`)
	assert.NotContains(t, hidden, "Go, Rust")
	assert.NotContains(t, hidden, "TECHNICAL SKILLS")

	require.NoError(t, store.SetVisible(types.SectionSkills, true))
	again, err := Render(store.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, shown, again)
}

func TestRender_CanonicalOrder(t *testing.T) {
	titles := func(out string) []string {
		var got []string
		for _, line := range strings.Split(out, "\n") {
			if strings.HasPrefix(line, `\section{`) {
				got = append(got, strings.TrimSuffix(strings.TrimPrefix(line, `\section{`), "}"))
			}
		}
		return got
	}

	var want []string
	for _, spec := range Sections() {
		want = append(want, spec.Title)
	}

	a := record.NewStore()
	require.NoError(t, a.SetSectionText(types.SectionSummary, "first"))
	require.NoError(t, a.SetSectionEntries(types.SectionLanguages, nil))
	require.NoError(t, a.AddEntry(types.SectionEducation, types.Entry{"degree": "BSc"}))

	b := record.NewStore()
	require.NoError(t, b.AddEntry(types.SectionEducation, types.Entry{"degree": "BSc"}))
	require.NoError(t, b.SetSectionEntries(types.SectionLanguages, nil))
	require.NoError(t, b.SetSectionText(types.SectionSummary, "first"))

	outA, err := Render(a.Snapshot())
	require.NoError(t, err)
	outB, err := Render(b.Snapshot())
	require.NoError(t, err)

	assert.Equal(t, want, titles(outA))
	assert.Equal(t, want, titles(outB))
	assert.Equal(t, outA, outB)
}

func TestRender_Deterministic(t *testing.T) {
	rec := record.Default()
	first, err := Render(rec)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Render(rec)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRender_StructuredEntries(t *testing.T) {
	rec := adaRecord()
	set := func(key types.SectionKey, entries ...types.Entry) {
		rec.Sections[key] = types.Section{Key: key, Visible: true, Content: types.EntriesContent(entries)}
	}
	set(types.SectionEducation,
		types.Entry{"degree": "BSc Mathematics", "institution": "University of London", "start": "1830", "end": "1833", "details": "First class"},
		types.Entry{"degree": "Tutoring", "institution": "De Morgan", "start": "1840", "end": "", "details": ""},
	)
	set(types.SectionExperience, types.Entry{"job_title": "Analyst", "company": "Babbage", "start": "", "end": "1843", "details": "Notes"})
	set(types.SectionProjects, types.Entry{"project_name": "Note G", "years": "1843", "description": "First algorithm"})
	set(types.SectionAwards, types.Entry{"year": "1842", "award_name": "Honour", "organization": "Society"})
	set(types.SectionPublications, types.Entry{"year": "1843", "title": "Sketch of the Analytical Engine", "authors": "A. A. Lovelace", "venue": "Scientific Memoirs"})
	set(types.SectionLanguages, types.Entry{"language": "French", "proficiency": "Fluent"})

	out, err := Render(rec)
	require.NoError(t, err)

	assert.Contains(t, out,
		"\\section{Education}\n"+
			`\cventry{1830--1833}{BSc Mathematics}{University of London}{}{}{First class}`+"\n"+
			`\cventry{1840}{Tutoring}{De Morgan}{}{}{}`+"\n")
	assert.Contains(t, out, `\cventry{1843}{Analyst}{Babbage}{}{}{Notes}`)
	assert.Contains(t, out, `\cvitem{1843}{\textbf{Note G} First algorithm}`)
	assert.Contains(t, out, `\cvitem{1842}{Honour - Society}`)
	assert.Contains(t, out, `\cvitem{1843}{A. A. Lovelace. "Sketch of the Analytical Engine". Scientific Memoirs.}`)
	assert.Contains(t, out, `\cvitem{French}{Fluent}`)
}

func TestRender_EmptyListKeepsHeading(t *testing.T) {
	rec := adaRecord()
	rec.Sections[types.SectionAwards] = types.Section{
		Key: types.SectionAwards, Visible: true, Content: types.EntriesContent(nil),
	}

	out, err := Render(rec)
	require.NoError(t, err)
	assert.Contains(t, out, "\\section{Awards}\n\n")
}

func TestRender_RawTextInStructuredSection(t *testing.T) {
	rec := adaRecord()
	raw := `\cvitem{2024}{Award Name - Organization}`
	rec.Sections[types.SectionAwards] = types.Section{
		Key: types.SectionAwards, Visible: true, Content: types.TextContent(raw),
	}

	out, err := Render(rec)
	require.NoError(t, err)
	assert.Contains(t, out, "\\section{Awards}\n"+raw+"\n")
}

func TestRender_NoEscapingByDefault(t *testing.T) {
	rec := adaRecord()
	rec.Personal[types.FieldTitle] = `R\&D Lead_1`
	rec.Sections[types.SectionSummary] = types.Section{
		Key: types.SectionSummary, Visible: true, Content: types.TextContent(`\textbf{Bold} 100%`),
	}

	out, err := Render(rec)
	require.NoError(t, err)
	assert.Contains(t, out, `\title{R\&D Lead_1}`)
	assert.Contains(t, out, `\textbf{Bold} 100%`)
}

func TestRenderer_EscapeText(t *testing.T) {
	rec := adaRecord()
	rec.Personal[types.FieldGitHub] = "ada_l"
	rec.Sections[types.SectionSkills] = types.Section{
		Key: types.SectionSkills, Visible: true,
		Content: types.EntriesContent([]types.Entry{{"category": "C#", "items": "50%"}}),
	}
	rec.Sections[types.SectionSummary] = types.Section{
		Key: types.SectionSummary, Visible: true, Content: types.TextContent(`\textbf{raw}`),
	}

	out, err := (&Renderer{EscapeText: true}).Render(rec)
	require.NoError(t, err)
	assert.Contains(t, out, `\social[github]{ada\_l}`)
	assert.Contains(t, out, `\cvitem{C\#}{50\%}`)
	assert.Contains(t, out, `\textbf{raw}`, "freeform text is never escaped")
}

func TestRenderer_TemplateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cv_template.tex")
	tmpl := "\\documentclass{article}\n\\begin{document}\n<<.name_first>> <<.name_last>>\n<<.content>>\\end{document}\n"
	require.NoError(t, os.WriteFile(path, []byte(tmpl), 0644))

	out, err := (&Renderer{TemplatePath: path}).Render(adaRecord())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "\\documentclass{article}\n\\begin{document}\nAda Lovelace\n"))
	assert.NotContains(t, out, "moderncv")
}

func TestRenderer_TemplateFileRequiresOnlyReferencedKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.tex")
	require.NoError(t, os.WriteFile(path, []byte("<<.email>>\n<<.content>>"), 0644))

	rec := adaRecord()
	delete(rec.Personal, types.FieldGitHub)

	out, err := (&Renderer{TemplatePath: path}).Render(rec)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ada@example.com\n"))
}

func TestRenderer_TemplateUnknownPlaceholder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.tex")
	require.NoError(t, os.WriteFile(path, []byte("<<.nickname>> <<.content>>"), 0644))

	_, err := (&Renderer{TemplatePath: path}).Render(adaRecord())
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "nickname", missing.Key)
}

func TestRenderer_MissingTemplateFallsBack(t *testing.T) {
	r := &Renderer{TemplatePath: filepath.Join(t.TempDir(), "absent.tex")}
	out, err := r.Render(adaRecord())
	require.NoError(t, err)

	builtin, err := Render(adaRecord())
	require.NoError(t, err)
	assert.Equal(t, builtin, out)
}

func TestRenderer_TemplateErrors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.tex")
	require.NoError(t, os.WriteFile(bad, []byte("<<.name_first"), 0644))
	_, err := (&Renderer{TemplatePath: bad}).Render(adaRecord())
	var tmplErr *TemplateError
	require.ErrorAs(t, err, &tmplErr)
	assert.Equal(t, "parse", tmplErr.Stage)
	assert.Equal(t, bad, tmplErr.Source)

	// a directory cannot be read as a file
	_, err = (&Renderer{TemplatePath: dir}).Render(adaRecord())
	require.ErrorAs(t, err, &tmplErr)
	assert.Equal(t, "read", tmplErr.Stage)
	assert.Contains(t, err.Error(), "read failed")
}

func TestPlaceholders(t *testing.T) {
	tmpl, err := parseTemplate(builtinSource, DefaultTemplate)
	require.NoError(t, err)

	want := append(append([]string{}, types.PersonalKeys...), BodyKey)
	assert.Equal(t, want, placeholders(tmpl))
}

func TestSections_MatchSchemas(t *testing.T) {
	specs := Sections()
	require.Len(t, specs, len(types.SectionOrder))
	for i, spec := range specs {
		assert.Equal(t, types.SectionOrder[i], spec.Key)
		if spec.Kind == types.KindStructured {
			assert.NotNil(t, spec.Format, "structured section %s needs a formatter", spec.Key)
		} else {
			assert.Nil(t, spec.Format)
		}
	}
}
