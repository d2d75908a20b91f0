package types

import "fmt"

// SectionKey identifies one of the fixed document sections
type SectionKey string

// Section keys
const (
	SectionSummary      SectionKey = "summary"
	SectionEducation    SectionKey = "education"
	SectionResearch     SectionKey = "research"
	SectionExperience   SectionKey = "experience"
	SectionProjects     SectionKey = "projects"
	SectionSkills       SectionKey = "skills"
	SectionAwards       SectionKey = "awards"
	SectionPublications SectionKey = "publications"
	SectionLanguages    SectionKey = "languages"
)

// SectionOrder is the canonical rendering order. It never depends on
// storage order or on the order in which sections were edited.
var SectionOrder = []SectionKey{
	SectionSummary,
	SectionEducation,
	SectionResearch,
	SectionExperience,
	SectionProjects,
	SectionSkills,
	SectionAwards,
	SectionPublications,
	SectionLanguages,
}

// Kind describes the shape of a section's content
type Kind int

const (
	// KindFreeform sections hold a single markup fragment
	KindFreeform Kind = iota
	// KindStructured sections hold an ordered list of entries
	KindStructured
)

func (k Kind) String() string {
	switch k {
	case KindFreeform:
		return "freeform"
	case KindStructured:
		return "structured"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// FieldSpec describes one field of a structured entry
type FieldSpec struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// SectionSchema is the fixed schema of one section
type SectionSchema struct {
	Key    SectionKey  `json:"key"`
	Title  string      `json:"title"`
	Tab    string      `json:"tab"`
	Hint   string      `json:"hint"`
	Kind   Kind        `json:"kind"`
	Fields []FieldSpec `json:"fields,omitempty"`
}

// HasField reports whether name is a field of the schema
func (s SectionSchema) HasField(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

var timelineTail = []FieldSpec{
	{Name: "start", Label: "Start Year"},
	{Name: "end", Label: "End Year"},
	{Name: "details", Label: "Details"},
}

func timeline(title, org FieldSpec) []FieldSpec {
	return append([]FieldSpec{title, org}, timelineTail...)
}

var schemas = map[SectionKey]SectionSchema{
	SectionSummary: {
		Key: SectionSummary, Title: "Summary", Tab: "Summary",
		Hint: "Write a 3-5 sentence professional summary",
		Kind: KindFreeform,
	},
	SectionEducation: {
		Key: SectionEducation, Title: "Education", Tab: "Education",
		Hint: "List your degrees and certifications",
		Kind: KindStructured,
		Fields: timeline(
			FieldSpec{Name: "degree", Label: "Degree"},
			FieldSpec{Name: "institution", Label: "Institution"},
		),
	},
	SectionResearch: {
		Key: SectionResearch, Title: "Research Projects", Tab: "Research",
		Hint: "Describe your research experience",
		Kind: KindStructured,
		Fields: timeline(
			FieldSpec{Name: "project_title", Label: "Project Title"},
			FieldSpec{Name: "institution", Label: "Institution"},
		),
	},
	SectionExperience: {
		Key: SectionExperience, Title: "Professional Experience", Tab: "Experience",
		Hint: "Detail your professional work history",
		Kind: KindStructured,
		Fields: timeline(
			FieldSpec{Name: "job_title", Label: "Job Title"},
			FieldSpec{Name: "company", Label: "Company"},
		),
	},
	SectionProjects: {
		Key: SectionProjects, Title: "Personal Open Source Projects", Tab: "Projects",
		Hint: "Showcase your open-source or personal projects",
		Kind: KindStructured,
		Fields: []FieldSpec{
			{Name: "project_name", Label: "Project Name"},
			{Name: "years", Label: "Years"},
			{Name: "description", Label: "Description"},
		},
	},
	SectionSkills: {
		Key: SectionSkills, Title: "Technical Skills", Tab: "Skills",
		Hint: "List your technical skills and proficiencies",
		Kind: KindStructured,
		Fields: []FieldSpec{
			{Name: "category", Label: "Category"},
			{Name: "items", Label: "Items"},
		},
	},
	SectionAwards: {
		Key: SectionAwards, Title: "Awards", Tab: "Awards",
		Hint: "Highlight your achievements and recognitions",
		Kind: KindStructured,
		Fields: []FieldSpec{
			{Name: "year", Label: "Year"},
			{Name: "award_name", Label: "Award Name"},
			{Name: "organization", Label: "Organization"},
		},
	},
	SectionPublications: {
		Key: SectionPublications, Title: "Publications", Tab: "Publications",
		Hint: "List your academic publications",
		Kind: KindStructured,
		Fields: []FieldSpec{
			{Name: "year", Label: "Year"},
			{Name: "title", Label: "Title"},
			{Name: "authors", Label: "Authors"},
			{Name: "venue", Label: "Venue"},
		},
	},
	SectionLanguages: {
		Key: SectionLanguages, Title: "Languages", Tab: "Languages",
		Hint: "List languages you speak with proficiency",
		Kind: KindStructured,
		Fields: []FieldSpec{
			{Name: "language", Label: "Language"},
			{Name: "proficiency", Label: "Proficiency"},
		},
	},
}

// Schema returns the schema for key and whether key is a known section
func Schema(key SectionKey) (SectionSchema, bool) {
	s, ok := schemas[key]
	return s, ok
}

// Schemas returns all section schemas in canonical order
func Schemas() []SectionSchema {
	out := make([]SectionSchema, 0, len(SectionOrder))
	for _, key := range SectionOrder {
		out = append(out, schemas[key])
	}
	return out
}

// ParseSectionKey validates a raw section key
func ParseSectionKey(raw string) (SectionKey, bool) {
	key := SectionKey(raw)
	_, ok := schemas[key]
	return key, ok
}

// Entry is one item of a structured section, keyed by field name
type Entry map[string]string

// Clone returns an independent copy of the entry
func (e Entry) Clone() Entry {
	if e == nil {
		return nil
	}
	out := make(Entry, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// ContentKind tags which variant of Content is populated
type ContentKind int

const (
	// ContentText holds a raw markup fragment
	ContentText ContentKind = iota
	// ContentEntries holds structured entries
	ContentEntries
)

// Content is a section body: either a markup fragment or a list of entries.
// Structured sections accept a text body too, so project files that stored
// hand-written markup keep rendering exactly as written.
type Content struct {
	Kind    ContentKind
	Text    string
	Entries []Entry
}

// TextContent builds a text body
func TextContent(text string) Content {
	return Content{Kind: ContentText, Text: text}
}

// EntriesContent builds a structured body
func EntriesContent(entries []Entry) Content {
	return Content{Kind: ContentEntries, Entries: entries}
}

// Clone returns an independent copy of the content
func (c Content) Clone() Content {
	out := Content{Kind: c.Kind, Text: c.Text}
	if c.Entries != nil {
		out.Entries = make([]Entry, len(c.Entries))
		for i, e := range c.Entries {
			out.Entries[i] = e.Clone()
		}
	}
	return out
}

// Section is the stored state of one document section
type Section struct {
	Key     SectionKey
	Visible bool
	Content Content
}

// Title returns the fixed display title of the section
func (s Section) Title() string {
	return schemas[s.Key].Title
}

// Clone returns an independent copy of the section
func (s Section) Clone() Section {
	return Section{Key: s.Key, Visible: s.Visible, Content: s.Content.Clone()}
}
