package rendering

import (
	"fmt"

	"github.com/jonathan/cv-editor/internal/types"
)

// EntryFormatter turns one structured entry into a line of markup
type EntryFormatter func(types.Entry) string

// SectionSpec binds a section schema to the markup template for its entries.
// Freeform sections have a nil Format.
type SectionSpec struct {
	types.SectionSchema
	Format EntryFormatter
}

// period joins start and end as a date range, or returns whichever side is set
func period(start, end string) string {
	switch {
	case start != "" && end != "":
		return start + "--" + end
	case start != "":
		return start
	default:
		return end
	}
}

// timelineEntry renders \cventry{period}{title}{organization}{}{}{details}
func timelineEntry(titleField, orgField string) EntryFormatter {
	return func(e types.Entry) string {
		return fmt.Sprintf(`\cventry{%s}{%s}{%s}{}{}{%s}`,
			period(e["start"], e["end"]), e[titleField], e[orgField], e["details"])
	}
}

// labelBodyEntry renders \cvitem{label}{body}
func labelBodyEntry(labelField, bodyField string) EntryFormatter {
	return func(e types.Entry) string {
		return fmt.Sprintf(`\cvitem{%s}{%s}`, e[labelField], e[bodyField])
	}
}

func projectEntry(e types.Entry) string {
	return fmt.Sprintf(`\cvitem{%s}{\textbf{%s} %s}`, e["years"], e["project_name"], e["description"])
}

func awardEntry(e types.Entry) string {
	return fmt.Sprintf(`\cvitem{%s}{%s - %s}`, e["year"], e["award_name"], e["organization"])
}

func publicationEntry(e types.Entry) string {
	return fmt.Sprintf(`\cvitem{%s}{%s. "%s". %s.}`, e["year"], e["authors"], e["title"], e["venue"])
}

var formatters = map[types.SectionKey]EntryFormatter{
	types.SectionEducation:    timelineEntry("degree", "institution"),
	types.SectionResearch:     timelineEntry("project_title", "institution"),
	types.SectionExperience:   timelineEntry("job_title", "company"),
	types.SectionProjects:     projectEntry,
	types.SectionSkills:       labelBodyEntry("category", "items"),
	types.SectionAwards:       awardEntry,
	types.SectionPublications: publicationEntry,
	types.SectionLanguages:    labelBodyEntry("language", "proficiency"),
}

// Sections returns the section registry in canonical order
func Sections() []SectionSpec {
	schemas := types.Schemas()
	out := make([]SectionSpec, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, SectionSpec{SectionSchema: s, Format: formatters[s.Key]})
	}
	return out
}
