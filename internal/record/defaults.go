package record

import "github.com/jonathan/cv-editor/internal/types"

// DefaultPersonal returns the placeholder identity shown in a fresh project
func DefaultPersonal() types.PersonalInfo {
	return types.PersonalInfo{
		types.FieldNameFirst: "John",
		types.FieldNameLast:  "Doe",
		types.FieldTitle:     "Electrical Engineering Student",
		types.FieldAddress:   "City, Country",
		types.FieldPhone:     "(+55) 00~0000-0000",
		types.FieldEmail:     "your.email@example.com",
		types.FieldHomepage:  "www.yourwebsite.com",
		types.FieldLinkedIn:  "your-linkedin-username",
		types.FieldGitHub:    "your-github-username",
	}
}

func defaultContent(key types.SectionKey) types.Content {
	switch key {
	case types.SectionSummary:
		return types.TextContent("Write a 3-5 sentence professional summary highlighting your professional identity, key skills, career objectives and unique value proposition.")
	case types.SectionEducation:
		return types.EntriesContent([]types.Entry{{
			"degree": "Degree Name", "institution": "University Name",
			"start": "2017", "end": "Present", "details": "Additional details",
		}})
	case types.SectionResearch:
		return types.EntriesContent([]types.Entry{{
			"project_title": "Project Title", "institution": "Institution",
			"start": "2025", "end": "Present",
			"details": `\begin{itemize}\item Describe your role and contributions\item Mention specific technologies/methods used\end{itemize}`,
		}})
	case types.SectionExperience:
		return types.EntriesContent([]types.Entry{{
			"job_title": "Job Title", "company": "Company",
			"start": "2017", "end": "2022",
			"details": `\begin{itemize}\item Describe your responsibilities\item Highlight key achievements\end{itemize}`,
		}})
	case types.SectionProjects:
		return types.EntriesContent([]types.Entry{{
			"project_name": "Project Name", "years": "2023--Present",
			"description": "Description of the project including purpose, technologies, and key features",
		}})
	case types.SectionSkills:
		return types.EntriesContent([]types.Entry{
			{"category": "Languages", "items": "List programming languages"},
			{"category": "Frameworks", "items": "List relevant frameworks"},
			{"category": "Tools", "items": "List development tools"},
		})
	case types.SectionAwards:
		return types.EntriesContent([]types.Entry{{
			"year": "2024", "award_name": "Award Name", "organization": "Organization",
		}})
	case types.SectionPublications:
		return types.EntriesContent([]types.Entry{{
			"year": "2024", "title": "Publication Title", "authors": "Authors", "venue": "Conference/Journal",
		}})
	case types.SectionLanguages:
		return types.EntriesContent([]types.Entry{
			{"language": "Portuguese", "proficiency": "Native"},
			{"language": "English", "proficiency": "Proficiency level"},
		})
	}
	return types.TextContent("")
}

// Default returns a record populated with the built-in example data, every section visible
func Default() types.Record {
	rec := types.Record{
		Personal: DefaultPersonal(),
		Sections: make(map[types.SectionKey]types.Section, len(types.SectionOrder)),
	}
	for _, key := range types.SectionOrder {
		rec.Sections[key] = types.Section{Key: key, Visible: true, Content: defaultContent(key)}
	}
	return rec
}

// Empty returns a record with every key present, empty values and all sections visible
func Empty() types.Record {
	rec := types.Record{
		Personal: make(types.PersonalInfo, len(types.PersonalKeys)),
		Sections: make(map[types.SectionKey]types.Section, len(types.SectionOrder)),
	}
	for _, k := range types.PersonalKeys {
		rec.Personal[k] = ""
	}
	for _, key := range types.SectionOrder {
		schema, _ := types.Schema(key)
		content := types.TextContent("")
		if schema.Kind == types.KindStructured {
			content = types.EntriesContent([]types.Entry{})
		}
		rec.Sections[key] = types.Section{Key: key, Visible: true, Content: content}
	}
	return rec
}
