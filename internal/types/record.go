package types

// Record is a complete snapshot of the CV data: personal fields plus every section
type Record struct {
	Personal PersonalInfo
	Sections map[SectionKey]Section
}

// Clone returns a deep copy of the record
func (r Record) Clone() Record {
	out := Record{Personal: r.Personal.Clone()}
	if r.Sections != nil {
		out.Sections = make(map[SectionKey]Section, len(r.Sections))
		for k, s := range r.Sections {
			out.Sections[k] = s.Clone()
		}
	}
	return out
}

// Section returns the stored section for key and whether it exists
func (r Record) Section(key SectionKey) (Section, bool) {
	s, ok := r.Sections[key]
	return s, ok
}

// VisibleSections returns the visible sections in canonical order
func (r Record) VisibleSections() []Section {
	out := make([]Section, 0, len(SectionOrder))
	for _, key := range SectionOrder {
		if s, ok := r.Sections[key]; ok && s.Visible {
			out = append(out, s)
		}
	}
	return out
}
