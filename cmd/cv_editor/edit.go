package main

import (
	"fmt"
	"os"

	"github.com/jonathan/cv-editor/internal/project"
	"github.com/jonathan/cv-editor/internal/record"
	"github.com/jonathan/cv-editor/internal/types"
	"github.com/spf13/cobra"
)

var (
	initOut   string
	initEmpty bool
	initForce bool

	editProject string

	setField string
	setValue string

	sectionName string
	sectionText string

	entryAssignments []string
	entryIndex       int

	toggleVisible bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new project file",
	Long:  "Writes a project populated with the built-in example data, or with empty values when --empty is given.",
	RunE:  runInit,
}

var showCmd = &cobra.Command{
	Use:   "show [section]",
	Short: "Print the record or one section",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShow,
}

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Set a personal field",
	RunE:  runSet,
}

var setSectionCmd = &cobra.Command{
	Use:   "set-section",
	Short: "Replace a section body with markup text",
	RunE:  runSetSection,
}

var addEntryCmd = &cobra.Command{
	Use:   "add-entry",
	Short: "Append an entry to a structured section",
	RunE:  runAddEntry,
}

var updateEntryCmd = &cobra.Command{
	Use:   "update-entry",
	Short: "Replace the entry at --index in a structured section",
	RunE:  runUpdateEntry,
}

var deleteEntryCmd = &cobra.Command{
	Use:   "delete-entry",
	Short: "Remove the entry at --index from a structured section",
	RunE:  runDeleteEntry,
}

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Show or hide a section in the rendered document",
	RunE:  runToggle,
}

func init() {
	initCmd.Flags().StringVarP(&initOut, "out", "o", "", "Path of the project file to create (default from config)")
	initCmd.Flags().BoolVar(&initEmpty, "empty", false, "Start with empty values instead of example data")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
	rootCmd.AddCommand(initCmd)

	for _, c := range []*cobra.Command{showCmd, setCmd, setSectionCmd, addEntryCmd, updateEntryCmd, deleteEntryCmd, toggleCmd} {
		c.Flags().StringVarP(&editProject, "project", "p", "", "Path to the project file (default from config)")
		rootCmd.AddCommand(c)
	}

	setCmd.Flags().StringVarP(&setField, "field", "f", "", "Personal field key, e.g. email")
	setCmd.Flags().StringVar(&setValue, "value", "", "New value")
	_ = setCmd.MarkFlagRequired("field")
	_ = setCmd.MarkFlagRequired("value")

	for _, c := range []*cobra.Command{setSectionCmd, addEntryCmd, updateEntryCmd, deleteEntryCmd, toggleCmd} {
		c.Flags().StringVarP(&sectionName, "section", "s", "", "Section key, e.g. education")
		_ = c.MarkFlagRequired("section")
	}

	setSectionCmd.Flags().StringVarP(&sectionText, "text", "t", "", "Markup for the section body")
	_ = setSectionCmd.MarkFlagRequired("text")

	addEntryCmd.Flags().StringArrayVar(&entryAssignments, "set", nil, "Entry field as field=value (repeatable)")
	updateEntryCmd.Flags().StringArrayVar(&entryAssignments, "set", nil, "Entry field as field=value (repeatable)")
	updateEntryCmd.Flags().IntVarP(&entryIndex, "index", "i", -1, "Zero-based entry index")
	deleteEntryCmd.Flags().IntVarP(&entryIndex, "index", "i", -1, "Zero-based entry index")
	_ = updateEntryCmd.MarkFlagRequired("index")
	_ = deleteEntryCmd.MarkFlagRequired("index")

	toggleCmd.Flags().BoolVar(&toggleVisible, "visible", true, "Whether the section is rendered")
}

func runInit(cmd *cobra.Command, _ []string) error {
	path := projectPath(initOut)
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	rec := record.Default()
	if initEmpty {
		rec = record.Empty()
	}
	if err := project.Save(path, rec); err != nil {
		return err
	}
	printer(cmd).Success("Created project %s", path)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	store, err := openStore(projectPath(editProject))
	if err != nil {
		return err
	}
	p := printer(cmd)
	if len(args) == 0 {
		p.PrintRecord(store.Snapshot())
		return nil
	}

	key, ok := types.ParseSectionKey(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", record.ErrUnknownSection, args[0])
	}
	sec, _ := store.Section(key)
	p.PrintSection(sec)
	return nil
}

// editAndSave loads the project, applies edit and writes the result back
func editAndSave(cmd *cobra.Command, edit func(*record.Store) error, done string) error {
	path := projectPath(editProject)
	store, err := openStore(path)
	if err != nil {
		return err
	}
	if err := edit(store); err != nil {
		return err
	}
	if err := saveStore(store, path); err != nil {
		return err
	}
	printer(cmd).Success("%s", done)
	return nil
}

func sectionKey() (types.SectionKey, error) {
	key, ok := types.ParseSectionKey(sectionName)
	if !ok {
		return "", fmt.Errorf("%w: %s", record.ErrUnknownSection, sectionName)
	}
	return key, nil
}

func runSet(cmd *cobra.Command, _ []string) error {
	return editAndSave(cmd, func(s *record.Store) error {
		return s.SetPersonal(setField, setValue)
	}, fmt.Sprintf("Set %s", setField))
}

func runSetSection(cmd *cobra.Command, _ []string) error {
	key, err := sectionKey()
	if err != nil {
		return err
	}
	return editAndSave(cmd, func(s *record.Store) error {
		return s.SetSectionText(key, sectionText)
	}, fmt.Sprintf("Updated %s", key))
}

func runAddEntry(cmd *cobra.Command, _ []string) error {
	key, err := sectionKey()
	if err != nil {
		return err
	}
	fields, err := parseAssignments(entryAssignments)
	if err != nil {
		return err
	}
	return editAndSave(cmd, func(s *record.Store) error {
		return s.AddEntry(key, types.Entry(fields))
	}, fmt.Sprintf("Added entry to %s", key))
}

func runUpdateEntry(cmd *cobra.Command, _ []string) error {
	key, err := sectionKey()
	if err != nil {
		return err
	}
	fields, err := parseAssignments(entryAssignments)
	if err != nil {
		return err
	}
	return editAndSave(cmd, func(s *record.Store) error {
		sec, _ := s.Section(key)
		if entryIndex < 0 || entryIndex >= len(sec.Content.Entries) {
			return fmt.Errorf("%w: %d", record.ErrEntryIndex, entryIndex)
		}
		// unspecified fields keep their current values
		merged := sec.Content.Entries[entryIndex].Clone()
		for k, v := range fields {
			merged[k] = v
		}
		return s.UpdateEntry(key, entryIndex, merged)
	}, fmt.Sprintf("Updated entry %d in %s", entryIndex, key))
}

func runDeleteEntry(cmd *cobra.Command, _ []string) error {
	key, err := sectionKey()
	if err != nil {
		return err
	}
	return editAndSave(cmd, func(s *record.Store) error {
		return s.DeleteEntry(key, entryIndex)
	}, fmt.Sprintf("Deleted entry %d from %s", entryIndex, key))
}

func runToggle(cmd *cobra.Command, _ []string) error {
	key, err := sectionKey()
	if err != nil {
		return err
	}
	state := "hidden"
	if toggleVisible {
		state = "visible"
	}
	return editAndSave(cmd, func(s *record.Store) error {
		return s.SetVisible(key, toggleVisible)
	}, fmt.Sprintf("%s is now %s", key, state))
}
