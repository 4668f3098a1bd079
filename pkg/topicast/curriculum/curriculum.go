// Package curriculum holds the keyword curriculum used for tagging
// questions with chapters and topics. A Curriculum is immutable once
// built; WithEntry returns a new version instead of mutating.
package curriculum

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/topicast/topicast/pkg/topicast/internalerr"
)

// Entry describes one chapter of one subject of one exam. The order of
// entries within an (exam, subject) pair is significant: it is the
// tie-break order when two chapters score equally during tagging.
type Entry struct {
	Exam     string
	Subject  string
	Chapter  string
	Keywords []string
	Topics   []string
}

// Curriculum is an immutable, versioned set of entries.
type Curriculum struct {
	version int
	entries []Entry
}

// New builds a curriculum from entries, validating each one. Entry
// order is preserved.
func New(version int, entries []Entry) (*Curriculum, error) {
	for i, e := range entries {
		if err := validateEntry(e); err != nil {
			return nil, fmt.Errorf("entry %d (%s/%s/%s): %w", i, e.Exam, e.Subject, e.Chapter, err)
		}
	}
	return &Curriculum{version: version, entries: copyEntries(entries)}, nil
}

func validateEntry(e Entry) error {
	if e.Exam == "" || e.Subject == "" || e.Chapter == "" {
		return fmt.Errorf("%w: exam, subject and chapter are required", internalerr.ErrInvalidInput)
	}
	if len(e.Keywords) == 0 {
		return fmt.Errorf("%w: at least one keyword is required", internalerr.ErrInvalidInput)
	}
	return nil
}

// Version returns the curriculum version.
func (c *Curriculum) Version() int { return c.version }

// Entries returns a copy of all entries in declared order.
func (c *Curriculum) Entries() []Entry {
	return copyEntries(c.entries)
}

// Chapters returns the entries for an (exam, subject) pair in declared
// order. Lookup is exact; a missing pair yields nil.
func (c *Curriculum) Chapters(exam, subject string) []Entry {
	var out []Entry
	for _, e := range c.entries {
		if e.Exam == exam && e.Subject == subject {
			out = append(out, copyEntry(e))
		}
	}
	return out
}

// Exams returns the distinct exam names, sorted.
func (c *Curriculum) Exams() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range c.entries {
		if _, ok := seen[e.Exam]; !ok {
			seen[e.Exam] = struct{}{}
			out = append(out, e.Exam)
		}
	}
	sort.Strings(out)
	return out
}

// Subjects returns the distinct subject names for an exam, sorted.
func (c *Curriculum) Subjects(exam string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range c.entries {
		if e.Exam != exam {
			continue
		}
		if _, ok := seen[e.Subject]; !ok {
			seen[e.Subject] = struct{}{}
			out = append(out, e.Subject)
		}
	}
	sort.Strings(out)
	return out
}

// WithEntry returns a new curriculum with the entry added and the
// version incremented. An entry for the same (exam, subject, chapter)
// is replaced in place, keeping its tie-break position. The receiver
// is not modified.
func (c *Curriculum) WithEntry(e Entry) (*Curriculum, error) {
	if err := validateEntry(e); err != nil {
		return nil, err
	}
	entries := copyEntries(c.entries)
	replaced := false
	for i, old := range entries {
		if old.Exam == e.Exam && old.Subject == e.Subject && old.Chapter == e.Chapter {
			entries[i] = copyEntry(e)
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, copyEntry(e))
	}
	return &Curriculum{version: c.version + 1, entries: entries}, nil
}

func copyEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = copyEntry(e)
	}
	return out
}

func copyEntry(e Entry) Entry {
	cp := e
	cp.Keywords = append([]string(nil), e.Keywords...)
	cp.Topics = append([]string(nil), e.Topics...)
	return cp
}

// fileChapter is the YAML shape of one chapter.
type fileChapter struct {
	Chapter  string   `yaml:"chapter"`
	Keywords []string `yaml:"keywords"`
	Topics   []string `yaml:"topics"`
}

// file is the YAML shape of a curriculum file:
//
//	version: 1
//	exams:
//	  JEE_MAIN:
//	    Physics:
//	      - chapter: Thermodynamics
//	        keywords: [heat, entropy]
//	        topics: [Carnot Cycle]
type file struct {
	Version int                                 `yaml:"version"`
	Exams   map[string]map[string][]fileChapter `yaml:"exams"`
}

// Load reads a curriculum from a YAML file. Chapter order within each
// subject is taken from the file; exams and subjects are flattened in
// sorted order so the result is deterministic.
func Load(path string) (*Curriculum, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read curriculum: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse curriculum %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	if len(f.Exams) == 0 {
		return nil, fmt.Errorf("%w: curriculum %s declares no exams", internalerr.ErrInvalidConfig, path)
	}

	exams := make([]string, 0, len(f.Exams))
	for exam := range f.Exams {
		exams = append(exams, exam)
	}
	sort.Strings(exams)

	var entries []Entry
	for _, exam := range exams {
		subjects := make([]string, 0, len(f.Exams[exam]))
		for subject := range f.Exams[exam] {
			subjects = append(subjects, subject)
		}
		sort.Strings(subjects)
		for _, subject := range subjects {
			for _, ch := range f.Exams[exam][subject] {
				entries = append(entries, Entry{
					Exam:     exam,
					Subject:  subject,
					Chapter:  ch.Chapter,
					Keywords: ch.Keywords,
					Topics:   ch.Topics,
				})
			}
		}
	}

	cur, err := New(f.Version, entries)
	if err != nil {
		return nil, fmt.Errorf("%w: curriculum %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	return cur, nil
}
