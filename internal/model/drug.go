package model

import (
	"encoding/json"
)

// Section is one titled block of drug information within a tier.
type Section struct {
	Title   string   `json:"title"`
	Content []string `json:"content"`
}

// Drug is the shared, per-drug content document: one ordered section list
// per knowledge level, independent of any patient. Read-only to the portal;
// authored out of band.
type Drug struct {
	Base
	Slug                     string          `db:"slug" json:"slug"`
	Title                    string          `db:"title" json:"title"`
	Category                 string          `db:"category" json:"category"`
	TitleImage               string          `db:"title_image" json:"title_image"`
	BasicSectionsJSON        json.RawMessage `db:"basic_sections" json:"-"`
	IntermediateSectionsJSON json.RawMessage `db:"intermediate_sections" json:"-"`
	ExpertSectionsJSON       json.RawMessage `db:"expert_sections" json:"-"`
	BasicSections            []Section       `json:"basic_sections"`
	IntermediateSections     []Section       `json:"intermediate_sections"`
	ExpertSections           []Section       `json:"expert_sections"`
}

// DecodeDocument unpacks the per-level jsonb section columns.
func (d *Drug) DecodeDocument() error {
	for _, col := range []struct {
		raw  json.RawMessage
		dest *[]Section
	}{
		{d.BasicSectionsJSON, &d.BasicSections},
		{d.IntermediateSectionsJSON, &d.IntermediateSections},
		{d.ExpertSectionsJSON, &d.ExpertSections},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return err
		}
	}
	return nil
}

// SectionsFor returns the section list for a level. Unknown levels fall back
// to the basic tier.
func (d *Drug) SectionsFor(level KnowledgeLevel) []Section {
	switch MaxLevel(LevelBasic, level) {
	case LevelExpert:
		return d.ExpertSections
	case LevelIntermediate:
		return d.IntermediateSections
	default:
		return d.BasicSections
	}
}
