package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKnowledgeLevelRank(t *testing.T) {
	assert.Equal(t, 1, LevelBasic.Rank())
	assert.Equal(t, 2, LevelIntermediate.Rank())
	assert.Equal(t, 3, LevelExpert.Rank())
	assert.Equal(t, 0, KnowledgeLevel("guru").Rank())
	assert.Equal(t, 0, KnowledgeLevel("").Rank())
}

func TestKnowledgeLevelRankIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, 2, KnowledgeLevel("Intermediate").Rank())
	assert.Equal(t, 3, KnowledgeLevel("EXPERT").Rank())
}

func TestKnowledgeLevelValid(t *testing.T) {
	assert.True(t, LevelBasic.Valid())
	assert.True(t, KnowledgeLevel("Expert").Valid())
	assert.False(t, KnowledgeLevel("").Valid())
	assert.False(t, KnowledgeLevel("advanced").Valid())
}

func TestKnowledgeLevelTitle(t *testing.T) {
	assert.Equal(t, "Basic", LevelBasic.Title())
	assert.Equal(t, "Intermediate", KnowledgeLevel("INTERMEDIATE").Title())
	assert.Equal(t, "", KnowledgeLevel("").Title())
}

func TestParseKnowledgeLevel(t *testing.T) {
	level, err := ParseKnowledgeLevel("  Expert ")
	assert.NoError(t, err)
	assert.Equal(t, LevelExpert, level)

	_, err = ParseKnowledgeLevel("master")
	assert.Error(t, err)

	_, err = ParseKnowledgeLevel("")
	assert.Error(t, err)
}

func TestMaxLevel(t *testing.T) {
	assert.Equal(t, LevelExpert, MaxLevel(LevelBasic, LevelExpert))
	assert.Equal(t, LevelExpert, MaxLevel(LevelExpert, LevelBasic))
	assert.Equal(t, LevelIntermediate, MaxLevel(LevelIntermediate, LevelIntermediate))
	// Ties keep the first argument, which matters when only one side is
	// canonically cased.
	assert.Equal(t, LevelBasic, MaxLevel(LevelBasic, KnowledgeLevel("Basic")))
}

func TestPendingRequestStates(t *testing.T) {
	var none PendingRequest
	assert.False(t, none.IsPending())
	assert.False(t, none.IsResolved())

	pending := PendingRequest{RequestedLevel: LevelExpert, Status: RequestStatusPending}
	assert.True(t, pending.IsPending())
	assert.False(t, pending.IsResolved())

	accepted := PendingRequest{RequestedLevel: LevelExpert, Status: RequestStatusAccepted, Message: "ok"}
	assert.False(t, accepted.IsPending())
	assert.True(t, accepted.IsResolved())

	denied := PendingRequest{RequestedLevel: LevelExpert, Status: RequestStatusDenied, Message: "not yet"}
	assert.True(t, denied.IsResolved())
}

func TestMedicationRecordDocumentRoundTrip(t *testing.T) {
	record := &MedicationRecord{
		Title:                "Aspirin",
		CurrentLevel:         LevelBasic,
		HighestApprovedLevel: LevelIntermediate,
		PendingRequest:       PendingRequest{RequestedLevel: LevelExpert, Status: RequestStatusPending},
		DetailsRecap:         DetailsRecap{Dosage: "100mg", Modality: "oral"},
		DoseTimes:            []string{"08:00", "20:00"},
	}

	assert.NoError(t, record.EncodeDocument())

	decoded := &MedicationRecord{
		PendingRequestJSON: record.PendingRequestJSON,
		DetailsRecapJSON:   record.DetailsRecapJSON,
		DoseTimesJSON:      record.DoseTimesJSON,
	}
	assert.NoError(t, decoded.DecodeDocument())
	assert.Equal(t, record.PendingRequest, decoded.PendingRequest)
	assert.Equal(t, record.DetailsRecap, decoded.DetailsRecap)
	assert.Equal(t, record.DoseTimes, decoded.DoseTimes)
}

func TestDrugSectionsFor(t *testing.T) {
	drug := &Drug{
		BasicSections:        []Section{{Title: "What it is"}},
		IntermediateSections: []Section{{Title: "How it works"}},
		ExpertSections:       []Section{{Title: "Pharmacokinetics"}},
	}

	assert.Equal(t, "What it is", drug.SectionsFor(LevelBasic)[0].Title)
	assert.Equal(t, "How it works", drug.SectionsFor(LevelIntermediate)[0].Title)
	assert.Equal(t, "Pharmacokinetics", drug.SectionsFor(LevelExpert)[0].Title)

	// Unknown levels fall back to the basic tier.
	assert.Equal(t, "What it is", drug.SectionsFor(KnowledgeLevel("bogus"))[0].Title)
}
