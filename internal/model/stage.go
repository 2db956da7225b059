package model

// Stage is a step of the tender analysis state machine. Stages only move
// forward.
type Stage string

const (
	StageNew             Stage = "new"
	StageFilesNormalized Stage = "files_normalized"
	StageExtracted       Stage = "extracted"
	StageItemsEnriched   Stage = "items_enriched"
	StageReportGenerated Stage = "report_generated"
)

var stageOrder = map[Stage]int{
	StageNew:             0,
	StageFilesNormalized: 1,
	StageExtracted:       2,
	StageItemsEnriched:   3,
	StageReportGenerated: 4,
}

// AllStages returns the stages in transition order.
func AllStages() []Stage {
	return []Stage{
		StageNew,
		StageFilesNormalized,
		StageExtracted,
		StageItemsEnriched,
		StageReportGenerated,
	}
}

// Reached reports whether s is at or beyond target.
func (s Stage) Reached(target Stage) bool {
	return stageOrder[s] >= stageOrder[target]
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := stageOrder[s]
	return ok
}
