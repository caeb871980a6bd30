package pipeline

import "fmt"

// Stage names a step of the analysis.
type Stage string

const (
	StageBefore     Stage = "before"
	StageAfterImage Stage = "after_image"
	StageSynthesis  Stage = "synthesis"
	StageSuggest    Stage = "suggest"
)

// StageError reports which stage of a run failed. ImageIndex is 0-based and
// only meaningful for StageAfterImage.
type StageError struct {
	Stage      Stage
	ImageIndex int
	Err        error
}

func (e *StageError) Error() string {
	switch e.Stage {
	case StageBefore:
		return fmt.Sprintf("before image analysis failed: %v", e.Err)
	case StageAfterImage:
		return fmt.Sprintf("after image %d analysis failed: %v", e.ImageIndex+1, e.Err)
	case StageSynthesis:
		return fmt.Sprintf("verification synthesis failed: %v", e.Err)
	case StageSuggest:
		return fmt.Sprintf("task suggestion failed: %v", e.Err)
	default:
		return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
	}
}

func (e *StageError) Unwrap() error { return e.Err }
