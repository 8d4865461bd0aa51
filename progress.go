package ziphuff

import "fmt"

// Op names the operation a Progress event belongs to.
type Op string

const (
	OpCompress Op = "compress"
	OpExtract  Op = "extract"
)

// Stage is one phase of an operation.
type Stage int

const (
	StageCount Stage = iota
	StageBuild
	StageEncode
	StageSerialize
	StageDeserialize
	StageDecode
)

func (s Stage) String() string {
	switch s {
	case StageCount:
		return "counting"
	case StageBuild:
		return "building"
	case StageEncode:
		return "encoding"
	case StageSerialize:
		return "serializing"
	case StageDeserialize:
		return "deserializing"
	case StageDecode:
		return "decoding"
	default:
		return "???"
	}
}

// stageSpans places each stage on the [0, 1] scale of its operation.
var stageSpans = map[Op][]struct {
	stage     Stage
	from, len float64
}{
	OpCompress: {
		{StageCount, 0, 0.30},
		{StageBuild, 0.30, 0.05},
		{StageEncode, 0.35, 0.55},
		{StageSerialize, 0.90, 0.10},
	},
	OpExtract: {
		{StageDeserialize, 0, 0.20},
		{StageDecode, 0.20, 0.80},
	},
}

// Progress is one observation of a running operation: Done of Total units of Stage are finished.
type Progress struct {
	Op    Op
	Stage Stage
	Done  int
	Total int
}

// Fraction maps the event onto [0, 1] for the whole operation.
func (p Progress) Fraction() float64 {
	for _, span := range stageSpans[p.Op] {
		if span.stage != p.Stage {
			continue
		}
		f := 1.0
		if p.Total > 0 {
			f = float64(p.Done) / float64(p.Total)
		}
		return span.from + span.len*f
	}
	return 0
}

func (p Progress) String() string {
	return fmt.Sprintf("%s: %s %d/%d (%.0f%%)", p.Op, p.Stage, p.Done, p.Total, 100*p.Fraction())
}

// report sends an event without blocking.
func report(ch chan<- Progress, op Op, stage Stage, done, total int) {
	if ch == nil {
		return
	}
	select {
	case ch <- Progress{Op: op, Stage: stage, Done: done, Total: total}:
	default:
	}
}
