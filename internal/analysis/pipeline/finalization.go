package pipeline

import "context"

// FinalizationStage is a marker: the executor assembles and persists the
// final result after the loop, so the stage body has nothing to do. It
// exists so progress reporting shows a distinct last step.
type FinalizationStage struct{}

func NewFinalizationStage() *FinalizationStage { return &FinalizationStage{} }

func (s *FinalizationStage) Name() string   { return "finalization" }
func (s *FinalizationStage) Status() string { return "Finalizing results" }
func (s *FinalizationStage) Required() bool { return true }

func (s *FinalizationStage) ShouldRun(*Context) bool { return true }

func (s *FinalizationStage) Execute(context.Context, *Context) error { return nil }
