package stream

import (
	"context"

	"github.com/crlotwhite/libetude-sub011/internal/plugin"
)

// StageResult is produced by a Stage invocation and released into the
// stream's output path.
type StageResult struct {
	Chunk *Chunk
	Err   error
}

// Stage is the pluggable processing function workers invoke for each
// popped chunk (SPEC_FULL.md §6.2). Implementations may consult the active
// plugin chain (internal/plugin) and the supplied quality scalar to decide
// how much work to spend on this chunk.
type Stage func(ctx context.Context, chunk *Chunk, quality float64) StageResult

// PassThroughStage is a trivial Stage used by tests and as a default when
// no processing stage has been configured.
func PassThroughStage(_ context.Context, chunk *Chunk, _ float64) StageResult {
	return StageResult{Chunk: chunk}
}

// NewChainStage builds a Stage that runs every chunk through chain's active
// plugin chain, the collaborator named by SPEC_FULL.md §2's data-flow
// description ("stage function that may consult C9 (active effect chain)").
// The produced chunk carries the input chunk's sequencing metadata forward;
// the input chunk is released once the chain has copied its samples.
func NewChainStage(chain *plugin.Chain) Stage {
	return func(ctx context.Context, chunk *Chunk, _ float64) StageResult {
		out, err := chain.ChainProcess(ctx, chunk.Samples, chunk.FrameCount)
		if err != nil {
			chunk.Release()
			return StageResult{Err: err}
		}
		result := &Chunk{
			Samples:        out,
			FrameCount:     chunk.FrameCount,
			ChannelCount:   chunk.ChannelCount,
			SampleRate:     chunk.SampleRate,
			SequenceNumber: chunk.SequenceNumber,
			SubmittedAt:    chunk.SubmittedAt,
			IsFinal:        chunk.IsFinal,
		}
		chunk.Release()
		return StageResult{Chunk: result}
	}
}
