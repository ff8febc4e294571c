package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Blocking pass findings
	BlkInfo                Code = 1000
	BlkGlueNotPackUnpack   Code = 1001 // glue with mixed types left for a later stage
	BlkContractionMismatch Code = 1002 // dpas operand tiles disagree, op left as is
	BlkWorkgroupLayout     Code = 1003 // value still distributed across subgroups
	BlkGlueStillUsed       Code = 1004 // input-less glue whose results are still read
	BlkNoTileShape         Code = 1005

	// Pipeline failures
	PipeInfo           Code = 2000
	PipeInvariant      Code = 2001
	PipeNoConvergence  Code = 2002
	PipeVerifyFailed   Code = 2003
	PipeNeedsUnrolling Code = 2004
	PipeTimings        Code = 2005

	// Input / configuration
	IOInfo        Code = 3000
	IOLoadFailed  Code = 3001
	IOBadConfig   Code = 3002
	IOWriteFailed Code = 3003
)

var (
	codeDescription = map[Code]string{
		UnknownCode:            "Unknown error",
		BlkInfo:                "Blocking information",
		BlkGlueNotPackUnpack:   "Glue op is not a pack or unpack",
		BlkContractionMismatch: "Contraction tile shapes do not agree",
		BlkWorkgroupLayout:     "Workgroup-level layout left for distribution",
		BlkGlueStillUsed:       "Glue op without inputs is still used",
		BlkNoTileShape:         "No tile shape could be resolved",
		PipeInfo:               "Pipeline information",
		PipeInvariant:          "Internal invariant violated",
		PipeNoConvergence:      "Rewrites did not reach a fixpoint",
		PipeVerifyFailed:       "IR verification failed",
		PipeNeedsUnrolling:     "Op still needs unrolling after the pass",
		PipeTimings:            "Pass timings",
		IOInfo:                 "I/O information",
		IOLoadFailed:           "Could not load unit",
		IOBadConfig:            "Invalid configuration",
		IOWriteFailed:          "Could not write output",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("BLK%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("PIPE%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("IO%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
