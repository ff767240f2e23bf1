package thicket

import (
	"time"
)

// FrameStats holds per-frame timing and bind metrics.
type FrameStats struct {
	Nodes       int // bin entries after compaction
	Visible     int
	Opaque      int
	Transparent int
	Compacted   int // destroyed nodes removed from the bin this frame

	ProgramBinds  int
	TextureBinds  int
	GeometryBinds int
	Draws         int

	Resorted bool
	SortTime time.Duration
	WalkTime time.Duration
}

// debugLog logs a frame's statistics at debug level.
func (r *Renderer) debugLog(id SceneID, st FrameStats) {
	r.log.Debug("frame",
		"scene", id,
		"nodes", st.Nodes,
		"visible", st.Visible,
		"opaque", st.Opaque,
		"transparent", st.Transparent,
		"compacted", st.Compacted,
		"program_binds", st.ProgramBinds,
		"texture_binds", st.TextureBinds,
		"geometry_binds", st.GeometryBinds,
		"draws", st.Draws,
		"resorted", st.Resorted,
		"sort", st.SortTime,
		"walk", st.WalkTime,
	)
}
