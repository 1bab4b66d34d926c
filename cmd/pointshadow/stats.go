package main

import (
	"io"

	"github.com/aquasecurity/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/graph"
)

// writeStats prints cache and frame statistics as a table.
func writeStats(w io.Writer, st framegraph.Stats, fs graph.FrameStats) {
	p := message.NewPrinter(language.English)
	num := func(v any) string { return p.Sprintf("%d", v) }

	tbl := table.New(w)
	tbl.SetBorders(false)
	tbl.SetHeaders("Cache", "Hits", "Misses", "Live")
	tbl.AddRow("shaders", num(st.Shaders.Hits), num(st.Shaders.Misses), num(st.Shaders.Modules))
	tbl.AddRow("pipelines", num(st.Pipelines.Hits), num(st.Pipelines.Misses), num(st.Pipelines.Pipelines))
	tbl.AddRow("bind groups", num(st.Bindings.Hits), num(st.Bindings.Misses), num(st.Bindings.Groups))
	tbl.Render()

	tbl = table.New(w)
	tbl.SetBorders(false)
	tbl.SetHeaders("Frames", "Passes", "Draws", "Resizes", "Images")
	tbl.AddRow(num(fs.Frames), num(fs.Passes), num(fs.Draws), num(fs.Resizes), num(fs.Images))
	tbl.Render()
}
