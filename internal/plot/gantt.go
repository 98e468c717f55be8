package plot

import (
	"context"
	"fmt"
	"log/slog"
)

// GanttEntry is one bar of the event timeline.
type GanttEntry struct {
	Variable string `json:"variable"`
	Category string `json:"category"`
	Task     string `json:"task"`
	Start    string `json:"start"`
	Finish   string `json:"finish"`
}

// GanttPayload is the complete Gantt timeline for a selection.
type GanttPayload struct {
	Entries []GanttEntry `json:"entries"`
}

// ganttDateLayout formats timeline endpoints for the renderer.
const ganttDateLayout = "2006-01-02"

// AssembleGantt builds the event timeline for the selected span
// variables. Variables without span files contribute nothing.
func (a *Assembler) AssembleGantt(ctx context.Context, variables []string) (*GanttPayload, error) {
	payload := &GanttPayload{}
	for _, v := range variables {
		spans, err := a.manual.LoadSpans(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("failed to load spans for %s: %w", v, err)
		}
		if len(spans) == 0 {
			a.logger.DebugContext(ctx, "gantt variable has no spans", slog.String("variable", v))
		}
		for _, s := range spans {
			payload.Entries = append(payload.Entries, GanttEntry{
				Variable: s.Variable,
				Category: s.Category,
				Task:     fmt.Sprintf("%s: %s", s.Variable, s.Category),
				Start:    s.Start.Format(ganttDateLayout),
				Finish:   s.Finish.Format(ganttDateLayout),
			})
		}
	}
	return payload, nil
}
