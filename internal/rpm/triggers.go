package rpm

import (
	"context"

	"github.com/symboldb/symboldb/internal/rpm/rpmdb"
)

// TriggerCondition is one `(name op version)` clause of a trigger.
type TriggerCondition struct {
	Name    string
	Version string
	Flags   int32
}

// Trigger is one `%trigger*` script plus the conditions that arm it, grouped
// by TagTriggerIndex (the original implementation groups conditions by this
// index when a header holds several triggers, so we do too).
type Trigger struct {
	Script string
	Prog   []string
	Conditions []TriggerCondition
}

// triggers reads the trigger scripts and their conditions, grouping
// conditions into the trigger they belong to via TagTriggerIndex.
func triggers(ctx context.Context, h *rpmdb.Header) ([]Trigger, error) {
	se, ok := h.Find(rpmdb.TagTriggerScripts)
	if !ok {
		return nil, nil
	}
	sv, err := h.ReadData(ctx, se)
	if err != nil {
		return nil, err
	}
	scriptBodies := sv.([]string)

	progs := make([]string, len(scriptBodies))
	if pe, ok := h.Find(rpmdb.TagTriggerScriptProg); ok {
		pv, err := h.ReadData(ctx, pe)
		if err != nil {
			return nil, err
		}
		progs = pv.([]string)
	}

	out := make([]Trigger, len(scriptBodies))
	for i, body := range scriptBodies {
		prog := "/bin/sh"
		if i < len(progs) && progs[i] != "" {
			prog = progs[i]
		}
		out[i] = Trigger{Script: body, Prog: []string{prog}}
	}
	if len(out) == 0 {
		return nil, nil
	}

	names, versions, flags, ok, err := readTriple(ctx, h, rpmdb.TagTriggerName, rpmdb.TagTriggerVersion, rpmdb.TagTriggerFlags)
	if err != nil {
		return nil, err
	}
	if !ok {
		return out, nil
	}
	idxE, ok := h.Find(rpmdb.TagTriggerIndex)
	if !ok {
		return out, nil
	}
	idxV, err := h.ReadData(ctx, idxE)
	if err != nil {
		return nil, err
	}
	indexes := idxV.([]int32)

	for i, name := range names {
		if i >= len(indexes) {
			break
		}
		ti := int(indexes[i])
		if ti < 0 || ti >= len(out) {
			continue
		}
		out[ti].Conditions = append(out[ti].Conditions, TriggerCondition{
			Name:    name,
			Version: versions[i],
			Flags:   flags[i],
		})
	}
	return out, nil
}
