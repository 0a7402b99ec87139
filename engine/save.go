package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/writewhisker/whisker-core/internal/logging"
	"github.com/writewhisker/whisker-core/plugin"
	"github.com/writewhisker/whisker-core/rterr"
	"github.com/writewhisker/whisker-core/story"
)

// Bundle is the opaque save-file shape of spec §4.8/§6:
// version/story_ifid/current_passage_id/variables/visited/plugin_data/timestamp.
type Bundle map[string]interface{}

const bundleVersion = 1

// Save snapshots the current GameState into a Bundle, running it through
// any on_save transform hooks before returning it to the host.
func (e *Engine) Save() (Bundle, error) {
	if e.gs == nil {
		return nil, fmt.Errorf("engine: not started")
	}
	visited := make(map[string]int, len(e.gs.Visited))
	for k, v := range e.gs.Visited {
		visited[k] = v
	}
	pluginData := make(map[string]interface{}, len(e.gs.PluginData))
	for k, v := range e.gs.PluginData {
		pluginData[k] = story.EncodeValue(v)
	}
	bundle := Bundle{
		"version":            bundleVersion,
		"story_ifid":         e.story.MetaInfo.IFID,
		"current_passage_id": e.gs.CurrentPassageID,
		"variables":          story.EncodeValue(e.gs.Variables),
		"visited":            visited,
		"plugin_data":        pluginData,
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	}
	transformed := e.transform(plugin.HookSave, map[string]interface{}(bundle))
	if b, ok := transformed.(map[string]interface{}); ok {
		return Bundle(b), nil
	}
	return bundle, nil
}

// LoadOptions controls Load's IFID-mismatch handling.
type LoadOptions struct {
	AllowIFIDMismatch bool
}

// Load restores a GameState from bundle, rejecting a mismatched
// story_ifid unless opts.AllowIFIDMismatch is set (spec §4.8).
func (e *Engine) Load(bundle Bundle, opts LoadOptions) error {
	transformed := e.transform(plugin.HookLoad, map[string]interface{}(bundle))
	if b, ok := transformed.(map[string]interface{}); ok {
		bundle = Bundle(b)
	}

	ifid, _ := bundle["story_ifid"].(string)
	if !opts.AllowIFIDMismatch && ifid != "" && ifid != e.story.MetaInfo.IFID {
		return rterr.New(rterr.TypeMismatch, "save bundle story_ifid does not match this story")
	}

	gs := newGameState(e.story.Variables)
	if passageID, ok := bundle["current_passage_id"].(string); ok {
		gs.CurrentPassageID = passageID
	}
	if raw, ok := bundle["variables"]; ok {
		vars, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("engine: load variables: %w", err)
		}
		gs.Variables = vars
	}
	switch visited := bundle["visited"].(type) {
	case map[string]int:
		for k, v := range visited {
			gs.Visited[k] = v
		}
	case map[string]interface{}:
		for k, v := range visited {
			if n, ok := v.(float64); ok {
				gs.Visited[k] = int(n)
			}
		}
	}
	if pd, ok := bundle["plugin_data"].(map[string]interface{}); ok {
		for k, raw := range pd {
			v, err := decodeValue(raw)
			if err != nil {
				return fmt.Errorf("engine: load plugin_data[%s]: %w", k, err)
			}
			gs.PluginData[k] = v
		}
	}
	e.gs = gs
	e.undo.reset()
	e.state = StateRunning
	return nil
}

// decodeValue recovers a story.Value from whatever shape Save's
// JSON-safe encoding arrives back as: a json.RawMessage when the bundle
// never left memory, or a generic map[string]interface{}/[]interface{}
// once a host has round-tripped the bundle through encoding/json (spec
// §4.8/§6 require save bundles to be stand-alone JSON documents, so both
// paths must produce the same Value).
func decodeValue(v interface{}) (story.Value, error) {
	switch t := v.(type) {
	case story.Value:
		return t, nil
	case json.RawMessage:
		return story.DecodeValue(t)
	case []byte:
		return story.DecodeValue(t)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return story.Nil, fmt.Errorf("engine: re-marshal value: %w", err)
		}
		return story.DecodeValue(raw)
	}
}

// maybeAutosave fires Save() according to the configured autosave
// policy; a write failure is never fatal (spec §9 open question c) — it
// is recorded to the audit trail and delivered as an on_error event so a
// host can choose to escalate.
func (e *Engine) maybeAutosave() {
	if e.cfg.AutosavePolicy == "" || e.cfg.AutosavePolicy == "off" {
		return
	}
	if e.autosave == nil {
		return
	}
	bundle, err := e.Save()
	if err != nil {
		e.reportAutosaveFailure(err)
		return
	}
	if err := e.autosave(bundle); err != nil {
		e.reportAutosaveFailure(err)
	}
}

func (e *Engine) reportAutosaveFailure(cause error) {
	logging.Audit.Record(logging.AuditEvent{
		EventType: logging.AuditAutosaveFailed,
		Message:   cause.Error(),
	})
	e.observe(plugin.HookError, rterr.New(rterr.AutosaveFailed, cause.Error()))
}
