package api

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v2"
)

var (
	defaultItemCoordinates  = Coordinates{X: 100, Y: 100}
	defaultStartCoordinates = Coordinates{X: 500, Y: 100}
)

// GraphModel is the serialized, read-only description of a graph used by
// visualization tools and the model API. It carries no executable state.
type GraphModel struct {
	Name        string            `json:"name" yaml:"name"`
	Payload     PayloadModel      `json:"payload" yaml:"payload"`
	StartPoint  StartPointModel   `json:"startPoint" yaml:"startPoint"`
	Processors  []ProcessorModel  `json:"processors" yaml:"processors"`
	Subgraphs   []SubgraphModel   `json:"subgraphs" yaml:"subgraphs"`
	MergePoints []MergePointModel `json:"mergePoints" yaml:"mergePoints"`
	MergeGroups []MergeGroupModel `json:"mergeGroups" yaml:"mergeGroups"`
}

type PayloadModel struct {
	Name string   `json:"name" yaml:"name"`
	Type string   `json:"type" yaml:"type"`
	Docs []string `json:"docs,omitempty" yaml:"docs,omitempty"`
}

type StartPointModel struct {
	Coordinates     Coordinates `json:"coordinates" yaml:"coordinates"`
	ProcessingItems []string    `json:"processingItems" yaml:"processingItems"`
}

type ArgModel struct {
	Index int    `json:"index" yaml:"index"`
	Type  string `json:"type" yaml:"type"`
	Copy  bool   `json:"copy" yaml:"copy"`
}

type ProcessorModel struct {
	Identity    string      `json:"identity" yaml:"identity"`
	Title       string      `json:"title,omitempty" yaml:"title,omitempty"`
	Docs        []string    `json:"docs,omitempty" yaml:"docs,omitempty"`
	Args        []ArgModel  `json:"args,omitempty" yaml:"args,omitempty"`
	Detached    bool        `json:"detached" yaml:"detached"`
	Coordinates Coordinates `json:"coordinates" yaml:"coordinates"`
	Provenance  string      `json:"provenance,omitempty" yaml:"provenance,omitempty"`
}

type SubgraphModel struct {
	Identity    string      `json:"identity" yaml:"identity"`
	Title       string      `json:"title,omitempty" yaml:"title,omitempty"`
	Docs        []string    `json:"docs,omitempty" yaml:"docs,omitempty"`
	Payload     string      `json:"payload" yaml:"payload"`
	Detached    bool        `json:"detached" yaml:"detached"`
	Coordinates Coordinates `json:"coordinates" yaml:"coordinates"`
	Provenance  string      `json:"provenance,omitempty" yaml:"provenance,omitempty"`
}

type MergePointModel struct {
	Identity    string            `json:"identity" yaml:"identity"`
	Detached    bool              `json:"detached" yaml:"detached"`
	Title       string            `json:"title,omitempty" yaml:"title,omitempty"`
	Docs        []string          `json:"docs,omitempty" yaml:"docs,omitempty"`
	Coordinates Coordinates       `json:"coordinates" yaml:"coordinates"`
	Transitions []TransitionModel `json:"transitions" yaml:"transitions"`
}

type TransitionModel struct {
	Statuses            []string     `json:"statuses,omitempty" yaml:"statuses,omitempty"`
	OnAny               bool         `json:"isOnAny" yaml:"isOnAny"`
	Complete            bool         `json:"isComplete" yaml:"isComplete"`
	Merge               string       `json:"merge,omitempty" yaml:"merge,omitempty"`
	HandleBy            string       `json:"handleBy,omitempty" yaml:"handleBy,omitempty"`
	CompleteCoordinates *Coordinates `json:"completeCoordinates,omitempty" yaml:"completeCoordinates,omitempty"`
}

type MergeGroupModel struct {
	MergePoints        []string `json:"mergePoints" yaml:"mergePoints"`
	IncludesStartPoint bool     `json:"includesStartPoint" yaml:"includesStartPoint"`
}

// Model serializes the graph topology and its documentation.
func (g *Graph) Model() GraphModel {
	m := GraphModel{
		Name: g.name,
		Payload: PayloadModel{
			Name: g.name,
			Docs: g.PayloadDocs(),
		},
		StartPoint: StartPointModel{
			Coordinates:     coordsOr(g.start.Coordinates, defaultStartCoordinates),
			ProcessingItems: identityStrings(g.start.Items),
		},
		Processors:  []ProcessorModel{},
		Subgraphs:   []SubgraphModel{},
		MergePoints: []MergePointModel{},
		MergeGroups: []MergeGroupModel{},
	}
	if g.payloadType != nil {
		m.Payload.Type = g.payloadType.String()
	}

	for _, it := range g.items {
		switch it.Identity.Kind {
		case KindProcessor:
			pm := ProcessorModel{
				Identity:    it.Identity.String(),
				Title:       it.Title,
				Docs:        it.Docs,
				Detached:    it.Merger == nil,
				Coordinates: coordsOr(it.Coordinates, defaultItemCoordinates),
				Provenance:  it.Provenance,
			}
			for _, a := range it.Args {
				pm.Args = append(pm.Args, ArgModel(a))
			}
			m.Processors = append(m.Processors, pm)
		case KindSubgraph:
			sm := SubgraphModel{
				Identity:    it.Identity.String(),
				Title:       it.Title,
				Docs:        it.Docs,
				Payload:     it.Identity.Type,
				Detached:    it.Merger == nil,
				Coordinates: coordsOr(it.Coordinates, defaultItemCoordinates),
				Provenance:  it.Provenance,
			}
			if it.ChildPayload != nil {
				sm.Payload = it.ChildPayload.String()
			}
			m.Subgraphs = append(m.Subgraphs, sm)
		}
	}

	for _, mp := range g.mergePoints {
		var it ProcessingItem
		if i, ok := g.byID[mp.Owner]; ok {
			it = g.items[i]
		}
		mm := MergePointModel{
			Identity:    mp.Owner.String(),
			Detached:    mp.Owner.Kind == KindMergePoint,
			Title:       it.MergerTitle,
			Docs:        it.MergerDocs,
			Coordinates: coordsOr(mp.Coordinates, defaultItemCoordinates),
			Transitions: []TransitionModel{},
		}
		if mm.Detached && mm.Title == "" {
			mm.Title = it.Title
		}
		for _, t := range mp.Transitions {
			tm := TransitionModel{
				OnAny:               t.OnAny,
				Complete:            t.IsComplete(),
				CompleteCoordinates: cloneCoords(t.CompleteCoordinates),
			}
			for _, s := range t.Statuses {
				tm.Statuses = append(tm.Statuses, string(s))
			}
			switch t.Action {
			case ActionMerge:
				tm.Merge = t.Target.String()
			case ActionHandleBy:
				tm.HandleBy = t.Target.String()
			}
			if tm.Complete && tm.CompleteCoordinates == nil {
				c := coordsOr(mp.Coordinates, defaultItemCoordinates)
				c.Y += 100
				tm.CompleteCoordinates = &c
			}
			mm.Transitions = append(mm.Transitions, tm)
		}
		m.MergePoints = append(m.MergePoints, mm)
	}

	for _, grp := range g.groups {
		m.MergeGroups = append(m.MergeGroups, MergeGroupModel{
			MergePoints:        identityStrings(grp.Members),
			IncludesStartPoint: g.IncludesStartPoint(grp),
		})
	}
	return m
}

// Link is one edge of the rendered topology.
type Link struct {
	From  string
	To    string
	Label string
}

// Completion is the pseudo identity used for complete transitions in Links.
const Completion = "complete"

// Links rebuilds the declared flows from the model alone: start point flows
// and transitions. The flow from a handler to its own merge point is implied.
func (m GraphModel) Links() []Link {
	var out []Link
	for _, id := range m.StartPoint.ProcessingItems {
		label := string(ActionHandleBy)
		if parsed, err := ParseIdentity(id); err == nil && parsed.Kind == KindMergePoint {
			label = string(ActionMerge)
		}
		out = append(out, Link{From: "start", To: id, Label: label})
	}
	for _, mp := range m.MergePoints {
		for _, t := range mp.Transitions {
			l := Link{From: mp.Identity, Label: t.label()}
			switch {
			case t.Complete:
				l.To = Completion
			case t.Merge != "":
				l.To = t.Merge
			default:
				l.To = t.HandleBy
			}
			out = append(out, l)
		}
	}
	return out
}

func (t TransitionModel) label() string {
	action := string(ActionHandleBy)
	switch {
	case t.Complete:
		action = string(ActionComplete)
	case t.Merge != "":
		action = string(ActionMerge)
	}
	if t.OnAny {
		return "any:" + action
	}
	return fmt.Sprintf("%v:%s", t.Statuses, action)
}

// ToJSON renders the model as indented JSON.
func (m GraphModel) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ToYAML renders the model as YAML.
func (m GraphModel) ToYAML() ([]byte, error) {
	return yaml.Marshal(m)
}

// ModelFromJSON parses a model produced by ToJSON.
func ModelFromJSON(data []byte) (GraphModel, error) {
	var m GraphModel
	if err := json.Unmarshal(data, &m); err != nil {
		return GraphModel{}, fmt.Errorf("decode graph model: %w", err)
	}
	return m, nil
}

// ModelFromYAML parses a model produced by ToYAML.
func ModelFromYAML(data []byte) (GraphModel, error) {
	var m GraphModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return GraphModel{}, fmt.Errorf("decode graph model: %w", err)
	}
	return m, nil
}

func identityStrings(ids []Identity) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func coordsOr(c *Coordinates, def Coordinates) Coordinates {
	if c == nil {
		return def
	}
	return *c
}
