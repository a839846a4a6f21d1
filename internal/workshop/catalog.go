// Package workshop holds the tool catalog and the sequential unlock rules.
package workshop

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/RepairWorkshop/internal/geom"
	"github.com/AaronLay10/RepairWorkshop/internal/level"
	"github.com/AaronLay10/RepairWorkshop/internal/repair"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// Tool is one repairable device in the workshop, in unlock order.
type Tool struct {
	ID       string
	Name     string
	Icon     string
	Elements []level.Element
}

// BrokenCount returns the number of elements that need repair.
func (t Tool) BrokenCount() int {
	n := 0
	for _, el := range t.Elements {
		if el.Broken {
			n++
		}
	}
	return n
}

// Catalog is the ordered list of tools.
type Catalog struct {
	Tools []Tool
}

// Tool looks up a tool by id.
func (c *Catalog) Tool(id string) (Tool, bool) {
	for _, t := range c.Tools {
		if t.ID == id {
			return t, true
		}
	}
	return Tool{}, false
}

type catalogFile struct {
	Version int       `yaml:"version"`
	Tools   []toolDoc `yaml:"tools"`
}

type toolDoc struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	Icon     string       `yaml:"icon"`
	Elements []elementDoc `yaml:"elements"`
}

type elementDoc struct {
	ID       string     `yaml:"id"`
	Name     string     `yaml:"name"`
	Position geom.Point `yaml:"position"`
	Size     geom.Size  `yaml:"size"`
	Repair   *repairDoc `yaml:"repair"`
}

type repairDoc struct {
	Kind      string       `yaml:"kind"`
	Taps      int          `yaml:"taps"`
	Start     geom.Point   `yaml:"start"`
	End       geom.Point   `yaml:"end"`
	Prompt    string       `yaml:"prompt"`
	Answer    *int         `yaml:"answer"`
	Seconds   float64      `yaml:"seconds"`
	Waypoints []geom.Point `yaml:"waypoints"`
}

// LoadCatalog reads a catalog.yaml file.
func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(b)
}

// DefaultCatalog returns the built-in six-tool catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// ParseCatalog decodes and validates a version 1 catalog. Missing tool and
// element ids are filled with random UUIDs.
func ParseCatalog(b []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	if f.Version != 1 {
		return nil, fmt.Errorf("unsupported catalog version: %d", f.Version)
	}
	if len(f.Tools) == 0 {
		return nil, fmt.Errorf("catalog has no tools")
	}

	cat := &Catalog{Tools: make([]Tool, 0, len(f.Tools))}
	seen := make(map[string]bool, len(f.Tools))
	for i, td := range f.Tools {
		if td.Name == "" {
			return nil, fmt.Errorf("tool %d has no name", i)
		}
		id := td.ID
		if id == "" {
			id = uuid.NewString()
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate tool id %s", id)
		}
		seen[id] = true

		tool := Tool{ID: id, Name: td.Name, Icon: td.Icon}
		elementIDs := make(map[string]bool, len(td.Elements))
		for j, ed := range td.Elements {
			el, err := ed.element()
			if err != nil {
				return nil, fmt.Errorf("tool %s element %d: %w", id, j, err)
			}
			if elementIDs[el.ID] {
				return nil, fmt.Errorf("tool %s: duplicate element id %s", id, el.ID)
			}
			elementIDs[el.ID] = true
			tool.Elements = append(tool.Elements, el)
		}
		if tool.BrokenCount() == 0 {
			return nil, fmt.Errorf("tool %s has nothing to repair", id)
		}
		cat.Tools = append(cat.Tools, tool)
	}
	return cat, nil
}

func (ed elementDoc) element() (level.Element, error) {
	el := level.Element{
		ID:       ed.ID,
		Name:     ed.Name,
		Position: ed.Position,
		Size:     ed.Size,
	}
	if el.ID == "" {
		el.ID = uuid.NewString()
	}
	if ed.Repair == nil {
		return el, nil
	}
	spec, err := ed.Repair.spec()
	if err != nil {
		return el, err
	}
	if err := spec.Validate(); err != nil {
		return el, err
	}
	el.Broken = true
	el.Spec = spec
	return el, nil
}

func (rd repairDoc) spec() (repair.Spec, error) {
	switch repair.Kind(rd.Kind) {
	case repair.KindTapCount:
		return repair.TapCount{Required: rd.Taps}, nil
	case repair.KindConnection:
		return repair.Connection{Start: rd.Start, End: rd.End}, nil
	case repair.KindLogicAnswer:
		if rd.Answer != nil {
			return repair.LogicAnswer{Prompt: rd.Prompt, Answer: *rd.Answer}, nil
		}
		answer, err := EvalAnswer(rd.Prompt)
		if err != nil {
			return nil, err
		}
		return repair.LogicAnswer{Prompt: rd.Prompt, Answer: answer}, nil
	case repair.KindHoldDuration:
		return repair.HoldDuration{Seconds: rd.Seconds}, nil
	case repair.KindPathFollow:
		return repair.PathFollow{Waypoints: rd.Waypoints}, nil
	default:
		return nil, fmt.Errorf("unknown repair kind %q", rd.Kind)
	}
}

// EvalAnswer computes the integer answer of an arithmetic prompt such as "2 + 2".
// The player-facing operators × and ÷ are accepted.
func EvalAnswer(prompt string) (int, error) {
	src := strings.NewReplacer("×", "*", "÷", "/").Replace(strings.TrimSpace(prompt))
	if src == "" {
		return 0, fmt.Errorf("logic prompt is empty")
	}
	if v, err := strconv.Atoi(src); err == nil {
		return v, nil
	}

	program, err := expr.Compile(src)
	if err != nil {
		return 0, fmt.Errorf("failed to compile prompt '%s': %w", prompt, err)
	}
	result, err := expr.Run(program, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to evaluate prompt '%s': %w", prompt, err)
	}

	switch v := result.(type) {
	case int:
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("prompt '%s' has a non-integer answer %v", prompt, v)
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			return 0, fmt.Errorf("prompt '%s' has an answer out of range: %v", prompt, v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("prompt '%s' is not arithmetic: %v", prompt, result)
	}
}
