package bril

import (
	"encoding/json"
	"fmt"
)

// Program is an ordered sequence of functions plus any opaque imports
// from the source file, preserved verbatim.
type Program struct {
	Functions []*Function
	Imports   []string
}

// Param is a function's formal parameter.
type Param struct {
	Name string
	Type Type
}

// Function is a BRIL function. Items holds the linear on-disk body;
// the graph form lives in a cfg.Graph built from (and linearized back
// into) these Items, so a pass always sees exactly one of the two
// shapes at a time.
type Function struct {
	Name       string
	Args       []Param
	ReturnType Type // nil if the function returns nothing
	Items      []Item
}

// --- JSON codec -------------------------------------------------------

type programWire struct {
	Functions []*functionWire `json:"functions"`
	Imports   []string        `json:"imports,omitempty"`
}

type functionWire struct {
	Name   string          `json:"name"`
	Args   []paramWire     `json:"args,omitempty"`
	Type   json.RawMessage `json:"type,omitempty"`
	Instrs []Item          `json:"instrs"`
}

type paramWire struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

// ParseProgram decodes a Program from BRIL-JSON bytes.
func ParseProgram(data []byte) (*Program, error) {
	var w programWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("malformed BRIL-JSON: %w", err)
	}

	p := &Program{Imports: w.Imports}
	for _, fw := range w.Functions {
		fn := &Function{Name: fw.Name, Items: fw.Instrs}
		for _, aw := range fw.Args {
			t, err := ParseType(aw.Type)
			if err != nil {
				return nil, fmt.Errorf("function %q, arg %q: %w", fw.Name, aw.Name, err)
			}
			fn.Args = append(fn.Args, Param{Name: aw.Name, Type: t})
		}
		if fw.Type != nil {
			t, err := ParseType(fw.Type)
			if err != nil {
				return nil, fmt.Errorf("function %q return type: %w", fw.Name, err)
			}
			fn.ReturnType = t
		}
		p.Functions = append(p.Functions, fn)
	}
	return p, nil
}

// Encode serializes a Program back to BRIL-JSON.
func (p *Program) Encode() ([]byte, error) {
	w := programWire{Imports: p.Imports}
	for _, fn := range p.Functions {
		fw := &functionWire{Name: fn.Name, Instrs: fn.Items}
		if fw.Instrs == nil {
			fw.Instrs = []Item{}
		}
		for _, a := range fn.Args {
			enc, err := EncodeType(a.Type)
			if err != nil {
				return nil, fmt.Errorf("function %q, arg %q: %w", fn.Name, a.Name, err)
			}
			fw.Args = append(fw.Args, paramWire{Name: a.Name, Type: enc})
		}
		if fn.ReturnType != nil {
			enc, err := EncodeType(fn.ReturnType)
			if err != nil {
				return nil, fmt.Errorf("function %q return type: %w", fn.Name, err)
			}
			fw.Type = enc
		}
		w.Functions = append(w.Functions, fw)
	}
	if w.Functions == nil {
		w.Functions = []*functionWire{}
	}
	return json.Marshal(w)
}

// FunctionNamed returns the function with the given name, if any.
func (p *Program) FunctionNamed(name string) *Function {
	for _, fn := range p.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}
