// Package bril implements the typed representation of BRIL programs:
// values, instructions, functions, and the JSON wire format they are
// read from and written back to.
package bril

import (
	"encoding/json"
	"fmt"
)

// Type is a BRIL type: a primitive or a parameterized pointer.
type Type interface {
	String() string
	isType()
}

type IntType struct{}
type BoolType struct{}
type FloatType struct{}
type CharType struct{}

// PtrType is BRIL's `ptr<T>`.
type PtrType struct {
	Elem Type
}

func (IntType) String() string   { return "int" }
func (BoolType) String() string  { return "bool" }
func (FloatType) String() string { return "float" }
func (CharType) String() string  { return "char" }
func (p PtrType) String() string { return fmt.Sprintf("ptr<%s>", p.Elem) }

func (IntType) isType()   {}
func (BoolType) isType()  {}
func (FloatType) isType() {}
func (CharType) isType()  {}
func (PtrType) isType()   {}

// TypesEqual reports whether a and b denote the same BRIL type.
func TypesEqual(a, b Type) bool {
	switch av := a.(type) {
	case IntType:
		_, ok := b.(IntType)
		return ok
	case BoolType:
		_, ok := b.(BoolType)
		return ok
	case FloatType:
		_, ok := b.(FloatType)
		return ok
	case CharType:
		_, ok := b.(CharType)
		return ok
	case PtrType:
		bv, ok := b.(PtrType)
		return ok && TypesEqual(av.Elem, bv.Elem)
	default:
		return false
	}
}

// ParseType decodes a BRIL type from its JSON encoding: either the
// bare string "int"/"bool"/"float"/"char", or the single-key object
// {"ptr": <type>}.
func ParseType(raw json.RawMessage) (Type, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		switch name {
		case "int":
			return IntType{}, nil
		case "bool":
			return BoolType{}, nil
		case "float":
			return FloatType{}, nil
		case "char":
			return CharType{}, nil
		default:
			return nil, fmt.Errorf("unknown primitive type %q", name)
		}
	}

	var obj struct {
		Ptr json.RawMessage `json:"ptr"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("malformed type: %w", err)
	}
	if obj.Ptr == nil {
		return nil, fmt.Errorf("malformed type object, expected {\"ptr\": ...}")
	}
	elem, err := ParseType(obj.Ptr)
	if err != nil {
		return nil, fmt.Errorf("ptr element: %w", err)
	}
	return PtrType{Elem: elem}, nil
}

// EncodeType produces the JSON encoding of t per the rules ParseType decodes.
func EncodeType(t Type) (json.RawMessage, error) {
	switch v := t.(type) {
	case IntType:
		return json.Marshal("int")
	case BoolType:
		return json.Marshal("bool")
	case FloatType:
		return json.Marshal("float")
	case CharType:
		return json.Marshal("char")
	case PtrType:
		elem, err := EncodeType(v.Elem)
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			Ptr json.RawMessage `json:"ptr"`
		}{Ptr: elem})
	default:
		return nil, fmt.Errorf("unknown type %T", t)
	}
}
