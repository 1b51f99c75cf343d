package evaluator

import (
	"github.com/sambeau/koto/pkg/koto/ast"
)

// place is a storage location a variable expression resolves to: a bare
// binding, an element of a sequence, or the end of a sequence.
type place struct {
	name     string
	seq      *Sequence
	index    int
	appendTo bool
}

func (p place) get(env *Environment) Object {
	if p.seq == nil {
		val, _ := env.Get(p.name)
		return val
	}
	if p.appendTo {
		return NULL
	}
	return p.seq.Elements[p.index]
}

func (p place) set(env *Environment, val Object) {
	switch {
	case p.seq == nil:
		env.Set(p.name, val)
	case p.appendTo:
		p.seq.Elements = append(p.seq.Elements, val)
	default:
		p.seq.Elements[p.index] = val
	}
}

// resolvePlace walks the index chain of v. A `?` index picks a random
// element, except as the last index of a write, where it appends.
func resolvePlace(v *ast.Variable, write bool, rt *Runtime, env *Environment) (place, *Error) {
	current, ok := env.Get(v.Name)
	if !ok {
		return place{}, rt.newUndefinedError(v, "UNDEF-0001", v.Name, env)
	}
	if v.IsBare() {
		return place{name: v.Name}, nil
	}

	for i, indexExpr := range v.Indices {
		last := i == len(v.Indices)-1

		seq, ok := current.(*Sequence)
		if !ok {
			return place{}, rt.newError(v, "TYPE-0005", map[string]any{"Got": describe(current)})
		}

		indexVal := Eval(indexExpr, rt, env)
		if err, ok := indexVal.(*Error); ok {
			return place{}, err
		}

		var index int
		switch iv := indexVal.(type) {
		case *Null:
			if last && write {
				return place{seq: seq, appendTo: true}, nil
			}
			if len(seq.Elements) == 0 {
				return place{}, rt.newError(indexExpr, "INDEX-0002", map[string]any{"Index": "?"})
			}
			index = rt.randomIndex(len(seq.Elements))

		case *Integer:
			if len(seq.Elements) == 0 {
				return place{}, rt.newError(indexExpr, "INDEX-0002", map[string]any{"Index": iv.Inspect()})
			}
			if !iv.Value.IsInt64() || iv.Value.Sign() < 0 || iv.Value.Int64() >= int64(len(seq.Elements)) {
				return place{}, rt.newError(indexExpr, "INDEX-0001", map[string]any{
					"Index": iv.Inspect(),
					"Max":   len(seq.Elements) - 1,
				})
			}
			index = int(iv.Value.Int64())

		default:
			return place{}, rt.newError(indexExpr, "TYPE-0006", map[string]any{"Got": describe(indexVal)})
		}

		if last {
			return place{seq: seq, index: index}, nil
		}
		current = seq.Elements[index]
	}

	return place{}, nil
}
