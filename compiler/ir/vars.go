package ir

type (
	VarID int

	// Vars interns variable names of one function.
	// Ids are dense and follow program order: params first, then bindings as they appear.
	Vars struct {
		names []string
		types []Type
		ids   map[string]VarID
	}
)

func NewVars() *Vars {
	return &Vars{
		ids: map[string]VarID{},
	}
}

// FuncVars interns the params and every binding of f.
func FuncVars(f *Func) *Vars {
	v := NewVars()

	for _, p := range f.Params {
		v.Add(p.Name, p.Of)
	}

	v.AddBlock(f.Body)

	return v
}

func (v *Vars) Add(name string, tp Type) VarID {
	if id, ok := v.ids[name]; ok {
		if v.types[id] != tp {
			Invariant("variable %q bound as %v and %v", name, v.types[id], tp)
		}

		return id
	}

	id := VarID(len(v.names))

	v.names = append(v.names, name)
	v.types = append(v.types, tp)
	v.ids[name] = id

	return id
}

func (v *Vars) AddBlock(b *Block) {
	if b == nil {
		return
	}

	for _, x := range b.Code {
		v.addExpr(x)
	}
}

func (v *Vars) addExpr(x Expr) {
	switch x := x.(type) {
	case Direct:
		v.addDirect(x)
	case Let:
		v.addExpr(x.Init)
		v.Add(x.Name, x.Init.Type())
	case Unary:
		v.addDirect(x.X)
	case Binary:
		v.addDirect(x.L)
		v.addDirect(x.R)
	case If:
		v.addDirect(x.Cond)
		v.AddBlock(x.Then)
		v.AddBlock(x.Else)
	default:
		Invariant("unexpected expression %T", x)
	}
}

func (v *Vars) addDirect(x Direct) {
	if x.IsVar() {
		v.Add(x.Var, x.Of)
	}
}

func (v *Vars) ID(name string) VarID {
	id, ok := v.ids[name]
	if !ok {
		Invariant("unknown variable %q", name)
	}

	return id
}

func (v *Vars) Lookup(name string) (VarID, bool) {
	id, ok := v.ids[name]
	return id, ok
}

func (v *Vars) Name(id VarID) string { return v.names[id] }
func (v *Vars) Type(id VarID) Type   { return v.types[id] }
func (v *Vars) Len() int             { return len(v.names) }

func (v *Vars) Names(ids []VarID) []string {
	r := make([]string, len(ids))

	for i, id := range ids {
		r[i] = v.names[id]
	}

	return r
}
