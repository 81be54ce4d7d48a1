package lowering

import "graphql-ir/internal/ir"

type irStats struct {
	rootFields int
	local      int
	remote     int
}

func collectStats(q *ir.QueryIR) irStats {
	var st irStats
	if q == nil {
		return st
	}
	q.RootFields.Each(func(_ string, root ir.RootField) {
		st.rootFields++
		switch r := root.(type) {
		case ir.RootModelSelectMany:
			st.model(r.Selection)
		case ir.RootModelSelectOne:
			st.model(r.Selection)
		case ir.RootModelAggregate:
			st.model(r.Selection)
		case ir.RootNode:
			st.model(r.Selection)
		case ir.RootCommand:
			st.command(r.Command)
		}
	})
	return st
}

func (st *irStats) model(m *ir.ModelSelection) {
	if m != nil {
		st.fields(m.Selection)
	}
}

func (st *irStats) command(c *ir.FunctionBasedCommand) {
	if c != nil {
		st.nested(c.Selection)
	}
}

func (st *irStats) fields(set *ir.ResultSelectionSet) {
	set.Each(func(_ string, field ir.FieldSelection) {
		switch f := field.(type) {
		case ir.Column:
			st.nested(f.NestedSelection)
		case ir.ModelRelationshipLocal:
			st.local++
			st.model(f.Query)
		case ir.CommandRelationshipLocal:
			st.local++
			st.command(f.IR)
		case ir.ModelRelationshipRemote:
			st.remote++
			st.model(f.IR)
		case ir.CommandRelationshipRemote:
			st.remote++
			st.command(f.IR)
		}
	})
}

func (st *irStats) nested(n ir.NestedSelection) {
	switch s := n.(type) {
	case ir.ObjectSelection:
		st.fields(s.Fields)
	case ir.ArraySelection:
		st.nested(s.Element)
	}
}
