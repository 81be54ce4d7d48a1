// Package explain renders a lowered query as the requests a SQL-backed
// connector would run for it. The preview is informational: nothing is
// executed and the SQL dialect is generic MySQL with ? placeholders.
package explain

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"graphql-ir/internal/ir"
	"graphql-ir/internal/metadata"
	"graphql-ir/internal/sqlutil"
)

// StepKind names what produced a step.
type StepKind string

const (
	KindSelectMany    StepKind = "model select many"
	KindSelectOne     StepKind = "model select one"
	KindAggregate     StepKind = "model aggregate"
	KindNode          StepKind = "node"
	KindCommand       StepKind = "command"
	KindLocalModel    StepKind = "local model relationship"
	KindLocalCommand  StepKind = "local command relationship"
	KindRemoteModel   StepKind = "remote model relationship"
	KindRemoteCommand StepKind = "remote command relationship"
)

// commandValueAlias is the column a command result is returned under.
const commandValueAlias = "__value"

// Plan lists the connector requests of a query. Remote relationships are
// separate steps following the step whose rows they join on.
type Plan struct {
	OperationName string  `json:"operation_name,omitempty"`
	Steps         []*Step `json:"steps"`
}

// Step is one connector request. Local relationships run inside the parent
// request and are listed as children.
type Step struct {
	Path          string   `json:"path"`
	Kind          StepKind `json:"kind"`
	DataConnector string   `json:"data_connector"`
	SQL           string   `json:"sql"`
	Args          []any    `json:"args,omitempty"`
	// Arguments are the collection arguments of a model selection.
	Arguments []NamedArgument `json:"arguments,omitempty"`
	// DependsOn is the path of the step a remote step is joined to.
	DependsOn string                   `json:"depends_on,omitempty"`
	Join      []ir.RelationshipMapping `json:"join,omitempty"`
	Children  []*Step                  `json:"children,omitempty"`
}

// NamedArgument is a collection argument and its value.
type NamedArgument struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// RowValue stands for a value taken from each row of the step a remote
// step depends on.
type RowValue struct {
	Column string
}

func (v RowValue) String() string {
	return "$" + v.Column
}

func (v RowValue) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Build renders every root field of q.
func Build(q *ir.QueryIR) (*Plan, error) {
	if q == nil {
		return nil, fmt.Errorf("explain: nil query")
	}
	b := &builder{}
	plan := &Plan{OperationName: q.OperationName}

	var err error
	q.RootFields.Each(func(alias string, root ir.RootField) {
		if err != nil {
			return
		}
		var step *Step
		switch r := root.(type) {
		case ir.RootModelSelectMany:
			step, err = b.model(alias, KindSelectMany, r.Selection, nil, "")
		case ir.RootModelSelectOne:
			step, err = b.model(alias, KindSelectOne, r.Selection, nil, "")
		case ir.RootModelAggregate:
			step, err = b.model(alias, KindAggregate, r.Selection, nil, "")
		case ir.RootNode:
			step, err = b.model(alias, KindNode, r.Selection, nil, "")
		case ir.RootCommand:
			step, err = b.command(alias, KindCommand, r.Command, nil, "")
		default:
			err = fmt.Errorf("explain: unsupported root field %T", root)
		}
		if err != nil {
			err = fmt.Errorf("root field %q: %w", alias, err)
			return
		}
		plan.Steps = append(plan.Steps, step)
		plan.Steps = append(plan.Steps, b.remote...)
		b.remote = nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

type builder struct {
	remote []*Step
}

func joinPath(path, alias string) string {
	if path == "" {
		return alias
	}
	return path + "." + alias
}

func connectorName(link *metadata.DataConnectorLink) string {
	if link == nil {
		return ""
	}
	text, _ := link.Name.MarshalText()
	return string(text)
}

// model renders a model selection. where restricts the rows to those related
// to the parent; owner is the path of the step the selection is joined to.
func (b *builder) model(path string, kind StepKind, sel *ir.ModelSelection, where sq.Sqlizer, owner string) (*Step, error) {
	if sel == nil {
		return nil, fmt.Errorf("explain: %s has no model selection", path)
	}
	step := &Step{Path: path, Kind: kind, DataConnector: connectorName(sel.DataConnector), DependsOn: owner}
	sel.Arguments.Each(func(name string, arg ir.Argument) {
		step.Arguments = append(step.Arguments, NamedArgument{Name: name, Value: argumentValue(arg)})
	})

	query := sq.Select().From(sqlutil.QuoteIdentifier(sel.Collection)).PlaceholderFormat(sq.Question)
	columns := 0
	sel.AggregateSelection.Each(func(alias string, agg ir.AggregateSelection) {
		query = query.Column(aggregateColumn(agg) + " AS " + sqlutil.QuoteIdentifier(alias))
		columns++
	})

	var err error
	sel.Selection.Each(func(alias string, field ir.FieldSelection) {
		if err != nil {
			return
		}
		if column, ok := field.(ir.Column); ok {
			query = query.Column(sqlutil.QuoteQualified(sel.Collection, column.Column) + " AS " + sqlutil.QuoteIdentifier(alias))
			columns++
		}
		err = b.field(step, sel.Collection, joinPath(path, alias), field)
	})
	if err != nil {
		return nil, err
	}
	if columns == 0 {
		query = query.Column("1")
	}

	if where != nil {
		query = query.Where(where)
	}
	if sel.Filter != nil {
		condition, err := filter(sel.Filter)
		if err != nil {
			return nil, fmt.Errorf("explain: %s: %w", path, err)
		}
		query = query.Where(condition)
	}
	if sel.Limit != nil {
		query = query.Limit(uint64(*sel.Limit))
	}
	if sel.Offset != nil {
		query = query.Offset(uint64(*sel.Offset))
	}

	step.SQL, step.Args, err = query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("explain: render %s: %w", path, err)
	}
	return step, nil
}

// command renders a function call. mapped supplies arguments taken from the
// parent row of a local relationship.
func (b *builder) command(path string, kind StepKind, cmd *ir.FunctionBasedCommand, mapped []string, owner string) (*Step, error) {
	if cmd == nil {
		return nil, fmt.Errorf("explain: %s has no command", path)
	}
	step := &Step{Path: path, Kind: kind, DataConnector: connectorName(cmd.DataConnector), DependsOn: owner}

	var parts []string
	var args []any
	cmd.Arguments.Each(func(name string, arg ir.Argument) {
		parts = append(parts, name+" => ?")
		args = append(args, argumentValue(arg))
	})
	parts = append(parts, mapped...)

	call := sq.Expr(fmt.Sprintf("%s(%s)", sqlutil.QuoteIdentifier(cmd.FunctionName), strings.Join(parts, ", ")), args...)
	query := sq.Select().Column(sq.Alias(call, sqlutil.QuoteIdentifier(commandValueAlias))).PlaceholderFormat(sq.Question)

	var err error
	step.SQL, step.Args, err = query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("explain: render %s: %w", path, err)
	}
	if cmd.Selection != nil {
		if err := b.nested(step, cmd.FunctionName, path, cmd.Selection); err != nil {
			return nil, err
		}
	}
	return step, nil
}

// field adds the relationships reachable from one selected field to parent.
func (b *builder) field(parent *Step, collection, path string, field ir.FieldSelection) error {
	switch f := field.(type) {
	case ir.Column:
		if f.NestedSelection != nil {
			return b.nested(parent, collection, path, f.NestedSelection)
		}
		return nil

	case ir.ModelRelationshipLocal:
		var where sq.Sqlizer
		if f.Query != nil {
			where = correlate(collection, f.Query.Collection, f.Info)
		}
		child, err := b.model(path, KindLocalModel, f.Query, where, "")
		if err != nil {
			return err
		}
		child.Join = mappings(f.Info)
		parent.Children = append(parent.Children, child)

	case ir.CommandRelationshipLocal:
		var mapped []string
		if f.Info != nil {
			for _, m := range f.Info.Mappings {
				mapped = append(mapped, m.TargetArgument+" => "+sqlutil.QuoteQualified(collection, m.SourceColumn))
			}
		}
		child, err := b.command(path, KindLocalCommand, f.IR, mapped, "")
		if err != nil {
			return err
		}
		child.Join = mappings(f.Info)
		parent.Children = append(parent.Children, child)

	case ir.ModelRelationshipRemote:
		slot := b.reserve()
		step, err := b.model(path, KindRemoteModel, f.IR, joinValues(f.Info), parent.Path)
		if err != nil {
			return err
		}
		step.Join = mappings(f.Info)
		b.remote[slot] = step

	case ir.CommandRelationshipRemote:
		slot := b.reserve()
		step, err := b.command(path, KindRemoteCommand, f.IR, nil, parent.Path)
		if err != nil {
			return err
		}
		step.Join = mappings(f.Info)
		b.remote[slot] = step

	default:
		return fmt.Errorf("explain: unsupported field selection %T at %s", field, path)
	}
	return nil
}

// nested walks a nested object or array selection for relationships.
func (b *builder) nested(parent *Step, collection, path string, sel ir.NestedSelection) error {
	switch s := sel.(type) {
	case ir.ObjectSelection:
		var err error
		s.Fields.Each(func(alias string, field ir.FieldSelection) {
			if err == nil {
				err = b.field(parent, collection, joinPath(path, alias), field)
			}
		})
		return err
	case ir.ArraySelection:
		return b.nested(parent, collection, path, s.Element)
	}
	return fmt.Errorf("explain: unsupported nested selection %T at %s", sel, path)
}

// reserve keeps a remote step after any remote steps its own selection adds.
func (b *builder) reserve() int {
	b.remote = append(b.remote, nil)
	return len(b.remote) - 1
}

func mappings(info *ir.RelationshipInfo) []ir.RelationshipMapping {
	if info == nil {
		return nil
	}
	return info.Mappings
}

func correlate(parent, target string, info *ir.RelationshipInfo) sq.Sqlizer {
	if info == nil || len(info.Mappings) == 0 {
		return nil
	}
	conditions := sq.And{}
	for _, m := range info.Mappings {
		conditions = append(conditions, sq.Expr(sqlutil.QuoteQualified(target, m.TargetColumn)+" = "+sqlutil.QuoteQualified(parent, m.SourceColumn)))
	}
	return conditions
}

func joinValues(info *ir.RelationshipInfo) sq.Sqlizer {
	if info == nil || len(info.Mappings) == 0 {
		return nil
	}
	eq := sq.Eq{}
	for _, m := range info.Mappings {
		eq[sqlutil.QuoteIdentifier(m.TargetColumn)] = []any{RowValue{Column: m.SourceColumn}}
	}
	return eq
}

func filter(expr ir.Expression) (sq.Sqlizer, error) {
	switch e := expr.(type) {
	case ir.And:
		and := sq.And{}
		for _, inner := range e.Expressions {
			condition, err := filter(inner)
			if err != nil {
				return nil, err
			}
			and = append(and, condition)
		}
		return and, nil
	case ir.Comparison:
		if e.Operator == ir.OperatorEqual {
			return sq.Eq{sqlutil.QuoteIdentifier(e.Column): e.Value}, nil
		}
		return sq.Expr(fmt.Sprintf("%s %s ?", sqlutil.QuoteIdentifier(e.Column), e.Operator), e.Value), nil
	}
	return nil, fmt.Errorf("unsupported filter %T", expr)
}

func aggregateColumn(agg ir.AggregateSelection) string {
	switch a := agg.(type) {
	case ir.AggregateCount:
		return "COUNT(*)"
	case ir.AggregateColumnCount:
		if a.Distinct {
			return "COUNT(DISTINCT " + sqlutil.QuoteIdentifier(a.Column) + ")"
		}
		return "COUNT(" + sqlutil.QuoteIdentifier(a.Column) + ")"
	case ir.AggregateFunction:
		return strings.ToUpper(a.Function) + "(" + sqlutil.QuoteIdentifier(a.Column) + ")"
	}
	return "NULL"
}

func argumentValue(arg ir.Argument) any {
	switch a := arg.(type) {
	case ir.Literal:
		return a.Value
	case ir.Variable:
		return RowValue{Column: a.Name}
	}
	return nil
}
