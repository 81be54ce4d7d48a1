package ir

import (
	"errors"
	"fmt"
	"strings"

	"graphql-ir/internal/metadata"
)

// Error kinds. Every lowering failure is an *Error whose Kind is one of these.
var (
	ErrMissingFieldMapping        = errors.New("missing field mapping")
	ErrMissingTypeMapping         = errors.New("missing type mapping")
	ErrMissingNonNullableArgument = errors.New("missing non-nullable argument")
	ErrArgumentConversion         = errors.New("argument conversion failed")
	ErrUnresolvedGlobalIDField    = errors.New("unresolved global id field")
	ErrUnresolvedRelayTypeName    = errors.New("unresolved relay type name")
	ErrUnexpectedAnnotation       = errors.New("unexpected annotation")
	ErrNestedRemoteRelationship   = errors.New("remote relationship below the selection root")
	ErrInternal                   = errors.New("internal lowering error")
)

// Error is a structured lowering failure. errors.Is matches its Kind.
type Error struct {
	Kind       error
	Field      string
	Type       string
	Argument   string
	Annotation string
	Cause      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	var details []string
	if e.Argument != "" {
		details = append(details, fmt.Sprintf("argument %q", e.Argument))
	}
	if e.Field != "" {
		details = append(details, fmt.Sprintf("field %q", e.Field))
	}
	if e.Type != "" {
		details = append(details, fmt.Sprintf("type %q", e.Type))
	}
	if e.Annotation != "" {
		details = append(details, fmt.Sprintf("annotation %s", e.Annotation))
	}
	if len(details) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(details, ", "))
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func missingFieldMapping(field string, typeName metadata.QualifiedName) error {
	return &Error{Kind: ErrMissingFieldMapping, Field: field, Type: typeName.String()}
}

func missingTypeMapping(typeName metadata.QualifiedName) error {
	return &Error{Kind: ErrMissingTypeMapping, Type: typeName.String()}
}

func missingArgument(argument, field string) error {
	return &Error{Kind: ErrMissingNonNullableArgument, Argument: argument, Field: field}
}

func conversionFailed(argument, field string, cause error) error {
	return &Error{Kind: ErrArgumentConversion, Argument: argument, Field: field, Cause: cause}
}

type annotation interface{ Kind() string }

func unexpectedAnnotation(field string, info annotation) error {
	return &Error{Kind: ErrUnexpectedAnnotation, Field: field, Annotation: annotationKind(info)}
}

func unexpectedArgumentAnnotation(field, argument string, info annotation) error {
	return &Error{Kind: ErrUnexpectedAnnotation, Field: field, Argument: argument, Annotation: annotationKind(info)}
}

func annotationKind(info annotation) string {
	if info == nil {
		return "<none>"
	}
	return info.Kind()
}

func internalf(field, format string, args ...any) error {
	return &Error{Kind: ErrInternal, Field: field, Cause: fmt.Errorf(format, args...)}
}
