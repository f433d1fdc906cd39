// Package dberror decodes the field set carried by an ErrorResponse or
// NoticeResponse backend message into a structured Go error, and provides
// generic WithCode/WithSeverity decorators for attaching the same
// information to errors that never touched the wire.
package dberror

import (
	"fmt"

	"github.com/tidewire/pgwire/codes"
)

// Field codes, as laid out at
// https://www.postgresql.org/docs/current/protocol-error-fields.html
const (
	fieldSeverityLocalized byte = 'S'
	fieldSeverity          byte = 'V'
	fieldCode              byte = 'C'
	fieldMessage           byte = 'M'
	fieldDetail            byte = 'D'
	fieldHint              byte = 'H'
	fieldPosition          byte = 'P'
	fieldInternalPosition  byte = 'p'
	fieldInternalQuery     byte = 'q'
	fieldWhere             byte = 'W'
	fieldSchemaName        byte = 's'
	fieldTableName         byte = 't'
	fieldColumnName        byte = 'c'
	fieldDataTypeName      byte = 'd'
	fieldConstraintName    byte = 'n'
	fieldFile              byte = 'F'
	fieldLine              byte = 'L'
	fieldRoutine           byte = 'R'
)

// DbError is the decoded form of a Postgres ErrorResponse (or, with a
// reduced severity, a NoticeResponse). It implements error.
type DbError struct {
	Severity       Severity
	Code           codes.Code
	Message        string
	Detail         string
	Hint           string
	Position       string
	InternalQuery  string
	Where          string
	SchemaName     string
	TableName      string
	ColumnName     string
	DataTypeName   string
	ConstraintName string
	File           string
	Line           string
	Routine        string
}

// FromFields builds a DbError from the field map decoded by
// protocol.ParseFields.
func FromFields(fields map[byte]string) *DbError {
	e := &DbError{
		Severity: Severity(fields[fieldSeverity]),
		Code:     codes.Code(fields[fieldCode]),
		Message:  fields[fieldMessage],
		Detail:   fields[fieldDetail],
		Hint:     fields[fieldHint],
		Position:       fields[fieldPosition],
		InternalQuery:  fields[fieldInternalQuery],
		Where:          fields[fieldWhere],
		SchemaName:     fields[fieldSchemaName],
		TableName:      fields[fieldTableName],
		ColumnName:     fields[fieldColumnName],
		DataTypeName:   fields[fieldDataTypeName],
		ConstraintName: fields[fieldConstraintName],
		File:           fields[fieldFile],
		Line:           fields[fieldLine],
		Routine:        fields[fieldRoutine],
	}

	if e.Severity == "" {
		e.Severity = Severity(fields[fieldSeverityLocalized])
	}

	return e
}

func (e *DbError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (SQLSTATE %s): %s (%s)", e.Severity, e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s (SQLSTATE %s): %s", e.Severity, e.Code, e.Message)
}
