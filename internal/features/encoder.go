package features

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Encoder maps the categories of one column to stable integer codes. Codes are
// the positions of the categories in lexicographic order.
type Encoder struct {
	column  string
	classes []string
	index   map[string]int
}

// FitEncoder builds an encoder over the distinct values observed for column.
func FitEncoder(column string, values []string) *Encoder {
	seen := make(map[string]struct{}, len(values))
	classes := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		classes = append(classes, v)
	}
	sort.Strings(classes)

	e, _ := NewEncoder(column, classes)
	return e
}

// NewEncoder restores an encoder from its ordered classes.
func NewEncoder(column string, classes []string) (*Encoder, error) {
	e := &Encoder{
		column:  column,
		classes: append([]string(nil), classes...),
		index:   make(map[string]int, len(classes)),
	}
	for i, c := range e.classes {
		if _, dup := e.index[c]; dup {
			return nil, fmt.Errorf("encoder %s: duplicate class %q", column, c)
		}
		e.index[c] = i
	}
	return e, nil
}

// Column returns the column the encoder was fitted on.
func (e *Encoder) Column() string { return e.column }

// Classes returns a copy of the known categories in code order.
func (e *Encoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

// Encode returns the code of value and whether value was seen during fitting.
func (e *Encoder) Encode(value string) (int, bool) {
	code, ok := e.index[value]
	return code, ok
}

// Decode returns the category for code.
func (e *Encoder) Decode(code int) (string, bool) {
	if code < 0 || code >= len(e.classes) {
		return "", false
	}
	return e.classes[code], true
}

type encoderJSON struct {
	Column  string   `json:"column"`
	Classes []string `json:"classes"`
}

func (e *Encoder) MarshalJSON() ([]byte, error) {
	return json.Marshal(encoderJSON{Column: e.column, Classes: e.classes})
}

func (e *Encoder) UnmarshalJSON(data []byte) error {
	var raw encoderJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	restored, err := NewEncoder(raw.Column, raw.Classes)
	if err != nil {
		return err
	}
	*e = *restored
	return nil
}

// EncoderTable holds one encoder per categorical column and the single code
// used for values that no encoder knows.
type EncoderTable struct {
	fallback int
	encoders map[string]*Encoder
}

// NewEncoderTable builds a table from already fitted encoders.
func NewEncoderTable(fallback int, encoders ...*Encoder) *EncoderTable {
	t := &EncoderTable{
		fallback: fallback,
		encoders: make(map[string]*Encoder, len(encoders)),
	}
	for _, e := range encoders {
		t.encoders[e.column] = e
	}
	return t
}

// FitEncoderTable fits an encoder for every column over the cleaned rows.
// Rows lacking a column contribute MissingCategory.
func FitEncoderTable(columns []string, rows []Row, fallback int) *EncoderTable {
	encoders := make([]*Encoder, 0, len(columns))
	for _, column := range columns {
		values := make([]string, 0, len(rows))
		for _, r := range rows {
			v, ok := r.Categorical[column]
			if !ok {
				v = MissingCategory
			}
			values = append(values, v)
		}
		encoders = append(encoders, FitEncoder(column, values))
	}
	return NewEncoderTable(fallback, encoders...)
}

// Fallback returns the code used for unseen values.
func (t *EncoderTable) Fallback() int { return t.fallback }

// Has reports whether the table has an encoder for column.
func (t *EncoderTable) Has(column string) bool {
	_, ok := t.encoders[column]
	return ok
}

// Encoder returns the encoder for column.
func (t *EncoderTable) Encoder(column string) (*Encoder, bool) {
	e, ok := t.encoders[column]
	return e, ok
}

// Columns returns the encoded column names in sorted order.
func (t *EncoderTable) Columns() []string {
	cols := make([]string, 0, len(t.encoders))
	for c := range t.encoders {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Encode returns the code of value in column. Unseen values and unknown
// columns yield the fallback code and false; Encode never fails.
func (t *EncoderTable) Encode(column, value string) (int, bool) {
	e, ok := t.encoders[column]
	if !ok {
		return t.fallback, false
	}
	code, ok := e.Encode(value)
	if !ok {
		return t.fallback, false
	}
	return code, true
}

type encoderTableJSON struct {
	Fallback int                 `json:"fallback"`
	Columns  map[string][]string `json:"columns"`
}

func (t *EncoderTable) MarshalJSON() ([]byte, error) {
	raw := encoderTableJSON{
		Fallback: t.fallback,
		Columns:  make(map[string][]string, len(t.encoders)),
	}
	for c, e := range t.encoders {
		raw.Columns[c] = e.classes
	}
	return json.Marshal(raw)
}

func (t *EncoderTable) UnmarshalJSON(data []byte) error {
	var raw encoderTableJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	encoders := make([]*Encoder, 0, len(raw.Columns))
	for column, classes := range raw.Columns {
		e, err := NewEncoder(column, classes)
		if err != nil {
			return err
		}
		encoders = append(encoders, e)
	}
	*t = *NewEncoderTable(raw.Fallback, encoders...)
	return nil
}
