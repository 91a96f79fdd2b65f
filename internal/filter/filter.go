// Package filter selects event records with expr expressions such as
//
//	type == "drop" && queue_name startsWith "NF2C"
//	len > 64 || refresh
package filter

import (
	"fmt"
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"firestige.xyz/nf2cap/internal/eventcap"
)

// Env is the set of names an expression can use. Frame-level names repeat
// for every record of the frame. Timestamp refreshes have queue -1 and len 0.
type Env struct {
	Type      string `expr:"type"`
	Queue     int    `expr:"queue"`
	QueueName string `expr:"queue_name"`
	Len       int    `expr:"len"`
	Ticks     int64  `expr:"ticks"`
	Refresh   bool   `expr:"refresh"`

	Seq     int `expr:"seq"`
	Version int `expr:"version"`
}

// Variable is one name an expression can refer to.
type Variable struct {
	Name string
	Type string
}

// Variables lists the names of Env in declaration order.
func Variables() []Variable {
	t := reflect.TypeOf(Env{})
	vars := make([]Variable, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		vars = append(vars, Variable{Name: f.Tag.Get("expr"), Type: f.Type.Kind().String()})
	}
	return vars
}

// Filter is a compiled record filter. A nil *Filter matches everything.
type Filter struct {
	src     string
	program *vm.Program
}

// Compile compiles src. An empty src yields a nil filter.
func Compile(src string) (*Filter, error) {
	if src == "" {
		return nil, nil
	}
	program, err := expr.Compile(src, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("filter: compile %q: %w", src, err)
	}
	return &Filter{src: src, program: program}, nil
}

func (f *Filter) String() string {
	if f == nil {
		return "<all>"
	}
	return f.src
}

// NewEnv describes r, a record of a frame with header h.
func NewEnv(h eventcap.Header, r eventcap.Record) Env {
	env := Env{
		Type:    r.Type().String(),
		Queue:   -1,
		Ticks:   int64(r.Time().Ticks()),
		Seq:     int(h.Seq),
		Version: int(h.Version),
	}
	switch r := r.(type) {
	case eventcap.TimestampRefresh:
		env.Refresh = true
	case eventcap.ShortEvent:
		env.Queue = int(r.QueueID)
		env.QueueName = eventcap.QueueName(r.QueueID)
		env.Len = int(r.PacketLen)
	}
	return env
}

// Match reports whether r passes the filter.
func (f *Filter) Match(h eventcap.Header, r eventcap.Record) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, err := expr.Run(f.program, NewEnv(h, r))
	if err != nil {
		return false, fmt.Errorf("filter: run %q: %w", f.src, err)
	}
	return out.(bool), nil
}

// Apply returns a copy of frame holding only the matching records. The
// header and the decoded record count are left as read off the wire.
func (f *Filter) Apply(frame *eventcap.Frame) (*eventcap.Frame, error) {
	if f == nil {
		return frame, nil
	}
	out := &eventcap.Frame{Header: frame.Header, Trailing: frame.Trailing, Decoded: frame.Decoded}
	for _, r := range frame.Records {
		ok, err := f.Match(frame.Header, r)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Records = append(out.Records, r)
		}
	}
	return out, nil
}
