package protocol

import (
	"errors"
	"testing"
)

func TestNewCommand(t *testing.T) {
	env, err := NewCommand("Add", 2, 3)
	if err != nil {
		t.Fatalf("NewCommand() error=%v", err)
	}
	if env.Name != "Add" {
		t.Errorf("Name = %q, want Add", env.Name)
	}
	if env.GUID != "" {
		t.Errorf("GUID = %q, want empty", env.GUID)
	}
	if len(env.Arguments) != 2 {
		t.Fatalf("len(Arguments) = %d, want 2", len(env.Arguments))
	}
	if s := env.Arguments[0].String(); s != "2" {
		t.Errorf("Arguments[0] = %s, want 2", s)
	}
	if k := env.Arguments[1].Kind(); k != KindNumber {
		t.Errorf("Arguments[1].Kind() = %v, want number", k)
	}
}

func TestNewCommandEmptyName(t *testing.T) {
	if _, err := NewCommand(""); !errors.Is(err, ErrEmptyName) {
		t.Errorf("NewCommand(\"\") error=%v, want ErrEmptyName", err)
	}
}

func TestNewCommandUnencodableArgument(t *testing.T) {
	if _, err := NewCommand("Bad", make(chan int)); err == nil {
		t.Error("NewCommand(chan) error=nil, want error")
	}
}

func TestReplyPredicates(t *testing.T) {
	resp := NewResponse("g-1", MustValueOf(5))
	if !resp.IsResponse() || !resp.IsReply() || resp.IsError() {
		t.Errorf("response predicates = %v/%v/%v, want true/true/false",
			resp.IsResponse(), resp.IsReply(), resp.IsError())
	}
	if s := resp.Result().String(); s != "5" {
		t.Errorf("Result() = %s, want 5", s)
	}

	errEnv := NewError("g-1")
	if !errEnv.IsError() || !errEnv.IsReply() {
		t.Error("error envelope should be an error reply")
	}
	if errEnv.Arguments != nil {
		t.Errorf("Arguments = %v, want nil", errEnv.Arguments)
	}
	if !errEnv.Result().IsNull() {
		t.Errorf("Result() = %s, want null", errEnv.Result())
	}

	cmd := &Envelope{Name: "Tick"}
	if cmd.IsReply() {
		t.Error("command IsReply() = true, want false")
	}

	var nilEnv *Envelope
	if nilEnv.IsReply() {
		t.Error("nil IsReply() = true, want false")
	}
	if _, ok := nilEnv.Arg(0); ok {
		t.Error("nil Arg(0) ok = true, want false")
	}
}

func TestEnvelopeArg(t *testing.T) {
	env := &Envelope{Name: "X", Arguments: []Value{MustValueOf("a")}}

	v, ok := env.Arg(0)
	if !ok {
		t.Fatal("Arg(0) ok = false, want true")
	}
	if s, ok := v.Text(); !ok || s != "a" {
		t.Errorf("Arg(0).Text() = %q, %v; want a, true", s, ok)
	}
	if _, ok := env.Arg(1); ok {
		t.Error("Arg(1) ok = true, want false")
	}
	if _, ok := env.Arg(-1); ok {
		t.Error("Arg(-1) ok = true, want false")
	}
}
