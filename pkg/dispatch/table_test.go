package dispatch

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func noop() Operation {
	return Action0(func(context.Context) error { return nil })
}

func TestRegister(t *testing.T) {
	tbl := NewTable("calc")
	if err := tbl.Register("B", noop()); err != nil {
		t.Fatalf("Register(B) error=%v", err)
	}
	if err := tbl.Register("A", noop()); err != nil {
		t.Fatalf("Register(A) error=%v", err)
	}

	if got := tbl.Names(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("Names() = %v, want [A B]", got)
	}
	if tbl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tbl.Len())
	}
	if tbl.Label() != "calc" {
		t.Errorf("Label() = %q, want calc", tbl.Label())
	}
	if _, ok := tbl.Resolve("A"); !ok {
		t.Error("Resolve(A) ok = false, want true")
	}
	if _, ok := tbl.Resolve("C"); ok {
		t.Error("Resolve(C) ok = true, want false")
	}
}

func TestRegisterRejects(t *testing.T) {
	tbl := NewTable("x")
	if err := tbl.Register("A", noop()); err != nil {
		t.Fatalf("Register(A) error=%v", err)
	}

	if err := tbl.Register("A", noop()); !errors.Is(err, ErrDuplicateOperation) {
		t.Errorf("Register(dup) error=%v, want ErrDuplicateOperation", err)
	}
	if err := tbl.Register("", noop()); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Register(\"\") error=%v, want ErrEmptyName", err)
	}
	if err := tbl.Register("Z", Operation{}); !errors.Is(err, ErrNilInvoke) {
		t.Errorf("Register(no invoke) error=%v, want ErrNilInvoke", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustRegister(dup) did not panic")
		}
	}()
	tbl.MustRegister("A", noop())
}

var errProviderFailed = errors.New("provider failed")

type calculator struct{ fail bool }

func (c *calculator) RegisterCommands(t *Table) error {
	if c.fail {
		return errProviderFailed
	}
	return t.Register("Add", Func2(func(_ context.Context, a, b int) (int, error) {
		return a + b, nil
	}))
}

func TestNewTableFrom(t *testing.T) {
	tbl, err := NewTableFrom("calc", &calculator{}, nil, ProviderFunc(func(t *Table) error {
		return t.Register("Ping", noop())
	}))
	if err != nil {
		t.Fatalf("NewTableFrom() error=%v", err)
	}
	if got := tbl.Names(); !reflect.DeepEqual(got, []string{"Add", "Ping"}) {
		t.Errorf("Names() = %v, want [Add Ping]", got)
	}

	if _, err := NewTableFrom("calc", &calculator{fail: true}); !errors.Is(err, errProviderFailed) {
		t.Errorf("NewTableFrom(failing) error=%v, want provider error", err)
	}
}
