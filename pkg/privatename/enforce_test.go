package privatename

import (
	stderrors "errors"
	"strings"
	"testing"
)

type object struct {
	brands BrandSet
}

func (o *object) Brands() *BrandSet { return &o.brands }

func descriptor(kind Kind) *Descriptor {
	return &Descriptor{Identifier: "#a", Kind: kind, ClassID: 1}
}

func TestEnforceActions(t *testing.T) {
	brand := NewBrand(1, false, "C")
	obj := &object{}
	if err := obj.brands.Install(brand); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		kind    Kind
		op      Op
		want    Action
		wantErr string
	}{
		{Field, OpRead, ActionReadField, ""},
		{Field, OpWrite, ActionWriteField, ""},
		{Method, OpRead, ActionReadMethod, ""},
		{Method, OpWrite, ActionNone, "not writable"},
		{AccessorGetter, OpRead, ActionCallGetter, ""},
		{AccessorGetter, OpWrite, ActionNone, "without a setter"},
		{AccessorSetter, OpWrite, ActionCallSetter, ""},
		{AccessorSetter, OpRead, ActionNone, "without a getter"},
		{AccessorBoth, OpRead, ActionCallGetter, ""},
		{AccessorBoth, OpWrite, ActionCallSetter, ""},
		{Field, OpHas, ActionNone, ""},
	}

	for _, tt := range tests {
		action, err := Enforce(obj, brand, descriptor(tt.kind), tt.op)
		if action != tt.want {
			t.Errorf("%s/%d: action %s, want %s", tt.kind, tt.op, action, tt.want)
		}
		switch {
		case tt.wantErr == "" && err != nil:
			t.Errorf("%s/%d: unexpected error %v", tt.kind, tt.op, err)
		case tt.wantErr != "":
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("%s/%d: error %v, want %q", tt.kind, tt.op, err, tt.wantErr)
			} else if !stderrors.Is(err, ErrInvalidPrivateAccess) {
				t.Errorf("%s/%d: error does not match ErrInvalidPrivateAccess", tt.kind, tt.op)
			}
		}
	}
}

func TestEnforceBrandCheck(t *testing.T) {
	brand := NewBrand(1, false, "C")
	stranger := &object{}
	d := descriptor(AccessorBoth)

	for _, op := range []Op{OpRead, OpWrite} {
		_, err := Enforce(stranger, brand, d, op)
		var perr *Error
		if !stderrors.As(err, &perr) || perr.Code != InvalidPrivateAccess {
			t.Fatalf("op %d: expected InvalidPrivateAccess, got %v", op, err)
		}
		if perr.Identifier != "#a" || perr.ClassID != 1 {
			t.Errorf("op %d: error carries %q/%s", op, perr.Identifier, perr.ClassID)
		}
		if perr.Kind() != "Runtime" {
			t.Errorf("op %d: kind %q", op, perr.Kind())
		}
	}

	if _, err := Enforce(nil, brand, d, OpRead); err == nil {
		t.Errorf("non-object receiver accepted")
	}

	// The brand check for `in` is left to the caller.
	if action, err := Enforce(stranger, brand, d, OpHas); err != nil || action != ActionNone {
		t.Errorf("OpHas on unbranded object: %s, %v", action, err)
	}
}

func TestBrandsArePerEvaluation(t *testing.T) {
	// Two evaluations of the same declaration share a ClassID but not brands.
	first := NewBrand(1, false, "C")
	second := NewBrand(1, false, "C")
	obj := &object{}
	if err := obj.brands.Install(first); err != nil {
		t.Fatal(err)
	}
	if _, err := Enforce(obj, second, descriptor(Field), OpRead); err == nil {
		t.Errorf("object from one evaluation passed the brand check of another")
	}
	if !obj.brands.Has(first) || obj.brands.Has(second) {
		t.Errorf("Has: first=%v second=%v", obj.brands.Has(first), obj.brands.Has(second))
	}
}

func TestBrandInstallTwice(t *testing.T) {
	brand := NewBrand(1, false, "Stamper")
	obj := &object{}
	if err := obj.brands.Install(brand); err != nil {
		t.Fatal(err)
	}
	err := obj.brands.Install(brand)
	if !stderrors.Is(err, ErrInvalidPrivateAccess) {
		t.Fatalf("second Install: %v", err)
	}
	if !strings.Contains(err.Error(), "Stamper") {
		t.Errorf("message %q does not name the class", err.Error())
	}
	if obj.brands.Len() != 1 {
		t.Errorf("brand set grew to %d", obj.brands.Len())
	}
}

func TestNilBrandSet(t *testing.T) {
	var s *BrandSet
	if s.Has(NewBrand(1, false, "")) || s.Len() != 0 {
		t.Errorf("nil BrandSet must be empty")
	}
}
