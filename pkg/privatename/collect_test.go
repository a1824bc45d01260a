package privatename

import (
	stderrors "errors"
	"strings"
	"testing"

	"sigil/pkg/errors"
)

func at(line int) errors.Position {
	return errors.Position{Line: line, Column: 3}
}

func TestCollectMergesAccessorPairs(t *testing.T) {
	tests := []struct {
		name    string
		members []Member
		want    map[string]Kind
	}{
		{
			name: "getter then setter",
			members: []Member{
				{Name: "#a", Private: true, Kind: MemberGetter, Pos: at(1)},
				{Name: "#a", Private: true, Kind: MemberSetter, Pos: at(2)},
			},
			want: map[string]Kind{"#a": AccessorBoth},
		},
		{
			name: "setter then getter",
			members: []Member{
				{Name: "#a", Private: true, Kind: MemberSetter, Pos: at(1)},
				{Name: "#a", Private: true, Kind: MemberGetter, Pos: at(2)},
			},
			want: map[string]Kind{"#a": AccessorBoth},
		},
		{
			name: "pair separated by other members",
			members: []Member{
				{Name: "#a", Private: true, Kind: MemberGetter, Pos: at(1)},
				{Name: "#b", Private: true, Kind: MemberField, Pos: at(2)},
				{Name: "m", Kind: MemberMethod, Pos: at(3)},
				{Name: "#a", Private: true, Kind: MemberSetter, Pos: at(4)},
			},
			want: map[string]Kind{"#a": AccessorBoth, "#b": Field},
		},
		{
			name: "lone halves",
			members: []Member{
				{Name: "#g", Private: true, Kind: MemberGetter, Pos: at(1)},
				{Name: "#s", Private: true, Kind: MemberSetter, Pos: at(2)},
				{Name: "#m", Private: true, Kind: MemberMethod, Pos: at(3)},
			},
			want: map[string]Kind{"#g": AccessorGetter, "#s": AccessorSetter, "#m": Method},
		},
		{
			name: "static pair",
			members: []Member{
				{Name: "#a", Private: true, Kind: MemberSetter, Static: true, Pos: at(1)},
				{Name: "#a", Private: true, Kind: MemberGetter, Static: true, Pos: at(2)},
			},
			want: map[string]Kind{"#a": AccessorBoth},
		},
		{
			name: "public duplicates are not our business",
			members: []Member{
				{Name: "a", Kind: MemberGetter, Pos: at(1)},
				{Name: "a", Kind: MemberGetter, Pos: at(2)},
			},
			want: map[string]Kind{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, errs := Collect(7, tt.members)
			if len(errs) > 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
			if !table.Sealed() {
				t.Errorf("table not sealed")
			}
			if table.Len() != len(tt.want) {
				t.Errorf("table has %d entries, want %d", table.Len(), len(tt.want))
			}
			for name, kind := range tt.want {
				d, ok := table.Lookup(name)
				if !ok {
					t.Errorf("%s missing", name)
					continue
				}
				if d.Kind != kind {
					t.Errorf("%s: kind %s, want %s", name, d.Kind, kind)
				}
				if d.ClassID != 7 {
					t.Errorf("%s: class %s, want class#7", name, d.ClassID)
				}
			}
		})
	}
}

func TestCollectDuplicates(t *testing.T) {
	getter := func(line int) Member { return Member{Name: "#a", Private: true, Kind: MemberGetter, Pos: at(line)} }
	setter := func(line int) Member { return Member{Name: "#a", Private: true, Kind: MemberSetter, Pos: at(line)} }
	field := func(line int) Member { return Member{Name: "#a", Private: true, Kind: MemberField, Pos: at(line)} }
	method := func(line int) Member { return Member{Name: "#a", Private: true, Kind: MemberMethod, Pos: at(line)} }

	tests := []struct {
		name      string
		members   []Member
		wantLines []int
	}{
		{"two getters", []Member{getter(1), getter(2)}, []int{2}},
		{"two setters", []Member{setter(1), setter(2)}, []int{2}},
		{"getter after pair", []Member{getter(1), setter(2), getter(3)}, []int{3}},
		{"setter after pair", []Member{setter(1), getter(2), setter(3)}, []int{3}},
		{"field then getter", []Member{field(1), getter(2)}, []int{2}},
		{"setter then method", []Member{setter(1), method(2)}, []int{2}},
		{"two fields", []Member{field(1), field(2)}, []int{2}},
		{"method then field", []Member{method(1), field(2)}, []int{2}},
		{"every duplicate reported", []Member{getter(1), getter(2), field(3), setter(4)}, []int{2, 3}},
		{
			"duplicate among valid members",
			[]Member{
				{Name: "#ok", Private: true, Kind: MemberField, Pos: at(1)},
				getter(2), setter(3), getter(4),
				{Name: "x", Kind: MemberMethod, Pos: at(5)},
			},
			[]int{4},
		},
		{
			"static and instance halves",
			[]Member{getter(1), {Name: "#a", Private: true, Kind: MemberSetter, Static: true, Pos: at(2)}},
			[]int{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, errs := Collect(1, tt.members)
			if table != nil {
				t.Errorf("expected no table on failure")
			}
			if len(errs) != len(tt.wantLines) {
				t.Fatalf("got %d errors %v, want %d", len(errs), errs, len(tt.wantLines))
			}
			for i, err := range errs {
				if err.Code != DuplicatePrivateName {
					t.Errorf("error %d: code %s", i, err.Code)
				}
				if !stderrors.Is(err, ErrDuplicatePrivateName) {
					t.Errorf("error %d: errors.Is(ErrDuplicatePrivateName) is false", i)
				}
				if err.Position.Line != tt.wantLines[i] {
					t.Errorf("error %d at line %d, want %d", i, err.Position.Line, tt.wantLines[i])
				}
				if err.Kind() != "Syntax" || !err.Static() {
					t.Errorf("error %d: kind %q, want early Syntax error", i, err.Kind())
				}
			}
		})
	}
}

func TestCollectOrderIndependence(t *testing.T) {
	members := []Member{
		{Name: "#a", Private: true, Kind: MemberGetter},
		{Name: "#a", Private: true, Kind: MemberSetter},
		{Name: "#b", Private: true, Kind: MemberMethod},
		{Name: "#c", Private: true, Kind: MemberSetter},
	}
	// Every permutation yields the same kinds.
	var permute func(k int)
	permute = func(k int) {
		if k == len(members) {
			table, errs := Collect(2, members)
			if len(errs) > 0 {
				t.Fatalf("order %v: unexpected errors %v", members, errs)
			}
			for name, kind := range map[string]Kind{"#a": AccessorBoth, "#b": Method, "#c": AccessorSetter} {
				if d, _ := table.Lookup(name); d == nil || d.Kind != kind {
					t.Fatalf("order %v: %s = %v, want %s", members, name, d, kind)
				}
			}
			return
		}
		for i := k; i < len(members); i++ {
			members[k], members[i] = members[i], members[k]
			permute(k + 1)
			members[k], members[i] = members[i], members[k]
		}
	}
	permute(0)
}

func TestCollectReservedName(t *testing.T) {
	_, errs := Collect(3, []Member{{Name: "#constructor", Private: true, Kind: MemberMethod, Pos: at(1)}})
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
	if !stderrors.Is(errs[0], ErrReservedPrivateName) || !stderrors.Is(errs[0], ErrDuplicatePrivateName) {
		t.Errorf("reserved-name error does not match both sentinels")
	}
	if !strings.Contains(errs[0].Msg, "#constructor") {
		t.Errorf("message %q does not name #constructor", errs[0].Msg)
	}
}

func TestTableDeclareAfterSealPanics(t *testing.T) {
	table, _ := Collect(4, nil)
	defer func() {
		if recover() == nil {
			t.Errorf("Declare on a sealed table did not panic")
		}
	}()
	table.Declare(&Descriptor{Identifier: "#late", Kind: Field, ClassID: 4})
}

func TestTableDescriptorsKeepOrder(t *testing.T) {
	table, _ := Collect(5, []Member{
		{Name: "#z", Private: true, Kind: MemberField},
		{Name: "#a", Private: true, Kind: MemberMethod, Static: true},
		{Name: "#m", Private: true, Kind: MemberGetter},
	})
	var names []string
	for _, d := range table.Descriptors() {
		names = append(names, d.Identifier)
	}
	if strings.Join(names, ",") != "#z,#a,#m" {
		t.Errorf("order = %v", names)
	}
	if !table.HasInstanceNames() || !table.HasStaticNames() {
		t.Errorf("HasInstanceNames/HasStaticNames = %v/%v", table.HasInstanceNames(), table.HasStaticNames())
	}
}

func TestDescriptorIdentity(t *testing.T) {
	outer, _ := Collect(10, []Member{{Name: "#a", Private: true, Kind: MemberGetter}})
	inner, _ := Collect(11, []Member{{Name: "#a", Private: true, Kind: MemberGetter}})
	a1, _ := outer.Lookup("#a")
	a2, _ := inner.Lookup("#a")
	if a1.Key() == a2.Key() {
		t.Errorf("same identifier in two classes must have distinct keys")
	}
}
