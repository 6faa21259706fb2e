package model

import (
	"reflect"
	"testing"
)

func TestParseReturnChoice(t *testing.T) {
	tests := []struct {
		input   string
		want    ReturnChoice
		wantErr bool
	}{
		{"previous", PreviousSelection, false},
		{"errors", ErrorsOnly, false},
		{"  Errors ", ErrorsOnly, false},
		{"PREVIOUS", PreviousSelection, false},
		{"", "", true},
		{"failed", "", true},
	}

	for _, tt := range tests {
		got, err := ParseReturnChoice(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseReturnChoice(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseReturnChoice(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestResolvePreviousSelectionUntouched(t *testing.T) {
	s := NewSession([]string{"db1", "db2"})
	s.Apply("db1", TargetState{Phase: PhaseError, Diagnostic: "boom"})
	s.Apply("db2", TargetState{Phase: PhaseSuccess})

	prior := SelectionSet{"db2", "db7"}
	got := Resolve(s, PreviousSelection, prior)
	if !reflect.DeepEqual(got, prior) {
		t.Errorf("Resolve(PreviousSelection) = %v, want prior %v untouched", got, prior)
	}
}

func TestResolveErrorsOnly(t *testing.T) {
	tests := []struct {
		name   string
		phases map[string]Phase
		want   SelectionSet
	}{
		{
			name:   "some failed",
			phases: map[string]Phase{"db1": PhaseError, "db2": PhaseSuccess, "db3": PhaseError},
			want:   SelectionSet{"db1", "db3"},
		},
		{
			name:   "none failed",
			phases: map[string]Phase{"db1": PhaseSuccess, "db2": PhaseSuccess},
			want:   SelectionSet{},
		},
		{
			name:   "all failed",
			phases: map[string]Phase{"db1": PhaseError, "db2": PhaseError},
			want:   SelectionSet{"db1", "db2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := make([]string, 0, len(tt.phases))
			for _, n := range []string{"db1", "db2", "db3"} {
				if _, ok := tt.phases[n]; ok {
					names = append(names, n)
				}
			}
			s := NewSession(names)
			for n, p := range tt.phases {
				s.Apply(n, TargetState{Phase: p})
			}

			got := Resolve(s, ErrorsOnly, SelectionSet{"db1", "db2", "db3"})
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve(ErrorsOnly) = %v, want %v", got, tt.want)
			}
		})
	}
}
