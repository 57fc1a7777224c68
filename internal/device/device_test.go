package device

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Device
		wantErr bool
	}{
		{"", CPU, false},
		{"auto", CPU, false},
		{"CPU", CPU, false},
		{"gpu", CUDA, false},
		{"cuda", CUDA, false},
		{"tpu", "", true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("Parse(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestResolve_FallsBackToCPU(t *testing.T) {
	if got := Resolve(CUDA); got != CPU {
		t.Errorf("Resolve(cuda) = %q, want cpu", got)
	}
	if got := Resolve(CPU); got != CPU {
		t.Errorf("Resolve(cpu) = %q, want cpu", got)
	}
}

func TestForLoad(t *testing.T) {
	if got := ForLoad("cuda", CPU); got != CPU {
		t.Errorf("ForLoad(cuda, cpu) = %q, want cpu", got)
	}
	if got := ForLoad("", CUDA); got != CPU {
		t.Errorf("ForLoad(\"\", cuda) = %q, want cpu", got)
	}
}
