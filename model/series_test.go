package model

import (
	"testing"
	"time"
)

func TestPointListScanValue(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	list := PointList{{At: at, Value: 1000}, {At: at.Add(time.Hour), Value: 1200}}

	v, err := list.Value()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		input interface{}
		want  int
	}{
		{"string column", v, 2},
		{"bytes column", []byte(v.(string)), 2},
		{"null", nil, 0},
		{"json null", "null", 0},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got PointList
			if err := got.Scan(tt.input); err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
			if tt.want == 2 && (!got[1].At.Equal(at.Add(time.Hour)) || got[1].Value != 1200) {
				t.Errorf("got = %+v", got)
			}
		})
	}

	var empty PointList
	if v, _ := empty.Value(); v != "[]" {
		t.Errorf("nil list Value() = %v, want []", v)
	}
}
