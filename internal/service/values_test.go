package service_test

import (
	"testing"

	"github.com/cortexai/chatbi/internal/service"
)

func TestToFloat(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{int(1), 1, true},
		{int8(-2), -2, true},
		{int16(3), 3, true},
		{int32(4), 4, true},
		{int64(5), 5, true},
		{uint(6), 6, true},
		{uint8(7), 7, true},
		{uint16(8), 8, true},
		{uint32(9), 9, true},
		{uint64(10), 10, true},
		{float32(1.5), 1.5, true},
		{2.25, 2.25, true},
		{"3", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := service.ToFloat(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ToFloat(%#v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
