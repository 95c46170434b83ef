package util

import (
	"testing"
	"time"
)

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		set   bool
		want  int
	}{
		{name: "unset", want: 7},
		{name: "valid", value: "12", set: true, want: 12},
		{name: "invalid", value: "twelve", set: true, want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv("COGNIFY_TEST_INT", tt.value)
			}
			if got := GetEnvInt("COGNIFY_TEST_INT", 7); got != tt.want {
				t.Fatalf("GetEnvInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "duration string", value: "90s", want: 90 * time.Second},
		{name: "plain seconds", value: "30", want: 30 * time.Second},
		{name: "garbage", value: "soon", want: time.Minute},
		{name: "empty", value: "", want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("COGNIFY_TEST_DURATION", tt.value)
			if got := GetEnvDuration("COGNIFY_TEST_DURATION", time.Minute); got != tt.want {
				t.Fatalf("GetEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("COGNIFY_TEST_BOOL", "yes")
	if !GetEnvBool("COGNIFY_TEST_BOOL", true) {
		t.Fatal("expected default for unparseable value")
	}
	t.Setenv("COGNIFY_TEST_BOOL", "false")
	if GetEnvBool("COGNIFY_TEST_BOOL", true) {
		t.Fatal("expected false")
	}
}
