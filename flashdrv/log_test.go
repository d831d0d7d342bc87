package flashdrv_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"nordisk/flashdrv"
)

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level   flashdrv.LogLevel
		want    []string
		notWant []string
	}{
		{level: flashdrv.LogDisabled, notWant: []string{"initialized", "write rejected", "sector erased"}},
		{level: flashdrv.LogError, want: []string{"write rejected"}, notWant: []string{"initialized", "sector erased"}},
		{level: flashdrv.LogInfo, want: []string{"initialized", "write rejected"}, notWant: []string{"sector erased"}},
		{level: flashdrv.LogVerbose1, want: []string{"initialized", "write rejected", "sector erased"}, notWant: []string{"word programmed"}},
		{level: flashdrv.LogVerbose2, want: []string{"initialized", "sector erased", "word programmed"}},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			drv, hw := newTestDriver(t)
			var out bytes.Buffer
			drv.SetLogger(slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: flashdrv.LevelTrace})))
			drv.SetLogLevel(tt.level)

			if err := drv.Init(hw.config()); err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			_ = drv.Write(nil, 0, 1)
			if err := drv.Write(pattern(1, logicalSize), 0, 1); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if err := drv.Write(pattern(2, logicalSize), 0, 1); err != nil {
				t.Fatalf("Write() error = %v", err)
			}

			log := out.String()
			for _, s := range tt.want {
				if !strings.Contains(log, s) {
					t.Errorf("log missing %q:\n%s", s, log)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(log, s) {
					t.Errorf("log contains %q:\n%s", s, log)
				}
			}
		})
	}
}

func TestSetLoggerNil(t *testing.T) {
	drv, _ := newTestDriver(t)
	drv.SetLogger(nil)
	drv.SetLogLevel(flashdrv.LogVerbose2)
	if err := drv.Write(pattern(1, logicalSize), 0, 1); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	for l := flashdrv.LogDisabled; l <= flashdrv.LogVerbose2; l++ {
		got, ok := flashdrv.ParseLogLevel(l.String())
		if !ok || got != l {
			t.Errorf("ParseLogLevel(%q) = %v, %v", l.String(), got, ok)
		}
	}
	if _, ok := flashdrv.ParseLogLevel("loud"); ok {
		t.Errorf("ParseLogLevel(loud) ok = true")
	}
}
