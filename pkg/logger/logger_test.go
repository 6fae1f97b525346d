package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"titulacion/backend/config"
)

func TestBuildConfig_JSONDefaults(t *testing.T) {
	cfg, err := buildConfig(&config.LogConfig{Level: "info"})
	if err != nil {
		t.Fatalf("buildConfig 应成功: %v", err)
	}
	if cfg.Encoding != "json" {
		t.Errorf("期望 json 编码，实际 %s", cfg.Encoding)
	}
	if cfg.Sampling == nil {
		t.Error("info 级别应保留采样")
	}
	if cfg.Level.Level() != zapcore.InfoLevel {
		t.Errorf("期望 info 级别，实际 %s", cfg.Level.Level())
	}
}

func TestBuildConfig_DebugDisablesSampling(t *testing.T) {
	cfg, err := buildConfig(&config.LogConfig{Level: "debug", Format: "json"})
	if err != nil {
		t.Fatalf("buildConfig 应成功: %v", err)
	}
	if cfg.Sampling != nil {
		t.Error("debug 级别应关闭采样")
	}
}

func TestBuildConfig_ConsoleAndOutputPaths(t *testing.T) {
	cfg, err := buildConfig(&config.LogConfig{Level: "warn", Format: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		t.Fatalf("buildConfig 应成功: %v", err)
	}
	if cfg.Encoding != "console" {
		t.Errorf("期望 console 编码，实际 %s", cfg.Encoding)
	}
	if len(cfg.OutputPaths) != 1 || cfg.OutputPaths[0] != "stderr" {
		t.Errorf("期望输出到 stderr，实际 %v", cfg.OutputPaths)
	}
}

func TestBuildConfig_Invalid(t *testing.T) {
	cases := []config.LogConfig{
		{Level: "verbose"},
		{Level: "info", Format: "xml"},
	}
	for _, c := range cases {
		c := c
		if _, err := buildConfig(&c); err == nil {
			t.Errorf("期望 %+v 返回错误", c)
		}
	}
}
