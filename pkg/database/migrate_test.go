package database

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedVersions_Paired(t *testing.T) {
	versions, err := EmbeddedVersions()
	if err != nil {
		t.Fatalf("EmbeddedVersions 应成功: %v", err)
	}
	if len(versions) == 0 || versions[0] != 1 {
		t.Fatalf("期望从版本 1 开始，实际 %v", versions)
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("版本应严格递增: %v", versions)
		}
	}
}

func TestInitMigration_CreatesWorkflowTables(t *testing.T) {
	b, err := fs.ReadFile(migrationsFS, "migrations/000001_init.up.sql")
	if err != nil {
		t.Fatalf("读取初始迁移失败: %v", err)
	}
	sql := string(b)
	for _, table := range []string{"periodos", "cronogramas", "cronograma_filas"} {
		if !strings.Contains(sql, table) {
			t.Errorf("初始迁移缺少表 %s", table)
		}
	}
}
