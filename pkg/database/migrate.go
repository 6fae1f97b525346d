package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// ErrDirtySchema 上次迁移中断，需人工修复后再启动
var ErrDirtySchema = errors.New("数据库迁移处于 dirty 状态")

// RunMigrations 执行嵌入的全部 up 迁移。
// schema 为 dirty 时拒绝执行，返回 ErrDirtySchema。
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	versions, err := EmbeddedVersions()
	if err != nil {
		return err
	}
	latest := versions[len(versions)-1]

	src, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return fmt.Errorf("加载迁移文件失败: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("创建迁移驱动失败: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("初始化迁移实例失败: %w", err)
	}

	from, dirty, err := currentVersion(m)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("%w（version=%d）", ErrDirtySchema, from)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("执行迁移失败: %w", err)
	}

	to, _, err := currentVersion(m)
	if err != nil {
		return err
	}
	if to != latest {
		logger.Warn("迁移后版本与嵌入的最新版本不一致", zap.Uint("version", to), zap.Uint("latest", latest))
	}
	if to == from {
		logger.Info("数据库结构已是最新", zap.Uint("version", to))
	} else {
		logger.Info("数据库迁移完成", zap.Uint("from", from), zap.Uint("to", to))
	}
	return nil
}

// currentVersion 当前迁移版本，尚未迁移时为 0
func currentVersion(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("读取迁移版本失败: %w", err)
	}
	return v, dirty, nil
}

// EmbeddedVersions 嵌入迁移的版本号（升序），要求每个版本同时提供 up 与 down
func EmbeddedVersions() ([]uint, error) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	if err != nil {
		return nil, err
	}

	dirs := make(map[uint]map[source.Direction]bool)
	for _, e := range entries {
		name := e.Name()
		m, err := source.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("迁移文件名无效 %s: %w", path.Join(migrationsDir, name), err)
		}
		if dirs[m.Version] == nil {
			dirs[m.Version] = make(map[source.Direction]bool)
		}
		dirs[m.Version][m.Direction] = true
	}

	if len(dirs) == 0 {
		return nil, errors.New("未找到嵌入的迁移文件")
	}

	versions := make([]uint, 0, len(dirs))
	var missing []string
	for v, d := range dirs {
		if !d[source.Up] || !d[source.Down] {
			missing = append(missing, strconv.FormatUint(uint64(v), 10))
		}
		versions = append(versions, v)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("迁移版本缺少 up/down 文件: %s", strings.Join(missing, ", "))
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}
