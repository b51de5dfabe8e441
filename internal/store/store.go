package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/excrawl/excrawl/internal/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Table 是唯一的一张表；列与 ObjectRecord 一一对应（ood 为派生值的快照）。
const Table = "entities"

const schema = `CREATE TABLE IF NOT EXISTS entities (
	shot TEXT,
	name TEXT,
	objProd TEXT,
	shotVer INTEGER,
	objVer INTEGER,
	objHighest INTEGER,
	ood TEXT,
	mayafile TEXT
)`

const insertSQL = `INSERT INTO entities (shot, name, objProd, shotVer, objVer, objHighest, ood, mayafile) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// ErrUnknownDriver 表示配置了不支持的数据库驱动。
var ErrUnknownDriver = errors.New("store: 未知驱动")

// Store 是持久化库的唯一持有者（crawl 驱动层），不会被抽取 worker 并发访问。
//
// 写入语义：只追加，不去重。同一输入重复 crawl 会得到重复行，这是有意保留的行为。
type Store struct {
	db     *sql.DB
	driver string
	log    *zap.Logger
}

// DefaultDSN 是 sqlite 的默认库文件位置。
func DefaultDSN() string {
	return filepath.Join(os.TempDir(), "excrawler.db")
}

// Open 打开（必要时创建）持久化库，并确保表存在。已存在的表原样复用，不重建、不清空。
func Open(ctx context.Context, driver, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = DriverSQLite
	}
	name, err := sqlDriverName(driver)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		if strings.TrimSpace(dsn) == "" {
			dsn = DefaultDSN()
		}
		if err := ensureParentDir(dsn); err != nil {
			return nil, fmt.Errorf("创建库目录失败：%w", err)
		}
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败：%w", err)
	}
	if driver == DriverSQLite {
		// 单写者：避免 sqlite 在多连接下的 SQLITE_BUSY。
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("连接数据库失败：%w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化表结构失败：%w", err)
	}

	log.Debug("持久化库就绪", zap.String("driver", driver), zap.String("dsn", redactDSN(driver, dsn)))
	return &Store{db: db, driver: driver, log: log}, nil
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	return s.db.Close()
}

// Batch 是一个 shot 的写入批次：Insert 若干次后 Commit 一次；中途放弃则 Rollback。
type Batch struct {
	tx   *sql.Tx
	stmt *sql.Stmt
	log  *zap.Logger
	n    int
}

// Begin 开启一个新批次。
func (s *Store) Begin(ctx context.Context) (*Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("开启事务失败：%w", err)
	}
	stmt, err := tx.PrepareContext(ctx, rebind(s.driver, insertSQL))
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("准备 insert 失败：%w", err)
	}
	return &Batch{tx: tx, stmt: stmt, log: s.log}, nil
}

// Insert 追加一条记录（不去重）。
func (b *Batch) Insert(ctx context.Context, rec domain.ObjectRecord) error {
	_, err := b.stmt.ExecContext(ctx,
		string(rec.Shot),
		rec.Name,
		rec.ObjectName,
		rec.ShotVersion,
		rec.ObjectVersion,
		rec.ObjectHighestVersion,
		strconv.FormatBool(rec.OutOfDate()),
		rec.MediaFile,
	)
	if err != nil {
		return fmt.Errorf("写入 %s/%s 失败：%w", rec.Shot, rec.Name, err)
	}
	b.n++
	return nil
}

// Commit 提交批次。
func (b *Batch) Commit() error {
	_ = b.stmt.Close()
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败：%w", err)
	}
	b.log.Debug("批次已提交", zap.Int("rows", b.n))
	return nil
}

// Rollback 放弃批次；已提交/已回滚的批次再次调用是安全的。
func (b *Batch) Rollback() error {
	_ = b.stmt.Close()
	if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// Count 返回表中的总行数。
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+Table).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ShotStats 按 shot 统计 object 数与 out-of-date 数（按 shot 升序）。
// 注意：库不去重，重复 crawl 会让计数成倍增加。
func (s *Store) ShotStats(ctx context.Context) ([]domain.ShotStat, error) {
	q := `SELECT shot, COUNT(*), COUNT(CASE WHEN ood = 'true' THEN 1 END)
FROM entities GROUP BY shot ORDER BY shot`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ShotStat, 0, 32)
	for rows.Next() {
		var (
			shot string
			st   domain.ShotStat
		)
		if err := rows.Scan(&shot, &st.Objects, &st.OutOfDate); err != nil {
			return nil, err
		}
		st.Shot = domain.ShotID(shot)
		out = append(out, st)
	}
	return out, rows.Err()
}

func sqlDriverName(driver string) (string, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite", nil
	case DriverPostgres:
		return "pgx", nil
	case DriverMySQL:
		return "mysql", nil
	default:
		return "", fmt.Errorf("%w：%q（可选 sqlite|postgres|mysql）", ErrUnknownDriver, driver)
	}
}

// rebind 把 ? 占位符改写为 postgres 的 $n 形式。
func rebind(driver, q string) string {
	if driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func ensureParentDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	return os.MkdirAll(filepath.Dir(dsn), 0o755)
}

func redactDSN(driver, dsn string) string {
	if driver == DriverSQLite {
		return dsn
	}
	// 网络库 DSN 可能含密码：日志只保留 @ 之后的部分。
	if i := strings.LastIndex(dsn, "@"); i >= 0 {
		return "***" + dsn[i:]
	}
	return dsn
}
