// Package db 提供了基于 GORM 的 PostgreSQL 数据库组件。
//
// db 组件在 PostgreSQL 连接器的基础上提供了：
// - GORM ORM 功能封装
// - 事务管理支持
// - 与 L0 基础组件（日志、指标、错误）的深度集成
//
// ## 基本使用
//
//	pgConn, _ := connector.NewPostgreSQL(&cfg.PostgreSQL, connector.WithLogger(logger))
//	defer pgConn.Close()
//	pgConn.Connect(ctx)
//
//	database, _ := db.New(pgConn, &db.Config{}, db.WithLogger(logger))
//
//	// 使用 GORM 进行数据库操作
//	gormDB := database.DB(ctx)
//	var modules []Module
//	gormDB.Where("status = ?", "active").Find(&modules)
//
//	// 事务操作
//	err := database.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
//		return tx.Create(&Module{Name: "test"}).Error
//	})
//
// ## 设计原则
//
// - **借用模型**：db 组件借用 PostgreSQL 连接器的连接，不负责连接的生命周期
// - **显式依赖**：通过构造函数显式注入连接器和选项
// - **简单设计**：使用 Go 原生模式，避免复杂的抽象
// - **可观测性**：SQL 日志经 clog 输出；WithMeter 注入的 Meter 会被保存，但 db 组件本身不记录指标
package db

import (
	"context"

	"github.com/pipestream/broker/clog"
	"github.com/pipestream/broker/connector"
	"github.com/pipestream/broker/metrics"
	"github.com/pipestream/broker/xerrors"
	"gorm.io/gorm"
)

// database 是 DB 接口的实现
type database struct {
	client *gorm.DB
	logger clog.Logger
	meter  metrics.Meter
}

// DB 定义了数据库组件的核心能力
type DB interface {
	// DB 获取底层的 *gorm.DB 实例
	// 绝大多数业务查询直接使用此方法返回的对象
	DB(ctx context.Context) *gorm.DB

	// Transaction 执行事务操作
	// fn 中的 tx 对象仅在当前事务范围内有效
	Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error

	// Close 关闭组件
	Close() error
}

// New 创建数据库组件实例 (独立模式)
// 这是标准的工厂函数，支持在不依赖 Container 的情况下独立实例化
//
// 参数:
//   - conn: PostgreSQL 连接器
//   - cfg: DB 配置
//   - opts: 可选参数 (Logger, Meter)
//
// 使用示例:
//
//	pgConn, _ := connector.NewPostgreSQL(pgConfig)
//	database, _ := db.New(pgConn, &db.Config{}, db.WithLogger(logger))
func New(conn connector.PostgreSQLConnector, cfg *Config, opts ...Option) (DB, error) {
	// 验证配置
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrapf(err, "invalid db config")
	}

	// 应用选项
	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	// 如果没有提供 Logger，使用默认配置创建
	if opt.logger == nil {
		logger, err := clog.New(&clog.Config{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		})
		if err != nil {
			return nil, xerrors.Wrapf(err, "failed to create default logger")
		}
		opt.logger = logger.WithNamespace("db")
	}

	gormDB := conn.GetClient()
	if gormDB != nil {
		// SQL 日志经 clog 输出；WithSilentMode 时不输出
		gormDB = gormDB.Session(&gorm.Session{Logger: newGormLogger(opt.logger, opt.silentMode)})
	}

	return &database{
		client: gormDB,
		logger: opt.logger,
		meter:  opt.meter,
	}, nil
}

// DB 获取底层的 *gorm.DB 实例
func (d *database) DB(ctx context.Context) *gorm.DB {
	return d.client.WithContext(ctx)
}

// Transaction 执行事务操作
func (d *database) Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error {
	return d.client.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx)
	})
}

// Close 关闭组件
func (d *database) Close() error {
	// GORM 的连接由连接器管理，这里不需要额外关闭
	return nil
}
