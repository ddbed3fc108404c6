package dal

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stablepay-api/internal/config"
)

var MainDB *gorm.DB

func InitMainDB() {
	c := config.C.MysqlMain
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
	level := logger.Warn
	if config.C.Server.Mode == "debug" {
		level = logger.Info
	}
	// 配置日志输出
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Duration(c.SlowSqlMs) * time.Millisecond, // 慢 SQL 阈值
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  config.C.Server.Mode == "debug",
		},
	)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:  newLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		log.Fatalf("connect main db failed: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(2 * time.Hour)
	MainDB = db
}

// CloseMainDB 进程退出时关闭连接池
func CloseMainDB() {
	if MainDB == nil {
		return
	}
	if sqlDB, err := MainDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
