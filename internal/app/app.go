// Package app owns the application lifecycle: logging, database, cache,
// hubs, queues and services are constructed once at process start and
// torn down at process stop.
package app

import (
	"context"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/funkostack/funkostore/config"
	"github.com/funkostack/funkostore/internal/cache"
	"github.com/funkostack/funkostore/internal/events"
	"github.com/funkostack/funkostore/internal/graphapi"
	"github.com/funkostack/funkostore/internal/mailer"
	"github.com/funkostack/funkostore/internal/notify"
	"github.com/funkostack/funkostore/internal/service"
	"github.com/funkostack/funkostore/internal/storage"
	"github.com/funkostack/funkostore/internal/workers"
)

type Application struct {
	appConfig *config.AppConfig
	gormDB    *gorm.DB

	kv         *cache.RedisCache
	files      *storage.DiskStore
	funkoHub   *notify.Hub
	catHub     *notify.Hub
	bus        *events.Publisher
	mail       *mailer.Mailer
	mailCancel context.CancelFunc
	dispatcher *workers.Dispatcher
	bridge     *graphapi.SubscriptionBridge

	funkoService *service.FunkoService
	catService   *service.CategoryService
	userService  *service.UserService

	sched *cron.Cron
}

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig                 { return a.appConfig }
func (a *Application) DB() *gorm.DB                              { return a.gormDB }
func (a *Application) FunkoHub() *notify.Hub                     { return a.funkoHub }
func (a *Application) CategoryHub() *notify.Hub                  { return a.catHub }
func (a *Application) Bus() *events.Publisher                    { return a.bus }
func (a *Application) Files() *storage.DiskStore                 { return a.files }
func (a *Application) FunkoService() *service.FunkoService       { return a.funkoService }
func (a *Application) CategoryService() *service.CategoryService { return a.catService }
func (a *Application) UserService() *service.UserService         { return a.userService }
func (a *Application) Bridge() *graphapi.SubscriptionBridge      { return a.bridge }

func (a *Application) Init() error {
	cfg := a.appConfig

	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	a.initLogger()

	a.gormDB, err = openDatabase(cfg.Database, cfg.System.Workdir)
	if err != nil {
		return err
	}
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	if err := a.MigrateDB(); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}
	a.checkAdmin()

	a.kv, err = cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Passwd, cfg.Redis.DB,
		cfg.System.Appid+":", 5*time.Minute)
	if err != nil {
		return err
	}

	a.files, err = storage.NewDiskStore(cfg.Storage.Dir, cfg.Storage.Folder)
	if err != nil {
		return err
	}

	a.funkoHub = notify.NewHub("funkos")
	a.catHub = notify.NewHub("categorias")
	a.bus = events.NewPublisher()

	a.mail = mailer.NewSMTP(cfg.Smtp.Host, cfg.Smtp.Port,
		cfg.Smtp.Username, cfg.Smtp.Password, cfg.Smtp.From)
	var mailCtx context.Context
	mailCtx, a.mailCancel = context.WithCancel(context.Background())
	a.mail.Start(mailCtx)

	a.dispatcher, err = workers.NewDispatcher(32)
	if err != nil {
		return err
	}

	funkoRepo := service.NewGormFunkoRepository(a.gormDB)
	catRepo := service.NewGormCategoryRepository(a.gormDB)
	userRepo := service.NewGormUserRepository(a.gormDB)

	a.funkoService = service.NewFunkoService(funkoRepo, catRepo, a.kv, a.files,
		a.funkoHub, a.bus, a.mail, a.dispatcher, cfg.Smtp.NotifyTo)
	a.catService = service.NewCategoryService(catRepo, funkoRepo, a.kv,
		a.catHub, a.bus, a.dispatcher)
	a.userService = service.NewUserService(userRepo)

	a.bridge = graphapi.NewSubscriptionBridge(a.bus)
	if err := a.bridge.Start(); err != nil {
		return err
	}

	a.initJob()
	return nil
}

// initLogger builds the zap logger per config, with lumberjack rotation
// when file output is enabled.
func (a *Application) initLogger() {
	cfg := a.appConfig

	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}
		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)
}

func (a *Application) MigrateDB() error {
	return a.gormDB.Migrator().AutoMigrate(domainTables()...)
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domainTables()...)
}

func (a *Application) InitDb() {
	a.DropAll()
	if err := a.MigrateDB(); err != nil {
		zap.S().Error(err)
	}
	a.checkAdmin()
}

// Release releases application resources in reverse construction order.
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.bridge != nil {
		a.bridge.Close()
	}
	if a.funkoHub != nil {
		a.funkoHub.Close()
	}
	if a.catHub != nil {
		a.catHub.Close()
	}
	if a.dispatcher != nil {
		a.dispatcher.Release(10 * time.Second)
	}
	if a.mailCancel != nil {
		a.mailCancel()
		a.mail.Drain(10 * time.Second)
	}
	if a.kv != nil {
		_ = a.kv.Close()
	}
	_ = zap.L().Sync()
}
