package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/steelvision/ingot/internal/conf"
	"github.com/steelvision/ingot/internal/data"
	"github.com/steelvision/ingot/internal/core/event"
	"github.com/steelvision/ingot/internal/core/event/store/eventdb"
	"github.com/steelvision/ingot/internal/core/event/store/eventrds"
	"github.com/steelvision/ingot/internal/core/pipeline"
	"github.com/steelvision/ingot/internal/core/vision"
	"github.com/steelvision/ingot/pkg/framebroker"
	"gorm.io/gorm"
)

var ProviderSet = wire.NewSet(
	wire.Struct(new(Usecase), "*"),
	NewHTTPHandler,
	NewEventStore, NewRemoteStore, NewEventCore, NewEventAPI,
	NewFrameQueue, NewVisionEngine,
	NewPipelineCore, NewPipelineAPI,
	NewUserAPI,
)

type Usecase struct {
	Conf *conf.Bootstrap
	DB   *gorm.DB

	UserAPI     UserAPI
	EventAPI    EventAPI
	PipelineAPI PipelineAPI
}

// NewHTTPHandler 生成Gin框架路由内容
func NewHTTPHandler(uc *Usecase) http.Handler {
	cfg := uc.Conf
	if cfg.Server.HTTP.JwtSecret == "" {
		cfg.Server.HTTP.JwtSecret = orm.GenerateRandomString(32)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	g := gin.New()
	g.NoRoute(func(c *gin.Context) {
		c.JSON(404, "来到了无人的荒漠")
	})
	setupRouter(g, uc)
	return g
}

// NewEventStore 创建事件存储层，顺带迁移旧采集程序的历史数据
func NewEventStore(db *gorm.DB) event.Storer {
	store := eventdb.NewDB(db).AutoMigrate(orm.GetEnabledAutoMigrate())
	if err := data.MigrateLegacyData(db); err != nil {
		slog.Warn("legacy data migration failed", "err", err)
	}
	return store
}

// NewRemoteStore 远端主数据库，连接按需建立
func NewRemoteStore(cfg *conf.Bootstrap) event.RemoteStorer {
	return eventrds.NewDB(cfg.Data.Remote)
}

func NewEventCore(store event.Storer, remote event.RemoteStorer, cfg *conf.Bootstrap) event.Core {
	core := event.NewCore(store,
		event.WithRemote(remote),
		event.WithConfig(&cfg.Sync),
	)

	// 启动同步与清理协程
	go core.StartSyncWorker(context.Background())
	go core.StartCleanupWorker(cfg.Sync.RetainDays, cfg.Pipeline.OutputDir)

	return core
}

// NewFrameQueue 帧队列客户端
func NewFrameQueue(cfg *conf.Bootstrap) pipeline.FrameQueue {
	return framebroker.NewClient(framebroker.Config{
		URL:         cfg.Broker.URL,
		QueueMaxLen: cfg.Broker.QueueMaxLen,
		MessageTTL:  cfg.Broker.MessageTTL.Duration(),
		Heartbeat:   cfg.Broker.Heartbeat.Duration(),
	})
}

// NewVisionEngine 外部分析服务客户端，OCR 与跟踪共用一个端点
func NewVisionEngine(cfg *conf.Bootstrap) vision.Engine {
	return vision.NewEngine(cfg.Vision.Endpoint, cfg.Vision.Timeout.Duration())
}

func NewPipelineCore(cfg *conf.Bootstrap, queue pipeline.FrameQueue, events event.Core, eng vision.Engine) (*pipeline.Core, func()) {
	core := pipeline.NewCore(cfg, queue, events, eng, eng)

	// 配置中的源随服务启动，停机时停掉所有管线
	go core.StartConfigured()

	return core, core.StopAll
}
