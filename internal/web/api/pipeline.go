package api

import (
	"github.com/gin-gonic/gin"
	"github.com/ixugo/goddd/pkg/web"
	"github.com/steelvision/ingot/internal/conf"
	"github.com/steelvision/ingot/internal/core/pipeline"
)

// PipelineAPI 为 http 提供业务方法
type PipelineAPI struct {
	pipelineCore *pipeline.Core
	conf         *conf.Bootstrap
}

func NewPipelineAPI(core *pipeline.Core, cfg *conf.Bootstrap) PipelineAPI {
	return PipelineAPI{pipelineCore: core, conf: cfg}
}

func RegisterPipeline(g gin.IRouter, api PipelineAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/pipelines", handler...)
	group.GET("", web.WrapH(api.getStatus))
	group.GET("/sources", web.WrapH(api.getSources))
	group.POST("/:id/start", web.WrapH(api.startPipeline))
	group.POST("/:id/stop", web.WrapH(api.stopPipeline))
	group.POST("/video", web.WrapH(api.startVideoFile))
}

// getStatus 运行中的管线列表
func (a PipelineAPI) getStatus(_ *gin.Context, _ *struct{}) (any, error) {
	items := a.pipelineCore.Status()
	return gin.H{"items": items, "total": len(items)}, nil
}

// getSources 配置中的全部源
func (a PipelineAPI) getSources(_ *gin.Context, _ *struct{}) (any, error) {
	return gin.H{"items": a.conf.Sources, "total": len(a.conf.Sources)}, nil
}

// startPipeline 启动一路源，重复启动返回错误
func (a PipelineAPI) startPipeline(c *gin.Context, _ *struct{}) (*pipeline.RunnerInfo, error) {
	return a.pipelineCore.Start(c.Param("id"))
}

// stopPipeline 停止一路源，任务超时未退出时在响应里标记 forced
func (a PipelineAPI) stopPipeline(c *gin.Context, _ *struct{}) (*pipeline.StopOutput, error) {
	return a.pipelineCore.Stop(c.Param("id"))
}

// startVideoFile 启动一路临时视频文件源，用于历史录像复盘
func (a PipelineAPI) startVideoFile(_ *gin.Context, in *pipeline.StartFileInput) (*pipeline.RunnerInfo, error) {
	return a.pipelineCore.StartFile(in)
}
