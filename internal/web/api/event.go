package api

import (
	"net/http"
	"strconv"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
	"github.com/steelvision/ingot/internal/core/event"
)

// EventAPI 为 http 提供业务方法
type EventAPI struct {
	eventCore event.Core
}

func NewEventAPI(core event.Core) EventAPI {
	return EventAPI{eventCore: core}
}

func RegisterEvent(g gin.IRouter, api EventAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/events", handler...)
	// 事件列表是现场巡检页的高频轮询接口，响应启用压缩
	list := group.Group("", gzip.Gzip(gzip.DefaultCompression))
	list.GET("/barcodes", web.WrapH(api.findBarcodes))
	list.GET("/ingots", web.WrapH(api.findIngots))

	group.GET("/image/barcodes/:id", api.getBarcodeImage)
	group.GET("/image/ingots/:id", api.getIngotImage)
}

// findBarcodes 分页查询条码事件
func (a EventAPI) findBarcodes(c *gin.Context, in *event.FindEventInput) (any, error) {
	items, total, err := a.eventCore.FindBarcodes(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, err
}

// findIngots 分页查询钢锭计数事件
func (a EventAPI) findIngots(c *gin.Context, in *event.FindEventInput) (any, error) {
	items, total, err := a.eventCore.FindIngots(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, err
}

// getBarcodeImage 返回事件发生时的帧图片
func (a EventAPI) getBarcodeImage(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	out, err := a.eventCore.GetBarcode(c.Request.Context(), id)
	if err != nil {
		web.Fail(c, err)
		return
	}
	if len(out.FrameData) == 0 {
		web.Fail(c, reason.ErrNotFound)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", out.FrameData)
}

func (a EventAPI) getIngotImage(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	out, err := a.eventCore.GetIngot(c.Request.Context(), id)
	if err != nil {
		web.Fail(c, err)
		return
	}
	if len(out.FrameData) == 0 {
		web.Fail(c, reason.ErrNotFound)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", out.FrameData)
}
