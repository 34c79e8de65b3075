package admin

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikekulinski/zkstate/pkg/journal"
	"github.com/mikekulinski/zkstate/pkg/logging"
	"github.com/mikekulinski/zkstate/pkg/server"
	"github.com/mikekulinski/zkstate/pkg/zookeeper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _adminLogger = logging.NewLogger("admin")

// Words are the four-letter commands reachable over HTTP, one route each.
var Words = []string{"ruok", "srvr", "dump", "conf", "envi"}

// Admin serves diagnostics about a running Service over HTTP.
type Admin struct {
	engine  *gin.Engine
	service *server.Service
	journal *journal.Journal
}

// New builds the admin routes. The /journal route is only served when j is not nil.
func New(service *server.Service, j *journal.Journal) *Admin {
	a := &Admin{
		engine:  gin.New(),
		service: service,
		journal: j,
	}
	a.engine.Use(gin.Recovery())
	a.engine.Use(errorHandler)

	for _, word := range Words {
		a.engine.GET("/"+word, a.command(word))
	}
	a.engine.GET("/stats", a.stats)
	a.engine.GET("/ephemerals", a.ephemerals)
	a.engine.GET("/snapshot", a.snapshot)
	if j != nil {
		a.engine.GET("/journal", a.journalFrames)
	}
	a.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(service.Server().Metrics().Registry, promhttp.HandlerOpts{})))
	return a
}

func (a *Admin) Handler() http.Handler {
	return a.engine
}

// errorHandler responds with the first error a handler recorded.
func errorHandler(ctx *gin.Context) {
	ctx.Next()
	if len(ctx.Errors) == 0 {
		return
	}
	err := ctx.Errors[0].Err
	code := http.StatusInternalServerError
	if errors.Is(err, server.ErrExecutorStopped) {
		code = http.StatusServiceUnavailable
	}
	_adminLogger.Warnf("%s %s: %v", ctx.Request.Method, ctx.Request.URL.Path, err)
	ctx.String(code, err.Error())
}

func (a *Admin) command(word string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		resp, err := a.service.Executor().Anonymous.Submit(zookeeper.FourLetterRequest{Word: word}).Get(ctx.Request.Context())
		if err != nil {
			_ = ctx.Error(err)
			return
		}
		ctx.String(http.StatusOK, resp.Text)
	}
}

type statsResponse struct {
	LastZxid   string `json:"last_zxid"`
	NodeCount  int    `json:"node_count"`
	Ephemerals int    `json:"ephemerals"`
	Sessions   int    `json:"sessions"`
	Processed  int64  `json:"processed"`
	Uptime     string `json:"uptime"`
}

func (a *Admin) stats(ctx *gin.Context) {
	stats := a.service.Server().Stats()
	ctx.JSON(http.StatusOK, statsResponse{
		LastZxid:   stats.LastZxid.String(),
		NodeCount:  stats.NodeCount,
		Ephemerals: stats.Ephemerals,
		Sessions:   a.service.Sessions().Len(),
		Processed:  stats.Processed,
		Uptime:     stats.Uptime.String(),
	})
}

// ephemerals lists the ephemeral paths of every session, keyed by the session id in hex.
func (a *Admin) ephemerals(ctx *gin.Context) {
	out := map[string][]string{}
	for id, paths := range a.service.Server().Ephemerals() {
		out[fmt.Sprintf("0x%x", id)] = paths
	}
	ctx.JSON(http.StatusOK, out)
}

// snapshot returns the canonical CBOR encoding of the namespace.
func (a *Admin) snapshot(ctx *gin.Context) {
	data, err := a.service.Server().Snapshot()
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	ctx.Header("X-Last-Zxid", a.service.Server().LastZxid().String())
	ctx.Data(http.StatusOK, "application/cbor", data)
}

// journalFrames returns every journal frame recorded so far.
func (a *Admin) journalFrames(ctx *gin.Context) {
	ctx.Header("X-Journal-Records", strconv.Itoa(a.journal.Len()))
	ctx.Header("X-Last-Zxid", a.journal.LastZxid().String())
	ctx.Data(http.StatusOK, "application/octet-stream", a.journal.Bytes())
}
