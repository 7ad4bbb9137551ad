package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var startTime = time.Now()

// RegisterRuntimeGauges exposes gauges read at scrape time. Go runtime and
// process metrics come from the default registry already.
func RegisterRuntimeGauges(reg prometheus.Registerer, db *gorm.DB, hub *services.RealtimeHub, ws *services.WSHub) error {
	dbStat := func(pick func(open, inUse, idle int) int) func() float64 {
		return func() float64 {
			sqlDB, err := db.DB()
			if err != nil {
				return 0
			}
			s := sqlDB.Stats()
			return float64(pick(s.OpenConnections, s.InUse, s.Idle))
		}
	}

	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mentorhub_uptime_seconds",
			Help: "Time since server start in seconds",
		}, func() float64 { return time.Since(startTime).Seconds() }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mentorhub_db_open_connections",
			Help: "Number of open DB connections",
		}, dbStat(func(open, _, _ int) int { return open })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mentorhub_db_in_use_connections",
			Help: "Number of in-use DB connections",
		}, dbStat(func(_, inUse, _ int) int { return inUse })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mentorhub_db_idle_connections",
			Help: "Number of idle DB connections",
		}, dbStat(func(_, _, idle int) int { return idle })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mentorhub_sse_active_clients",
			Help: "Number of active SSE connections",
		}, func() float64 { return float64(hub.ClientCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mentorhub_ws_active_clients",
			Help: "Number of active websocket connections",
		}, func() float64 { return float64(ws.ClientCount()) }),
	}
	for _, g := range gauges {
		if err := reg.Register(g); err != nil {
			return err
		}
	}
	return nil
}

// Metrics serves the default Prometheus registry.
func Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
