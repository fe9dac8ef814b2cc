package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

const namespace = "course_referral"

var (
	commissionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commission_transitions_total",
		Help:      "Commission status transitions by source and target status.",
	}, []string{"from", "to", "source"})

	commissionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commissions_created_total",
		Help:      "Commission records created from completed payments.",
	})

	payoutAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payout_amount_total",
		Help:      "Settled payout amount in base currency by method.",
	}, []string{"method"})

	payoutRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payout_requests_total",
		Help:      "Payout request workflow events by resulting status.",
	}, []string{"status"})

	gatewayDispatch = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payout_gateway_dispatch_total",
		Help:      "External payout gateway calls by gateway and result.",
	}, []string{"gateway", "result"})

	domainErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_rejections_total",
		Help:      "Ledger operations rejected with a client-recoverable error.",
	}, []string{"operation", "reason"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// ObserveTransition 记录佣金状态流转
func ObserveTransition(from, to, source string, count int) {
	if count <= 0 {
		return
	}
	commissionTransitions.WithLabelValues(from, to, source).Add(float64(count))
}

// ObserveCommissionCreated 记录佣金创建
func ObserveCommissionCreated() {
	commissionsCreated.Inc()
}

// ObservePayout 记录结算金额
func ObservePayout(method string, amount decimal.Decimal) {
	f, _ := amount.Float64()
	if f <= 0 {
		return
	}
	payoutAmount.WithLabelValues(method).Add(f)
}

// ObservePayoutRequest 记录提现申请事件
func ObservePayoutRequest(status string) {
	payoutRequests.WithLabelValues(status).Inc()
}

// ObserveGatewayDispatch 记录外部打款结果
func ObserveGatewayDispatch(gateway string, ok bool) {
	result := "succeeded"
	if !ok {
		result = "failed"
	}
	gatewayDispatch.WithLabelValues(gateway, result).Inc()
}

// ObserveRejection 记录业务拒绝
func ObserveRejection(operation, reason string) {
	domainErrors.WithLabelValues(operation, reason).Inc()
}

// GinMiddleware 记录 HTTP 请求耗时
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
