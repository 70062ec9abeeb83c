package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	commandhandler "crypto_quote_bot/internal/feature/command/transport/handler"
	"crypto_quote_bot/internal/platform/http/handler"
	jwtmw "crypto_quote_bot/internal/platform/jwt"
)

func NewRouter(health *handler.HealthHandler, commands *commandhandler.CommandHandler, gatewaySecret string) *gin.Engine {
	r := gin.Default()

	// 認証不要
	// 導通確認用（DB / Redis）
	r.GET("/healthz", health.Health)
	r.HEAD("/healthz", health.Health)
	r.OPTIONS("/healthz", health.Health)
	// Prometheus
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ゲートウェイからのコマンドはサービストークン必須
	v1 := r.Group("/v1")
	v1.Use(jwtmw.GatewayAuth(gatewaySecret))
	{
		v1.POST("/commands/quote", commands.Quote)
		v1.GET("/quota/:userId", commands.Usage)
	}

	return r
}
