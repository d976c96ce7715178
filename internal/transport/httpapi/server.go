package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"swingbot/internal/backtest"
	"swingbot/internal/report"
)

// Server 提供 Gin 接口：提交回测、查询进度与结果、拉取报告。
type Server struct {
	addr    string
	svc     *backtest.Service
	results *backtest.ResultStore
	router  *gin.Engine
}

type Config struct {
	Addr    string
	Service *backtest.Service
	Results *backtest.ResultStore
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil || cfg.Results == nil {
		return nil, errors.New("service/results 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9992"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:    cfg.Addr,
		svc:     cfg.Service,
		results: cfg.Results,
		router:  router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api/backtest")
	api.POST("/runs", s.handleRunStart)
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
	api.GET("/runs/:id/trades", s.handleRunTrades)
	api.GET("/runs/:id/equity", s.handleRunEquity)
	api.GET("/runs/:id/report", s.handleRunReport)
	api.GET("/runs/:id/report.png", s.handleRunReportPNG)
}

func (s *Server) handleRunStart(c *gin.Context) {
	var req backtest.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.svc.Submit(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": id})
}

func (s *Server) handleRunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.results.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	run, err := s.results.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (s *Server) handleRunTrades(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))
	trades, err := s.results.ListTrades(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleRunEquity(c *gin.Context) {
	points, err := s.results.ListEquity(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"equity": points})
}

func (s *Server) handleRunReport(c *gin.Context) {
	html, err := s.renderReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (s *Server) handleRunReportPNG(c *gin.Context) {
	html, err := s.renderReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	png, err := report.SnapshotPNG(c.Request.Context(), html)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": fmt.Sprintf("PNG 渲染不可用: %v", err)})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// renderReport 从存储重建报告所需的最小结果结构。
func (s *Server) renderReport(ctx context.Context, runID string) ([]byte, error) {
	run, err := s.results.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != backtest.RunCompleted {
		return nil, fmt.Errorf("运行 %s 尚未完成 (status=%s)", runID, run.Status)
	}
	points, err := s.results.ListEquity(ctx, runID)
	if err != nil {
		return nil, err
	}
	res := &backtest.Result{RunID: run.ID}
	if len(run.Stats) > 0 {
		if err := json.Unmarshal(run.Stats, &res.Stats); err != nil {
			return nil, fmt.Errorf("解析运行统计失败: %w", err)
		}
	}
	for _, p := range points {
		res.EquityCurve = append(res.EquityCurve, backtest.EquityPoint{
			Date:          p.Date,
			Equity:        p.Equity,
			Cash:          p.Cash,
			OpenPositions: p.OpenPositions,
			Drawdown:      p.Drawdown,
			DrawdownPct:   p.DrawdownPct,
			DailyPnL:      p.DailyPnL,
			DailyReturn:   p.DailyReturn,
		})
	}
	return report.BuildHTML(res)
}

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
