package api

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/RecoveryAshes/storecrawl/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// NewRouter 注册表单前端的路由
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", h.Index)
	r.Get("/health", h.Health)

	r.Route("/api/runs", func(r chi.Router) {
		r.Post("/", h.StartRun)
		r.Get("/current", h.CurrentRun)
		r.Post("/current/stop", h.StopRun)
	})

	return r
}

// Server 本地表单服务
type Server struct {
	addr     string
	handlers *Handlers
}

// NewServer 创建表单服务
func NewServer(addr string, h *Handlers) *Server {
	return &Server{addr: addr, handlers: h}
}

// Run 启动服务,ctx取消时关闭服务并取消正在进行的运行
func (s *Server) Run(ctx context.Context) error {
	s.handlers.ctx = ctx

	server := &http.Server{
		Addr:         s.addr,
		Handler:      NewRouter(s.handlers),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Infof("🖥️  表单服务已启动: http://%s", s.addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("表单服务启动失败: %w", err)
	case <-ctx.Done():
	}

	utils.Info("正在关闭表单服务...")
	s.handlers.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("关闭表单服务失败: %w", err)
	}
	return nil
}
