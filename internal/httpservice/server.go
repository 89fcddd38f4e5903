package httpservice

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/BlacK-CHi/tincanOpener/internal/core/dispose"
	coreerrors "github.com/BlacK-CHi/tincanOpener/internal/core/errors"
	corelog "github.com/BlacK-CHi/tincanOpener/internal/core/log"
)

// HealthResponse /healthz 响应
type HealthResponse struct {
	Status         string `json:"status"`
	Upstream       string `json:"upstream"`
	Transport      bool   `json:"transport"`
	Clients        int    `json:"clients"`
	CredentialsSet bool   `json:"credentials_set"`
	Time           string `json:"time"`
}

// HTTPService 统一 HTTP 服务
type HTTPService struct {
	*dispose.Base

	config   *HTTPServiceConfig
	router   *mux.Router
	server   *http.Server
	mu       sync.RWMutex
	listener net.Listener
	modules  []HTTPModule
	status   StatusProvider
	metrics  http.Handler
}

// NewHTTPService 创建 HTTP 服务
// metricsHandler 为 nil 或 MetricsPath 为空时不暴露指标
func NewHTTPService(ctx context.Context, config *HTTPServiceConfig, status StatusProvider, metricsHandler http.Handler) *HTTPService {
	s := &HTTPService{
		Base:    dispose.New("HTTPService", ctx),
		config:  config,
		router:  mux.NewRouter(),
		status:  status,
		metrics: metricsHandler,
	}
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.AddCleanHandler(func() error {
		for i := len(s.modules) - 1; i >= 0; i-- {
			if err := s.modules[i].Stop(); err != nil {
				corelog.Warnf("HTTPService: failed to stop module %s: %v", s.modules[i].Name(), err)
			}
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	})
	return s
}

// RegisterModule 注册模块，必须在 Start 之前调用
func (s *HTTPService) RegisterModule(module HTTPModule) {
	if module == nil {
		return
	}
	s.modules = append(s.modules, module)
}

// Start 绑定监听地址并开始服务，绑定失败直接返回错误
func (s *HTTPService) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeConfigError, "listen on %s", s.config.ListenAddr)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.router.Use(loggingMiddleware)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	if s.metrics != nil && s.config.MetricsPath != "" {
		s.router.Handle(s.config.MetricsPath, s.metrics).Methods(http.MethodGet)
	}
	for _, module := range s.modules {
		module.RegisterRoutes(s.router)
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			corelog.Errorf("HTTPService: serve error: %v", err)
		}
	}()

	corelog.Infof("HTTPService: listening on %s", ln.Addr())
	return nil
}

// Addr 实际监听地址，未启动时为 nil
func (s *HTTPService) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop 停止模块并关闭服务
func (s *HTTPService) Stop() error {
	return s.Close()
}

// Router 获取路由器（供测试使用）
func (s *HTTPService) Router() *mux.Router {
	return s.router
}

func (s *HTTPService) handleHealthz(w http.ResponseWriter, r *http.Request) {
	now := time.Now().Format(time.RFC3339)
	if s.status == nil {
		respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Time: now})
		return
	}

	st, err := s.status.Status()
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "stopping", Time: now})
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:         "ok",
		Upstream:       st.State.String(),
		Transport:      st.Transport,
		Clients:        st.Clients,
		CredentialsSet: st.CredentialsSet,
		Time:           now,
	})
}
