package relay

import (
	"context"
	"net/http"

	"github.com/BlacK-CHi/tincanOpener/internal/httpservice"
)

type httpHandler = http.Handler

// httpRunner 把 HTTPService 接入 ServiceManager
type httpRunner struct {
	svc *httpservice.HTTPService
}

func (r *httpRunner) Name() string { return "http" }

func (r *httpRunner) Start(ctx context.Context) error {
	return r.svc.Start()
}

func (r *httpRunner) Stop(ctx context.Context) error {
	return r.svc.Stop()
}
