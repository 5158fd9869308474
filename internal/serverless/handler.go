// Package serverless はAPI Gateway (HTTP API, payload v2) のイベントを
// net/httpのハンドラーに変換して処理する。
package serverless

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/hitoshi/foodshare/internal/middleware"
	"github.com/hitoshi/foodshare/internal/model"
)

// DefaultConnectTimeout は呼び出しごとのストア接続試行のタイムアウト。
const DefaultConnectTimeout = 5 * time.Second

// Connector は呼び出しのたびに接続を確立する依存。接続済みなら何もしないこと。
type Connector interface {
	Connect(ctx context.Context) error
}

// Handler はLambdaのハンドラー。lambda.Startに Handle を渡す。
type Handler struct {
	handler        http.Handler
	connector      Connector
	logger         *slog.Logger
	connectTimeout time.Duration
}

// Option はHandlerの設定を変更する。
type Option func(*Handler)

// WithConnectTimeout は接続試行のタイムアウトを設定する。
func WithConnectTimeout(d time.Duration) Option {
	return func(h *Handler) { h.connectTimeout = d }
}

// NewHandler はHandlerを生成する。connectorがnilの場合は接続を試みない。
func NewHandler(handler http.Handler, connector Connector, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		handler:        handler,
		connector:      connector,
		logger:         logger,
		connectTimeout: DefaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle は1回の呼び出しを処理する。
// ストアに接続できなかった場合もリクエストはルーターに渡し、ルーター側で503を返す。
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if h.connector != nil {
		connectCtx, cancel := context.WithTimeout(ctx, h.connectTimeout)
		if err := h.connector.Connect(connectCtx); err != nil {
			h.logger.WarnContext(ctx, "store connection failed",
				slog.String("error", err.Error()),
			)
		}
		cancel()
	}

	req, err := NewRequest(ctx, event)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid gateway event", slog.String("error", err.Error()))
		w := newResponseWriter()
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストの形式が不正です"))
		return w.response(), nil
	}

	w := newResponseWriter()
	h.handler.ServeHTTP(w, req)
	return w.response(), nil
}

// NewRequest はゲートウェイイベントから*http.Requestを組み立てる。
func NewRequest(ctx context.Context, event events.APIGatewayV2HTTPRequest) (*http.Request, error) {
	method := event.RequestContext.HTTP.Method
	if method == "" {
		method = http.MethodGet
	}

	path := event.RawPath
	if path == "" {
		path = event.RequestContext.HTTP.Path
	}
	if path == "" {
		path = "/"
	}
	target := path
	if event.RawQueryString != "" {
		target += "?" + event.RawQueryString
	}

	var body io.Reader
	if event.Body != "" {
		if event.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(event.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to decode body: %w", err)
			}
			body = strings.NewReader(string(decoded))
		} else {
			body = strings.NewReader(event.Body)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.RequestURI = target

	for key, value := range event.Headers {
		req.Header.Set(key, value)
	}
	if len(event.Cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(event.Cookies, "; "))
	}

	if host := event.RequestContext.DomainName; host != "" {
		req.Host = host
	} else if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	}
	if ip := event.RequestContext.HTTP.SourceIP; ip != "" {
		req.RemoteAddr = net.JoinHostPort(ip, "0")
	}

	return req, nil
}
