package transport

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	fetchServerPollInterval = 200 * time.Millisecond
	fetchClientTimeout      = 2 * time.Second
)

// FetchHandler maps a raw FetchRequest body to a raw FetchResponse
// body. internal/node supplies the implementation; this package only
// moves bytes over HTTP without itself knowing the wire schema.
type FetchHandler func(req []byte) []byte

// FetchServer is the unicast request/reply side of gap-repair: a
// single-route HTTP server answering fetch requests with a gin engine
// and a graceful shutdown.
type FetchServer struct {
	srv *http.Server
}

// NewFetchServer builds (but does not start) a fetch server bound to
// addr, dispatching every POST /fetch body to handler.
func NewFetchServer(addr string, handler FetchHandler) *FetchServer {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	engine.POST("/fetch", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Data(http.StatusOK, "application/json", handler(nil))
			return
		}
		c.Data(http.StatusOK, "application/json", handler(body))
	})

	return &FetchServer{srv: &http.Server{Addr: addr, Handler: engine}}
}

// Start runs the server in the background. ListenAndServe errors other
// than the expected shutdown error are logged.
func (s *FetchServer) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("fetch server: %v", err)
		}
	}()
}

// Stop gracefully shuts the server down, bounded by a context timeout
// sized to a small multiple of the server's own poll interval.
func (s *FetchServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchServerPollInterval*5)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Printf("fetch server: shutdown: %v", err)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("fetch %s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// FetchClient issues unicast fetch requests to peers over HTTP with a
// bounded per-request timeout.
type FetchClient struct {
	http *http.Client
}

// NewFetchClient builds a client with a ~2s per-request timeout.
func NewFetchClient() *FetchClient {
	return &FetchClient{http: &http.Client{Timeout: fetchClientTimeout}}
}

// FetchFrom POSTs req to peerAddr's /fetch route and returns the raw
// response body. Any failure — dial, timeout, non-200 status, read error —
// yields a nil slice rather than an error: callers treat "no answer"
// and "empty answer" identically and move on to the next peer.
func (c *FetchClient) FetchFrom(peerAddr string, req []byte) []byte {
	url := "http://" + peerAddr + "/fetch"
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(req))
	if err != nil {
		return nil
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}
	return body
}
