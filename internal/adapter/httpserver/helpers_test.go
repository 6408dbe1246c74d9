package httpserver

import (
	"net/http"
	"net/http/httptest"
)

func doRequestWithHeader(srv *Server, key, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(key, value)
	return serve(srv, req)
}

func websocketRequest(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	req.Header.Set("Origin", origin)
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
