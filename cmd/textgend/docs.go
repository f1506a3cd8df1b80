package main

// General API documentation for swaggo. Run `swag init -g cmd/textgend/docs.go`
// and build with -tags swagger to serve it.
//
// @title           textgend API
// @version         1.0
// @description     Streaming, cancellable text generation over HTTP and WebSocket.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
