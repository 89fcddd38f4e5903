package errors

// 哨兵错误（用于 errors.Is 比较）
var (
	ErrInvalidParam     = New(CodeInvalidParam, "invalid parameter")
	ErrNotConfigured    = New(CodeNotConfigured, "access token or socket URL not entered")
	ErrAlreadyConnected = New(CodeAlreadyConnected, "already connected")
	ErrNotConnected     = New(CodeNotConnected, "not connected")
	ErrConnectionError  = New(CodeConnectionError, "connection error")
	ErrHandshakeFailed  = New(CodeHandshakeFailed, "handshake failed")
	ErrProtocolError    = New(CodeProtocolError, "protocol error")
	ErrDeliveryFailed   = New(CodeDeliveryFailed, "delivery failed")
	ErrTimeout          = New(CodeTimeout, "operation timeout")
	ErrServiceClosed    = New(CodeServiceClosed, "service closed")
)
