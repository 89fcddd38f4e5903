package bridge

// Conn 一个下游客户端连接
//
// Send 只负责把消息放入连接自己的发送队列，不能阻塞；
// 队列已满或连接已关闭时返回错误，由调用方将该连接视为已断开。
// Done 在连接关闭后关闭。
type Conn interface {
	ID() string
	Send(msg []byte) error
	Close() error
	Done() <-chan struct{}
}
