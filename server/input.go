package server

import "skyfront/protocol"

// inbound 读协程交给循环线程的一条入站结果：消息、解码错误或连接错误三者之一
type inbound struct {
	peer      *Peer
	msg       protocol.ClientMessage
	decodeErr error
	connErr   error
}
